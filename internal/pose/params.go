package pose

import "fmt"

// Mode selects the solver strategy.
type Mode string

const (
	// ModeDirect fits all correspondences by iterative least squares.
	ModeDirect Mode = "direct"
	// ModeRobust runs random-sample consensus first and refines on inliers.
	ModeRobust Mode = "robust"
)

// SolverParams configures the pose solver.
type SolverParams struct {
	Mode          Mode `json:"mode"`
	MaxIterations int  `json:"max_iterations"` // Levenberg-Marquardt steps

	RansacIterations int     `json:"ransac_iterations"`
	RansacThreshold  float64 `json:"ransac_threshold"` // pixels
	HuberDelta       float64 `json:"huber_delta"`      // pixels

	// CollinearityTolerance is the sine of the smallest angle three
	// correspondences may form before the set counts as degenerate.
	CollinearityTolerance float64 `json:"collinearity_tolerance"`

	Seed int64 `json:"seed"`
}

// DefaultSolverParams returns the parameters used for live tracking.
func DefaultSolverParams() SolverParams {
	return SolverParams{
		Mode:                  ModeDirect,
		MaxIterations:         50,
		RansacIterations:      100,
		RansacThreshold:       3.0,
		HuberDelta:            2.0,
		CollinearityTolerance: 0.02,
		Seed:                  1,
	}
}

// WithMode returns a copy of the parameters using the given mode.
func (p SolverParams) WithMode(m Mode) SolverParams {
	p.Mode = m
	return p
}

// Validate checks the solver settings.
func (p SolverParams) Validate() error {
	switch p.Mode {
	case ModeDirect, ModeRobust:
	default:
		return fmt.Errorf("unknown solver mode %q", p.Mode)
	}
	if p.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be positive, got %d", p.MaxIterations)
	}
	if p.Mode == ModeRobust {
		if p.RansacIterations < 1 {
			return fmt.Errorf("ransac_iterations must be positive, got %d", p.RansacIterations)
		}
		if p.RansacThreshold <= 0 {
			return fmt.Errorf("ransac_threshold must be positive, got %g", p.RansacThreshold)
		}
		if p.HuberDelta <= 0 {
			return fmt.Errorf("huber_delta must be positive, got %g", p.HuberDelta)
		}
	}
	if p.CollinearityTolerance < 0 || p.CollinearityTolerance >= 1 {
		return fmt.Errorf("collinearity_tolerance must be within [0, 1), got %g", p.CollinearityTolerance)
	}
	return nil
}
