package marker

import "fmt"

// ThresholdMethod selects how the blurred grayscale frame is binarized.
type ThresholdMethod string

const (
	ThresholdFixed    ThresholdMethod = "fixed"
	ThresholdOtsu     ThresholdMethod = "otsu"
	ThresholdAdaptive ThresholdMethod = "adaptive"
)

// SelectionPolicy picks one candidate when several quads qualify.
type SelectionPolicy string

const (
	SelectFirst   SelectionPolicy = "first"
	SelectLargest SelectionPolicy = "largest"
)

// BinarizeParams controls grayscale blur and thresholding.
type BinarizeParams struct {
	BlurKernel        int             `json:"blur_kernel"` // odd; 1 disables blur
	Method            ThresholdMethod `json:"method"`
	Threshold         float64         `json:"threshold"` // fixed cutoff, 0-255
	AdaptiveBlockSize int             `json:"adaptive_block_size"`
	AdaptiveC         float64         `json:"adaptive_c"`
	Invert            bool            `json:"invert"` // dark marker on light background
}

// ExtractParams controls polygon approximation and noise rejection.
type ExtractParams struct {
	ApproxEpsilon float64         `json:"approx_epsilon"` // fraction of contour perimeter
	MinArea       float64         `json:"min_area"`       // pixels squared
	Selection     SelectionPolicy `json:"selection"`

	// RejectBorder drops regions touching the frame edge, which are
	// background (walls, windows) or markers cut off by the frame.
	RejectBorder bool `json:"reject_border"`
}

// OrderParams controls corner disambiguation.
type OrderParams struct {
	// ForegroundLevel is the mask value a probe must fall below to hit.
	ForegroundLevel uint8 `json:"foreground_level"`

	// LegacyFallthrough reproduces the historical policy of assigning the
	// fourth corner when no earlier probe hits. Suspect: it silently accepts
	// a guess when the marking is missing.
	LegacyFallthrough bool `json:"legacy_fallthrough"`
}

// DefaultBinarizeParams returns a 7x7 blur followed by Otsu thresholding,
// seeded at 150 for the fixed method.
func DefaultBinarizeParams() BinarizeParams {
	return BinarizeParams{
		BlurKernel:        7,
		Method:            ThresholdOtsu,
		Threshold:         150,
		AdaptiveBlockSize: 31,
		AdaptiveC:         -5,
	}
}

// DefaultExtractParams returns the default quad filter.
func DefaultExtractParams() ExtractParams {
	return ExtractParams{
		ApproxEpsilon: 0.01,
		MinArea:       550,
		Selection:     SelectLargest,
		RejectBorder:  true,
	}
}

// DefaultOrderParams returns the default disambiguation settings.
func DefaultOrderParams() OrderParams {
	return OrderParams{ForegroundLevel: Foreground}
}

// WithThreshold returns a copy of params using a fixed cutoff.
func (p BinarizeParams) WithThreshold(t float64) BinarizeParams {
	p.Method = ThresholdFixed
	p.Threshold = t
	return p
}

// Validate checks the blur and threshold settings.
func (p BinarizeParams) Validate() error {
	if p.BlurKernel < 1 || p.BlurKernel%2 == 0 {
		return fmt.Errorf("blur_kernel must be a positive odd number, got %d", p.BlurKernel)
	}
	switch p.Method {
	case ThresholdFixed:
		if p.Threshold < 0 || p.Threshold > 255 {
			return fmt.Errorf("threshold must be within 0-255, got %g", p.Threshold)
		}
	case ThresholdOtsu:
	case ThresholdAdaptive:
		if p.AdaptiveBlockSize < 3 || p.AdaptiveBlockSize%2 == 0 {
			return fmt.Errorf("adaptive_block_size must be an odd number >= 3, got %d", p.AdaptiveBlockSize)
		}
	default:
		return fmt.Errorf("unknown threshold method %q", p.Method)
	}
	return nil
}

// Validate checks the polygon filter settings.
func (p ExtractParams) Validate() error {
	if p.ApproxEpsilon <= 0 || p.ApproxEpsilon >= 0.5 {
		return fmt.Errorf("approx_epsilon must be within (0, 0.5), got %g", p.ApproxEpsilon)
	}
	if p.MinArea < 0 {
		return fmt.Errorf("min_area must not be negative, got %g", p.MinArea)
	}
	switch p.Selection {
	case SelectFirst, SelectLargest:
	default:
		return fmt.Errorf("unknown selection policy %q", p.Selection)
	}
	return nil
}

// Validate checks the disambiguation settings.
func (p OrderParams) Validate() error {
	if p.ForegroundLevel == 0 {
		return fmt.Errorf("foreground_level must be positive")
	}
	return nil
}
