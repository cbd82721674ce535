package pose

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"marker-ar/internal/camera"
	"marker-ar/pkg/geometry"
)

var (
	// ErrDegenerate is returned when the correspondences cannot determine a
	// unique pose: too few points, collinear points, a rank deficient system
	// or a non-finite result.
	ErrDegenerate = errors.New("degenerate correspondences")

	// ErrNoConsensus is returned by robust mode when no sample gathers
	// enough inliers.
	ErrNoConsensus = errors.New("no consensus among correspondences")

	// ErrMismatch is returned when object and image point counts differ.
	ErrMismatch = errors.New("object and image point counts differ")

	// ErrNonPlanar is returned when object points do not lie on z=0.
	ErrNonPlanar = errors.New("object points are not planar")

	// ErrInvalidCamera is returned when the camera model cannot project.
	ErrInvalidCamera = errors.New("invalid camera model")
)

// minPoints is the size of a minimal sample.
const minPoints = 4

// PoseSolver estimates the marker pose from 3D-2D correspondences.
type PoseSolver interface {
	SolvePose(object []geometry.Point3D, image []geometry.Point2D, cam camera.Model) (Solution, error)
}

// Solution is a solved pose with its fit quality.
type Solution struct {
	Pose       Pose
	RMSError   float64 // pixels, over the inliers
	Inliers    []int   // indices of the correspondences used by the final fit
	Iterations int     // refinement steps taken
}

// Solver implements PoseSolver with a homography seed followed by
// Levenberg-Marquardt refinement, optionally behind random-sample consensus.
type Solver struct {
	params SolverParams
}

// NewSolver creates a solver with fixed parameters.
func NewSolver(params SolverParams) *Solver {
	return &Solver{params: params}
}

// Params returns the solver configuration.
func (s *Solver) Params() SolverParams {
	return s.params
}

// SolvePose estimates the pose mapping object (z=0 plane) points onto image
// pixels under cam. It never panics on degenerate input.
func (s *Solver) SolvePose(object []geometry.Point3D, image []geometry.Point2D, cam camera.Model) (Solution, error) {
	if len(object) != len(image) {
		return Solution{}, fmt.Errorf("%w: %d vs %d", ErrMismatch, len(object), len(image))
	}
	if len(object) < minPoints {
		return Solution{}, fmt.Errorf("%w: need at least %d points, got %d", ErrDegenerate, minPoints, len(object))
	}
	if !cam.Valid() {
		return Solution{}, ErrInvalidCamera
	}
	plane, err := planeCoords(object)
	if err != nil {
		return Solution{}, err
	}
	for _, p := range image {
		if !p.IsFinite() {
			return Solution{}, fmt.Errorf("%w: non-finite image point", ErrDegenerate)
		}
	}

	c := correspondences{object: object, plane: plane, image: image, cam: cam}
	c.normalized = make([]geometry.Point2D, len(image))
	for i, p := range image {
		x, y := cam.Normalize(p)
		c.normalized[i] = geometry.Point2D{X: x, Y: y}
	}

	if s.params.Mode != ModeRobust {
		return s.solveDirect(c)
	}
	if len(object) > minPoints {
		return s.solveRobust(c)
	}
	// a single 4-point hypothesis is all consensus could try, so only the
	// reweighting applies
	return s.solveReweighted(c)
}

// correspondences carries the per-call inputs of a solve.
type correspondences struct {
	object     []geometry.Point3D
	plane      []geometry.Point2D // object x,y
	image      []geometry.Point2D // observed pixels
	normalized []geometry.Point2D // undistorted normalized image points
	cam        camera.Model
}

func (c correspondences) subset(idx []int) correspondences {
	out := correspondences{cam: c.cam}
	for _, i := range idx {
		out.object = append(out.object, c.object[i])
		out.plane = append(out.plane, c.plane[i])
		out.image = append(out.image, c.image[i])
		out.normalized = append(out.normalized, c.normalized[i])
	}
	return out
}

func planeCoords(object []geometry.Point3D) ([]geometry.Point2D, error) {
	var scale float64
	for _, p := range object {
		scale = math.Max(scale, math.Max(math.Abs(p.X), math.Abs(p.Y)))
	}
	plane := make([]geometry.Point2D, len(object))
	for i, p := range object {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z) {
			return nil, fmt.Errorf("%w: non-finite object point", ErrDegenerate)
		}
		if math.Abs(p.Z) > 1e-9*(1+scale) {
			return nil, fmt.Errorf("%w: point %d has z=%g", ErrNonPlanar, i, p.Z)
		}
		plane[i] = geometry.Point2D{X: p.X, Y: p.Y}
	}
	return plane, nil
}

// seed computes the closed-form pose from the planar homography.
func (s *Solver) seed(c correspondences) (Pose, error) {
	if len(c.plane) == minPoints {
		tol := s.params.CollinearityTolerance
		if geometry.AnyThreeCollinear(c.plane, tol) || geometry.AnyThreeCollinear(c.normalized, tol) {
			return Pose{}, fmt.Errorf("%w: three of four points are collinear", ErrDegenerate)
		}
	}
	h, err := Homography(c.plane, c.normalized)
	if err != nil {
		return Pose{}, err
	}
	return DecomposeHomography(h)
}

func (s *Solver) solveDirect(c correspondences) (Solution, error) {
	initial, err := s.seed(c)
	if err != nil {
		return Solution{}, err
	}
	refined, iters := refine(initial, c, nil, s.params.MaxIterations)

	inliers := make([]int, len(c.object))
	for i := range inliers {
		inliers[i] = i
	}
	return finish(refined, c, inliers, iters)
}

func (s *Solver) solveRobust(c correspondences) (Solution, error) {
	n := len(c.object)
	rng := rand.New(rand.NewSource(s.params.Seed))

	var best []int
	var bestErr float64
	for _, sample := range samples(n, s.params.RansacIterations, rng) {
		hypothesis, err := s.seed(c.subset(sample))
		if err != nil {
			continue
		}

		// Count inliers
		var inliers []int
		var sum float64
		for i, e := range ReprojectionErrors(hypothesis, c.cam, c.object, c.image) {
			if e < s.params.RansacThreshold {
				inliers = append(inliers, i)
				sum += e
			}
		}
		if len(inliers) > len(best) || (len(inliers) == len(best) && sum < bestErr) {
			best = inliers
			bestErr = sum
		}
	}
	if len(best) < minPoints {
		return Solution{}, fmt.Errorf("%w: best sample has %d inliers", ErrNoConsensus, len(best))
	}

	// Refit on inliers with Huber reweighting
	inlierSet := c.subset(best)
	initial, err := s.seed(inlierSet)
	if err != nil {
		return Solution{}, err
	}
	refined, iters := s.huberRefine(initial, inlierSet)
	return finish(refined, inlierSet, best, iters)
}

// solveReweighted is the robust solve for a minimal point set: the direct
// seed refined with Huber weights, so a single bad corner pulls the pose
// less than in the unweighted fit.
func (s *Solver) solveReweighted(c correspondences) (Solution, error) {
	initial, err := s.seed(c)
	if err != nil {
		return Solution{}, err
	}
	refined, iters := s.huberRefine(initial, c)

	inliers := make([]int, len(c.object))
	for i := range inliers {
		inliers[i] = i
	}
	return finish(refined, c, inliers, iters)
}

func (s *Solver) huberRefine(initial Pose, c correspondences) (Pose, int) {
	current := initial
	total := 0
	for round := 0; round < huberRounds; round++ {
		weights := huberWeights(ReprojectionErrors(current, c.cam, c.object, c.image), s.params.HuberDelta)
		var iters int
		current, iters = refine(current, c, weights, s.params.MaxIterations)
		total += iters
	}
	return current, total
}

// huberRounds is the number of reweighting passes in robust refinement.
const huberRounds = 3

func huberWeights(errs []float64, delta float64) []float64 {
	w := make([]float64, len(errs))
	for i, e := range errs {
		if e <= delta {
			w[i] = 1
		} else {
			w[i] = delta / e
		}
	}
	return w
}

func finish(p Pose, c correspondences, inliers []int, iters int) (Solution, error) {
	if !p.IsFinite() || p.Translation.Z <= 0 {
		return Solution{}, fmt.Errorf("%w: refined pose is invalid", ErrDegenerate)
	}
	rms := RMS(ReprojectionErrors(p, c.cam, c.object, c.image))
	if math.IsNaN(rms) || math.IsInf(rms, 0) {
		return Solution{}, fmt.Errorf("%w: reprojection error is not finite", ErrDegenerate)
	}
	return Solution{Pose: p, RMSError: rms, Inliers: inliers, Iterations: iters}, nil
}

// samples returns the 4-point index sets to try: every combination when
// there are no more than limit of them, otherwise limit random draws.
func samples(n, limit int, rng *rand.Rand) [][]int {
	if combinations(n, minPoints) <= limit {
		var out [][]int
		for a := 0; a < n; a++ {
			for b := a + 1; b < n; b++ {
				for c := b + 1; c < n; c++ {
					for d := c + 1; d < n; d++ {
						out = append(out, []int{a, b, c, d})
					}
				}
			}
		}
		return out
	}
	out := make([][]int, limit)
	for i := range out {
		out[i] = rng.Perm(n)[:minPoints]
	}
	return out
}

func combinations(n, k int) int {
	if k > n {
		return 0
	}
	r := 1
	for i := 1; i <= k; i++ {
		r = r * (n - k + i) / i
		if r > math.MaxInt32 {
			return math.MaxInt32
		}
	}
	return r
}
