// Package pipeline runs the per-frame marker tracking chain and the
// acquisition loop around it.
package pipeline

import (
	"errors"
	"fmt"
	"image"

	"marker-ar/internal/camera"
	"marker-ar/internal/config"
	"marker-ar/internal/marker"
	"marker-ar/internal/overlay"
	"marker-ar/internal/pose"
	"marker-ar/pkg/geometry"

	"gocv.io/x/gocv"
)

// ErrReprojection is reported when a solved pose fits the corners worse than
// the configured limit.
var ErrReprojection = errors.New("reprojection error above limit")

// Status is the outcome of processing one frame.
type Status int

const (
	StatusTracked      Status = iota // pose solved, overlay drawn
	StatusNoMarker                   // no quadrilateral candidate
	StatusAmbiguous                  // distinguished corner not identified
	StatusDegenerate                 // pose could not be solved or was rejected
	StatusDecodeFailed               // frame could not be binarized
)

func (s Status) String() string {
	switch s {
	case StatusTracked:
		return "tracked"
	case StatusNoMarker:
		return "no marker"
	case StatusAmbiguous:
		return "ambiguous"
	case StatusDegenerate:
		return "degenerate"
	case StatusDecodeFailed:
		return "decode failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result describes what happened to one frame. Fields past Status are
// filled as far as the chain got.
type Result struct {
	Status     Status
	Err        error
	Mask       *image.Gray
	Candidates int
	Candidate  marker.QuadCandidate
	Corners    marker.OrderedCorners
	Solution   pose.Solution
	Projected  []geometry.Point2D
	InFront    []bool
}

// Tracked reports whether the frame has a pose.
func (r Result) Tracked() bool {
	return r.Status == StatusTracked
}

// Pipeline wires the tracking stages for one configuration. It keeps no
// state between frames other than the camera model rescaled to the current
// frame size.
type Pipeline struct {
	cfg       config.Config
	camera    camera.Model
	binarizer marker.Binarizer
	extractor marker.QuadExtractor
	orderer   marker.CornerOrderer
	solver    pose.PoseSolver
	renderer  *overlay.Renderer
	reference marker.ReferenceSquare

	scaled     camera.Model
	scaledSize image.Point
}

// New builds a pipeline. cam is the model at its calibration resolution.
func New(cfg config.Config, cam camera.Model) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cam.Valid() {
		return nil, fmt.Errorf("invalid camera model")
	}
	renderer, err := overlay.NewRenderer(cfg.Overlay, cfg.MarkerSize)
	if err != nil {
		return nil, fmt.Errorf("overlay: %w", err)
	}
	return &Pipeline{
		cfg:       cfg,
		camera:    cam,
		binarizer: marker.NewBinarizer(cfg.Binarize),
		extractor: marker.NewContourExtractor(cfg.Extract),
		orderer:   marker.NewCornerOrderer(cfg.Order),
		solver:    pose.NewSolver(cfg.Solver),
		renderer:  renderer,
		reference: marker.NewReferenceSquare(cfg.MarkerSize),
		scaled:    cam,
	}, nil
}

// WithSolver replaces the pose solver.
func (p *Pipeline) WithSolver(s pose.PoseSolver) *Pipeline {
	p.solver = s
	return p
}

// Config returns the configuration the pipeline was built from.
func (p *Pipeline) Config() config.Config {
	return p.cfg
}

// CameraFor returns the camera model for a frame size: the calibration
// rescaled, or the identity fallback centred on the frame.
func (p *Pipeline) CameraFor(width, height int) camera.Model {
	size := image.Point{X: width, Y: height}
	if size != p.scaledSize {
		p.scaled = p.camera.ForFrame(width, height)
		p.scaledSize = size
	}
	return p.scaled
}

// Process runs one frame through binarization, quad extraction, corner
// ordering, pose solving and overlay projection. The frame is not modified.
func (p *Pipeline) Process(frame gocv.Mat) Result {
	mask, err := p.binarizer.Binarize(frame)
	if err != nil {
		return Result{Status: StatusDecodeFailed, Err: err}
	}
	res := Result{Mask: mask}

	quads, err := p.extractor.ExtractQuadrilaterals(mask)
	if err != nil {
		res.Status, res.Err = StatusDecodeFailed, err
		return res
	}
	res.Candidates = len(quads)
	candidate, ok := marker.SelectCandidate(quads, p.cfg.Extract.Selection)
	if !ok {
		res.Status = StatusNoMarker
		return res
	}
	res.Candidate = candidate

	corners, err := p.orderer.Order(candidate, mask)
	res.Corners = corners
	if err != nil {
		res.Status, res.Err = StatusAmbiguous, err
		return res
	}

	cam := p.CameraFor(frame.Cols(), frame.Rows())
	sol, err := p.solver.SolvePose(p.reference.Points(), corners.Slice(), cam)
	if err != nil {
		res.Status, res.Err = StatusDegenerate, err
		return res
	}
	res.Solution = sol
	if sol.RMSError > p.cfg.MaxReprojectionError {
		res.Status = StatusDegenerate
		res.Err = fmt.Errorf("%w: %.2f > %.2f px", ErrReprojection, sol.RMSError, p.cfg.MaxReprojectionError)
		return res
	}

	points := p.renderer.Points()
	res.Projected = pose.Project(sol.Pose, cam, points)
	res.InFront = pose.InFront(sol.Pose, points)
	res.Status = StatusTracked
	return res
}

// Render returns the frame to display for a result: the overlay on a copy
// of frame when tracked, otherwise an unmodified copy. The caller owns the
// returned Mat.
func (p *Pipeline) Render(frame gocv.Mat, res Result) (gocv.Mat, error) {
	if !res.Tracked() {
		return frame.Clone(), nil
	}
	return p.renderer.Render(frame, res.Corners, res.Projected, res.InFront)
}
