package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"marker-ar/internal/marker"
	"marker-ar/pkg/colorutil"
	"marker-ar/pkg/geometry"

	"gocv.io/x/gocv"
)

// RenderParams controls what is drawn and how.
type RenderParams struct {
	Geometry      Geometry `json:"geometry"`
	ModelPath     string   `json:"model_path"` // OBJ file for the model geometry
	Scale         float64  `json:"scale"`      // shape size in marker units
	LineThickness int      `json:"line_thickness"`
	DrawOutline   bool     `json:"draw_outline"`
	DrawStatus    bool     `json:"draw_status"` // label low-confidence frames
}

// DefaultRenderParams returns the default overlay: an axis gizmo one
// marker side long.
func DefaultRenderParams() RenderParams {
	return RenderParams{
		Geometry:      GeometryAxes,
		Scale:         1,
		LineThickness: 2,
		DrawOutline:   true,
		DrawStatus:    true,
	}
}

// WithGeometry returns a copy of the parameters drawing g.
func (p RenderParams) WithGeometry(g Geometry) RenderParams {
	p.Geometry = g
	return p
}

// Validate checks the overlay settings.
func (p RenderParams) Validate() error {
	switch p.Geometry {
	case GeometryAxes, GeometryCube:
	case GeometryModel:
		if p.ModelPath == "" {
			return fmt.Errorf("geometry %q needs model_path", p.Geometry)
		}
	default:
		return fmt.Errorf("unknown overlay geometry %q", p.Geometry)
	}
	if p.Scale <= 0 {
		return fmt.Errorf("scale must be positive, got %g", p.Scale)
	}
	if p.LineThickness < 1 {
		return fmt.Errorf("line_thickness must be positive, got %d", p.LineThickness)
	}
	return nil
}

// Renderer draws a projected shape onto frames.
type Renderer struct {
	params RenderParams
	shape  Shape
}

// NewRenderer builds the overlay shape for a marker of the given side
// length. For the model geometry the OBJ file is loaded here, once.
func NewRenderer(params RenderParams, markerSize float64) (*Renderer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	size := params.Scale * markerSize

	var shape Shape
	switch params.Geometry {
	case GeometryCube:
		shape = Cube(size)
	case GeometryModel:
		mesh, err := LoadOBJ(params.ModelPath)
		if err != nil {
			return nil, err
		}
		shape = mesh.Wireframe(size, ColorModel)
	default:
		shape = Axes(size)
	}
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return &Renderer{params: params, shape: shape}, nil
}

// NewShapeRenderer creates a renderer for an already built shape.
func NewShapeRenderer(params RenderParams, shape Shape) (*Renderer, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return &Renderer{params: params, shape: shape}, nil
}

// Points returns the marker-frame points that must be projected for Render.
func (r *Renderer) Points() []geometry.Point3D {
	return r.shape.Points
}

// Render draws the overlay on a copy of frame. projected and inFront must be
// the projection of Points() under the frame's pose. Segments touching a
// point behind the camera or a non-finite projection are skipped. The
// caller owns the returned Mat.
func (r *Renderer) Render(frame gocv.Mat, corners marker.OrderedCorners, projected []geometry.Point2D, inFront []bool) (gocv.Mat, error) {
	if len(projected) != len(r.shape.Points) || len(inFront) != len(r.shape.Points) {
		return gocv.NewMat(), fmt.Errorf("expected %d projected points, got %d", len(r.shape.Points), len(projected))
	}
	out := frame.Clone()
	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())

	pixels := make([]image.Point, len(projected))
	usable := make([]bool, len(projected))
	for i, p := range projected {
		if i == r.shape.Anchor {
			p = corners.Points[0]
		}
		pixels[i], usable[i] = toPixel(p, bounds)
		usable[i] = usable[i] && inFront[i]
	}

	for _, f := range r.shape.Faces {
		poly := make([]image.Point, 0, len(f.Indices))
		for _, idx := range f.Indices {
			if !usable[idx] {
				poly = nil
				break
			}
			poly = append(poly, pixels[idx])
		}
		if len(poly) < 3 {
			continue
		}
		pv := gocv.NewPointsVectorFromPoints([][]image.Point{poly})
		gocv.FillPoly(&out, pv, tint(f.Color, corners.Confidence))
		pv.Close()
	}

	if r.params.DrawOutline {
		for i := 0; i < 4; i++ {
			a, _ := toPixel(corners.Points[i], bounds)
			b, _ := toPixel(corners.Points[(i+1)%4], bounds)
			gocv.Line(&out, a, b, ColorOutline, 1)
		}
	}

	for _, e := range r.shape.Edges {
		if !usable[e.From] || !usable[e.To] {
			continue
		}
		gocv.Line(&out, pixels[e.From], pixels[e.To], tint(e.Color, corners.Confidence), r.params.LineThickness)
	}

	if r.params.DrawStatus && corners.Confidence == marker.ConfidenceLow {
		gocv.PutText(&out, "low confidence", image.Point{X: 10, Y: 20},
			gocv.FontHersheyPlain, 1.2, ColorTop, 1)
	}
	return out, nil
}

// lowConfidenceSaturation washes out overlays drawn on guessed corners.
const lowConfidenceSaturation = 0.35

func tint(c color.RGBA, conf marker.Confidence) color.RGBA {
	if conf == marker.ConfidenceLow {
		return colorutil.Desaturate(c, lowConfidenceSaturation)
	}
	return c
}

// toPixel rounds a projected point, limiting it to a generous margin around
// the frame so far-off points cannot overflow the drawing routines.
func toPixel(p geometry.Point2D, bounds image.Rectangle) (image.Point, bool) {
	if !p.IsFinite() {
		return image.Point{}, false
	}
	margin := float64(4 * (bounds.Dx() + bounds.Dy() + 1))
	x := math.Max(-margin, math.Min(float64(bounds.Max.X)+margin, p.X))
	y := math.Max(-margin, math.Min(float64(bounds.Max.Y)+margin, p.Y))
	return geometry.Point2D{X: x, Y: y}.Round(), true
}
