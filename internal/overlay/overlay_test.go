package overlay

import (
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"marker-ar/internal/marker"
	"marker-ar/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

const pyramidOBJ = `# square pyramid, y up
v -1 0 -1
v 1 0 -1
v 1 0 1
v -1 0 1
v 0 2 0
vn 0 1 0
f 1//1 2//1 3//1 4//1
f 1/1/1 2/1/1 5/1/1
f 2 3 5
f 3 4 5
f -2 -5 -1
`

func TestAxesShape(t *testing.T) {
	s := Axes(2)
	require.NoError(t, s.Validate())
	assert.Equal(t, 0, s.Anchor)
	require.Len(t, s.Edges, 3)
	assert.Equal(t, geometry.NewPoint3D(0, 0, -2), s.Points[3], "up is -Z")
	assert.Equal(t, ColorX, s.Edges[0].Color)
	assert.Equal(t, ColorY, s.Edges[1].Color)
	assert.Equal(t, ColorZ, s.Edges[2].Color)
}

func TestCubeShape(t *testing.T) {
	s := Cube(1)
	require.NoError(t, s.Validate())
	assert.Len(t, s.Points, 8)
	assert.Len(t, s.Edges, 8)
	require.Len(t, s.Faces, 1)
	for _, p := range s.Points[:4] {
		assert.Zero(t, p.Z)
	}
	for _, p := range s.Points[4:] {
		assert.Equal(t, -1.0, p.Z)
	}
	colors := map[[4]uint8]bool{}
	colors[[4]uint8{s.Faces[0].Color.R, s.Faces[0].Color.G, s.Faces[0].Color.B, 0}] = true
	for _, e := range s.Edges {
		colors[[4]uint8{e.Color.R, e.Color.G, e.Color.B, 0}] = true
	}
	assert.Len(t, colors, 3, "floor, pillars and top each have their own color")
}

func TestShapeValidate(t *testing.T) {
	s := Axes(1)
	s.Edges = append(s.Edges, Edge{From: 0, To: 9})
	assert.Error(t, s.Validate())

	s = Cube(1)
	s.Faces[0].Indices = []int{0, 1, -1}
	assert.Error(t, s.Validate())
}

func TestParseOBJ(t *testing.T) {
	m, err := ParseOBJ(strings.NewReader(pyramidOBJ))
	require.NoError(t, err)
	assert.Len(t, m.Vertices, 5)
	require.Len(t, m.Faces, 5)
	assert.Equal(t, []int{0, 1, 2, 3}, m.Faces[0])
	assert.Equal(t, []int{3, 0, 4}, m.Faces[4], "negative indices count back from the last vertex")
}

func TestParseOBJErrors(t *testing.T) {
	for name, src := range map[string]string{
		"empty":          "# nothing\n",
		"no faces":       "v 0 0 0\nv 1 0 0\nv 0 1 0\n",
		"short vertex":   "v 0 0\n",
		"bad number":     "v 0 x 0\n",
		"out of range":   "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 4\n",
		"zero index":     "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 0 1 2\n",
		"two-point face": "v 0 0 0\nv 1 0 0\nf 1 2\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseOBJ(strings.NewReader(src))
			assert.Error(t, err)
		})
	}
}

func TestLoadOBJ(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pyramid.obj")
	require.NoError(t, os.WriteFile(path, []byte(pyramidOBJ), 0644))
	m, err := LoadOBJ(path)
	require.NoError(t, err)
	assert.Len(t, m.Vertices, 5)

	_, err = LoadOBJ(filepath.Join(t.TempDir(), "missing.obj"))
	assert.Error(t, err)
}

func TestWireframeFitsMarker(t *testing.T) {
	m, err := ParseOBJ(strings.NewReader(pyramidOBJ))
	require.NoError(t, err)
	s := m.Wireframe(4, ColorModel)
	require.NoError(t, s.Validate())

	// base square plus four slanted edges, shared edges counted once
	assert.Len(t, s.Edges, 8)

	box := make([]geometry.Point2D, len(s.Points))
	for i, p := range s.Points {
		box[i] = geometry.Point2D{X: p.X, Y: p.Y}
	}
	bb := geometry.BoundingBox(box)
	assert.InDelta(t, 0, bb.X, 1e-12)
	assert.InDelta(t, 0, bb.Y, 1e-12)
	assert.InDelta(t, 4, bb.Width, 1e-12)
	assert.InDelta(t, 4, bb.Height, 1e-12)

	// the apex rises off the marker, base stays on it
	assert.InDelta(t, -4, s.Points[4].Z, 1e-12)
	assert.InDelta(t, 0, s.Points[0].Z, 1e-12)
}

func testCorners() marker.OrderedCorners {
	return marker.OrderedCorners{Points: [4]geometry.Point2D{
		{X: 40, Y: 40}, {X: 120, Y: 40}, {X: 120, Y: 120}, {X: 40, Y: 120},
	}}
}

func TestRenderDrawsOnCopy(t *testing.T) {
	frame := blankFrame(160, 160)
	defer frame.Close()

	r, err := NewRenderer(DefaultRenderParams(), 1)
	require.NoError(t, err)
	projected := []geometry.Point2D{{X: 40, Y: 40}, {X: 120, Y: 40}, {X: 40, Y: 120}, {X: 60, Y: 10}}
	out, err := r.Render(frame, testCorners(), projected, []bool{true, true, true, true})
	require.NoError(t, err)
	defer out.Close()

	assert.Zero(t, gocv.CountNonZero(toGray(t, frame)), "input frame untouched")
	assert.NotZero(t, gocv.CountNonZero(toGray(t, out)))

	// the red X axis runs along the top edge
	px := out.GetVecbAt(40, 80)
	assert.Equal(t, uint8(255), px[2])
}

func TestRenderWashesOutLowConfidence(t *testing.T) {
	frame := blankFrame(160, 160)
	defer frame.Close()

	r, err := NewRenderer(DefaultRenderParams(), 1)
	require.NoError(t, err)
	corners := testCorners()
	corners.Confidence = marker.ConfidenceLow
	projected := []geometry.Point2D{{X: 40, Y: 40}, {X: 120, Y: 40}, {X: 40, Y: 120}, {X: 60, Y: 10}}
	out, err := r.Render(frame, corners, projected, []bool{true, true, true, true})
	require.NoError(t, err)
	defer out.Close()

	px := out.GetVecbAt(40, 80)
	assert.Equal(t, uint8(255), px[2])
	assert.Equal(t, px[0], px[1])
	assert.InDelta(t, 166, float64(px[1]), 2)
}

func TestRenderSkipsPointsBehindCamera(t *testing.T) {
	frame := blankFrame(160, 160)
	defer frame.Close()

	params := DefaultRenderParams()
	params.DrawOutline = false
	r, err := NewRenderer(params, 1)
	require.NoError(t, err)

	projected := []geometry.Point2D{{X: 40, Y: 40}, {X: 120, Y: 40}, {X: math.NaN(), Y: 0}, {X: 1e12, Y: -1e12}}
	out, err := r.Render(frame, testCorners(), projected, []bool{true, false, true, false})
	require.NoError(t, err)
	defer out.Close()
	assert.Zero(t, gocv.CountNonZero(toGray(t, out)))
}

func TestRenderCube(t *testing.T) {
	frame := blankFrame(160, 160)
	defer frame.Close()

	r, err := NewRenderer(DefaultRenderParams().WithGeometry(GeometryCube), 1)
	require.NoError(t, err)
	require.Len(t, r.Points(), 8)

	c := testCorners()
	projected := append(c.Slice(), geometry.Point2D{X: 50, Y: 20}, geometry.Point2D{X: 130, Y: 20},
		geometry.Point2D{X: 130, Y: 100}, geometry.Point2D{X: 50, Y: 100})
	inFront := []bool{true, true, true, true, true, true, true, true}
	out, err := r.Render(frame, c, projected, inFront)
	require.NoError(t, err)
	defer out.Close()

	// floor is filled
	px := out.GetVecbAt(80, 80)
	assert.Equal(t, ColorFloor.G, px[1])
}

func TestRenderRejectsWrongPointCount(t *testing.T) {
	frame := blankFrame(10, 10)
	defer frame.Close()
	r, err := NewRenderer(DefaultRenderParams(), 1)
	require.NoError(t, err)
	out, err := r.Render(frame, testCorners(), nil, nil)
	defer out.Close()
	assert.Error(t, err)
}

func TestRenderParamsValidate(t *testing.T) {
	assert.NoError(t, DefaultRenderParams().Validate())
	assert.Error(t, DefaultRenderParams().WithGeometry("teapot").Validate())
	assert.Error(t, DefaultRenderParams().WithGeometry(GeometryModel).Validate())

	_, err := NewRenderer(RenderParams{Geometry: GeometryModel, ModelPath: "/nonexistent.obj", Scale: 1, LineThickness: 1}, 1)
	assert.Error(t, err)
}

func blankFrame(rows, cols int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV8UC3)
}

func toGray(t *testing.T, m gocv.Mat) gocv.Mat {
	t.Helper()
	g := gocv.NewMat()
	t.Cleanup(func() { g.Close() })
	gocv.CvtColor(m, &g, gocv.ColorBGRToGray)
	return g
}

func TestToPixelClamps(t *testing.T) {
	b := image.Rect(0, 0, 10, 10)
	p, ok := toPixel(geometry.Point2D{X: 1e15, Y: -1e15}, b)
	assert.True(t, ok)
	assert.Equal(t, image.Point{X: 10 + 84, Y: -84}, p)

	_, ok = toPixel(geometry.Point2D{X: math.Inf(1), Y: 0}, b)
	assert.False(t, ok)
}
