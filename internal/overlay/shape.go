// Package overlay builds the 3D geometry drawn on a tracked marker and
// renders its projection onto the frame.
package overlay

import (
	"fmt"
	"image/color"

	"marker-ar/pkg/geometry"
)

// Geometry selects what is drawn on the marker.
type Geometry string

const (
	GeometryAxes  Geometry = "axes"
	GeometryCube  Geometry = "cube"
	GeometryModel Geometry = "model"
)

// Colors used by the built-in shapes.
var (
	ColorX       = color.RGBA{R: 255, A: 255}
	ColorY       = color.RGBA{G: 255, A: 255}
	ColorZ       = color.RGBA{B: 255, A: 255}
	ColorFloor   = color.RGBA{G: 160, B: 40, A: 255}
	ColorPillar  = color.RGBA{R: 40, G: 90, B: 255, A: 255}
	ColorTop     = color.RGBA{R: 255, G: 60, B: 20, A: 255}
	ColorModel   = color.RGBA{R: 255, G: 220, B: 0, A: 255}
	ColorOutline = color.RGBA{R: 0, G: 255, B: 255, A: 255}
)

// Edge is a line between two shape points.
type Edge struct {
	From, To int
	Color    color.RGBA
}

// Face is a filled polygon over shape points.
type Face struct {
	Indices []int
	Color   color.RGBA
}

// Shape is overlay geometry in the marker frame. The marker lies in z=0 and
// "up", towards the camera when viewed face-on, is -Z.
type Shape struct {
	Points []geometry.Point3D
	Faces  []Face // drawn first
	Edges  []Edge

	// Anchor is the index of a point drawn at the first ordered corner
	// instead of its projection, or -1.
	Anchor int
}

// Axes returns a gizmo of three lines of the given length from the marker
// origin along +X (red), +Y (green) and up (blue).
func Axes(length float64) Shape {
	return Shape{
		Points: []geometry.Point3D{
			geometry.NewPoint3D(0, 0, 0),
			geometry.NewPoint3D(length, 0, 0),
			geometry.NewPoint3D(0, length, 0),
			geometry.NewPoint3D(0, 0, -length),
		},
		Edges: []Edge{
			{From: 0, To: 1, Color: ColorX},
			{From: 0, To: 2, Color: ColorY},
			{From: 0, To: 3, Color: ColorZ},
		},
		Anchor: 0,
	}
}

// Cube returns a cube standing on the marker square: a filled floor, four
// pillars and the four top edges, each group in its own color.
func Cube(size float64) Shape {
	s := Shape{Anchor: -1}
	for _, z := range []float64{0, -size} {
		s.Points = append(s.Points,
			geometry.NewPoint3D(0, 0, z),
			geometry.NewPoint3D(size, 0, z),
			geometry.NewPoint3D(size, size, z),
			geometry.NewPoint3D(0, size, z),
		)
	}
	s.Faces = []Face{{Indices: []int{0, 1, 2, 3}, Color: ColorFloor}}
	for i := 0; i < 4; i++ {
		s.Edges = append(s.Edges, Edge{From: i, To: i + 4, Color: ColorPillar})
	}
	for i := 0; i < 4; i++ {
		s.Edges = append(s.Edges, Edge{From: 4 + i, To: 4 + (i+1)%4, Color: ColorTop})
	}
	return s
}

// Validate checks that every edge and face refers to an existing point.
func (s Shape) Validate() error {
	n := len(s.Points)
	for i, e := range s.Edges {
		if e.From < 0 || e.From >= n || e.To < 0 || e.To >= n {
			return fmt.Errorf("edge %d (%d-%d) out of range for %d points", i, e.From, e.To, n)
		}
	}
	for i, f := range s.Faces {
		for _, idx := range f.Indices {
			if idx < 0 || idx >= n {
				return fmt.Errorf("face %d vertex %d out of range for %d points", i, idx, n)
			}
		}
	}
	if s.Anchor >= n {
		return fmt.Errorf("anchor %d out of range for %d points", s.Anchor, n)
	}
	return nil
}
