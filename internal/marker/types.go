// Package marker locates the square fiducial in a frame: binarization,
// quadrilateral extraction, and corner ordering against the reference square.
package marker

import (
	"errors"
	"image"

	"marker-ar/pkg/geometry"
)

// Foreground is the mask value of marker pixels; background is 0.
const Foreground uint8 = 255

var (
	// ErrEmptyFrame is returned when a frame has no pixel data.
	ErrEmptyFrame = errors.New("empty frame")

	// ErrAmbiguousCorners is returned when the distinguished corner could not
	// be identified and the legacy fallthrough is disabled.
	ErrAmbiguousCorners = errors.New("ambiguous corner order")
)

// QuadExtractor finds quadrilateral candidates in a binary mask.
type QuadExtractor interface {
	ExtractQuadrilaterals(mask *image.Gray) ([]QuadCandidate, error)
}

// QuadCandidate is a detected 4-vertex polygon in traversal order.
type QuadCandidate struct {
	Points   [4]geometry.Point2D
	Area     float64
	Centroid geometry.Point2D
}

// NewQuadCandidate computes the derived fields for four polygon vertices.
func NewQuadCandidate(points [4]geometry.Point2D) QuadCandidate {
	return QuadCandidate{
		Points:   points,
		Area:     geometry.Area(points[:]),
		Centroid: geometry.Centroid(points[:]),
	}
}

// ReferenceSquare is the marker's corner geometry in its own frame: a square
// of side s in the z=0 plane, ordered (0,0), (s,0), (s,s), (0,s). Seen
// face-on with no rotation this is top-left, top-right, bottom-right,
// bottom-left in the image, the marker's +Z pointing away from the camera.
type ReferenceSquare [4]geometry.Point3D

// NewReferenceSquare returns the reference square for a marker side length.
func NewReferenceSquare(size float64) ReferenceSquare {
	return ReferenceSquare{
		geometry.NewPoint3D(0, 0, 0),
		geometry.NewPoint3D(size, 0, 0),
		geometry.NewPoint3D(size, size, 0),
		geometry.NewPoint3D(0, size, 0),
	}
}

// Points returns the corners as a slice.
func (r ReferenceSquare) Points() []geometry.Point3D {
	return r[:]
}

// Size returns the side length.
func (r ReferenceSquare) Size() float64 {
	return r[1].X - r[0].X
}

// Confidence grades an ordered corner assignment.
type Confidence int

const (
	ConfidenceHigh Confidence = iota // exactly one probe identified the corner
	ConfidenceLow                    // assignment guessed by the fallthrough policy
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceLow:
		return "low"
	default:
		return "unknown"
	}
}

// OrderedCorners are candidate points permuted so that Points[i] matches
// ReferenceSquare[i].
type OrderedCorners struct {
	Points         [4]geometry.Point2D
	Confidence     Confidence
	Disambiguation Disambiguation
}

// Slice returns the corners as a slice.
func (o OrderedCorners) Slice() []geometry.Point2D {
	return o.Points[:]
}
