package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square() []Point2D {
	return []Point2D{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
}

func TestSignedArea(t *testing.T) {
	assert.InDelta(t, 100, SignedArea(square()), 1e-9)
	assert.InDelta(t, -100, SignedArea(Reverse(square())), 1e-9)
	assert.InDelta(t, 100, Area(Reverse(square())), 1e-9)
	assert.Zero(t, SignedArea(square()[:2]))
}

func TestRotateLeft(t *testing.T) {
	sq := square()
	got := RotateLeft(sq, 1)
	assert.Equal(t, []Point2D{{10, 0}, {10, 10}, {0, 10}, {0, 0}}, got)
	assert.Equal(t, RotateLeft(sq, 3), RotateLeft(sq, -1))
	assert.Equal(t, sq, RotateLeft(sq, 4))
	// input untouched
	assert.Equal(t, square(), sq)
}

func TestReverseKeepsFirst(t *testing.T) {
	got := Reverse(square())
	require.Len(t, got, 4)
	assert.Equal(t, Point2D{0, 0}, got[0])
	assert.Equal(t, Point2D{0, 10}, got[1])
	assert.Equal(t, Point2D{10, 0}, got[3])
}

func TestNearlyCollinear(t *testing.T) {
	assert.True(t, NearlyCollinear(Point2D{0, 0}, Point2D{5, 0}, Point2D{10, 0.001}, 1e-3))
	assert.False(t, NearlyCollinear(Point2D{0, 0}, Point2D{5, 0}, Point2D{0, 5}, 1e-3))
	assert.True(t, NearlyCollinear(Point2D{1, 1}, Point2D{1, 1}, Point2D{3, 4}, 1e-3))
}

func TestAnyThreeCollinear(t *testing.T) {
	assert.False(t, AnyThreeCollinear(square(), 1e-3))
	line := []Point2D{{0, 0}, {1, 1}, {2, 2}, {3, 3}}
	assert.True(t, AnyThreeCollinear(line, 1e-3))
	// one point on an edge of the triangle formed by the others
	tri := []Point2D{{0, 0}, {10, 0}, {5, 0}, {5, 8}}
	assert.True(t, AnyThreeCollinear(tri, 1e-3))
}

func TestCentroidAndBounds(t *testing.T) {
	assert.Equal(t, Point2D{5, 5}, Centroid(square()))
	assert.Equal(t, Point2D{}, Centroid(nil))
	box := BoundingBox(square())
	assert.Equal(t, Rect{X: 0, Y: 0, Width: 10, Height: 10}, box)
}
