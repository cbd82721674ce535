package geometry

import "math"

// SignedArea returns the shoelace area of a polygon. In image coordinates
// (y down) a visually clockwise polygon has positive area.
func SignedArea(polygon []Point2D) float64 {
	n := len(polygon)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += polygon[i].X*polygon[j].Y - polygon[j].X*polygon[i].Y
	}
	return sum / 2
}

// Area returns the absolute enclosed area of a polygon.
func Area(polygon []Point2D) float64 {
	return math.Abs(SignedArea(polygon))
}

// RotateLeft returns a copy of the polygon with its vertex order cyclically
// shifted so that polygon[offset] becomes the first vertex.
func RotateLeft(polygon []Point2D, offset int) []Point2D {
	n := len(polygon)
	out := make([]Point2D, n)
	if n == 0 {
		return out
	}
	offset = ((offset % n) + n) % n
	for i := range out {
		out[i] = polygon[(i+offset)%n]
	}
	return out
}

// Reverse returns a copy of the polygon with the opposite winding, keeping
// the first vertex in place.
func Reverse(polygon []Point2D) []Point2D {
	n := len(polygon)
	out := make([]Point2D, n)
	for i := range out {
		out[i] = polygon[(n-i)%n]
	}
	return out
}

// NearlyCollinear reports whether a, b and c lie on a common line. tol is the
// sine of the smallest angle at a that still counts as a proper triangle.
// Coincident points are collinear.
func NearlyCollinear(a, b, c Point2D, tol float64) bool {
	ab := a.Distance(b)
	ac := a.Distance(c)
	if ab < 1e-12 || ac < 1e-12 || b.Distance(c) < 1e-12 {
		return true
	}
	return math.Abs(crossProduct(a, b, c)) <= tol*ab*ac
}

// AnyThreeCollinear reports whether any three of the given points are
// nearly collinear.
func AnyThreeCollinear(points []Point2D, tol float64) bool {
	n := len(points)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for k := j + 1; k < n; k++ {
				if NearlyCollinear(points[i], points[j], points[k], tol) ||
					NearlyCollinear(points[j], points[k], points[i], tol) ||
					NearlyCollinear(points[k], points[i], points[j], tol) {
					return true
				}
			}
		}
	}
	return false
}

// crossProduct computes the cross product of vectors OA and OB.
func crossProduct(o, a, b Point2D) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}
