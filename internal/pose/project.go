package pose

import (
	"math"

	"marker-ar/internal/camera"
	"marker-ar/pkg/geometry"

	"gonum.org/v1/gonum/floats"
)

// minDepth is the smallest |z| that is projected; points on the camera's
// principal plane map to NaN.
const minDepth = 1e-9

// Project maps marker-frame points to pixel coordinates through the pose,
// the pinhole intrinsics and the lens distortion model. The output has the
// same length and order as pts. Points behind the camera are still
// projected; callers use InFront to decide whether to draw them.
func Project(p Pose, cam camera.Model, pts []geometry.Point3D) []geometry.Point2D {
	out := make([]geometry.Point2D, len(pts))
	for i, pt := range pts {
		out[i] = projectOne(p, cam, pt)
	}
	return out
}

func projectOne(p Pose, cam camera.Model, pt geometry.Point3D) geometry.Point2D {
	c := p.Transform(pt)
	if math.Abs(c.Z) < minDepth {
		return geometry.Point2D{X: math.NaN(), Y: math.NaN()}
	}
	return cam.ToPixel(c.X/c.Z, c.Y/c.Z)
}

// InFront reports for each point whether it lies in front of the camera.
func InFront(p Pose, pts []geometry.Point3D) []bool {
	out := make([]bool, len(pts))
	for i, pt := range pts {
		out[i] = p.Transform(pt).Z > minDepth
	}
	return out
}

// ReprojectionErrors returns the per-point pixel distance between the
// projected object points and the observed image points.
func ReprojectionErrors(p Pose, cam camera.Model, object []geometry.Point3D, image []geometry.Point2D) []float64 {
	errs := make([]float64, len(object))
	for i := range object {
		errs[i] = projectOne(p, cam, object[i]).Distance(image[i])
	}
	return errs
}

// RMS returns the root mean square of a set of errors.
func RMS(errs []float64) float64 {
	if len(errs) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(errs, errs) / float64(len(errs)))
}
