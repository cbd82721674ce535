// Package pose estimates and applies the rigid transform between the marker
// frame and the camera frame.
package pose

import (
	"math"

	"marker-ar/pkg/geometry"

	"github.com/golang/geo/r3"
)

// Pose maps marker-frame points into the camera frame: Xc = R*Xm + t.
// Translation is expressed in the marker's units (reference square side).
type Pose struct {
	Rotation    [3][3]float64
	Translation r3.Vector
}

// Identity returns the pose with no rotation and no translation.
func Identity() Pose {
	return Pose{Rotation: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

// FromRVec builds a pose from an axis-angle rotation vector and a translation.
func FromRVec(rvec, tvec r3.Vector) Pose {
	return Pose{Rotation: Rodrigues(rvec), Translation: tvec}
}

// Transform maps a marker-frame point into the camera frame.
func (p Pose) Transform(v geometry.Point3D) geometry.Point3D {
	r := p.Rotation
	return r3.Vector{
		X: r[0][0]*v.X + r[0][1]*v.Y + r[0][2]*v.Z + p.Translation.X,
		Y: r[1][0]*v.X + r[1][1]*v.Y + r[1][2]*v.Z + p.Translation.Y,
		Z: r[2][0]*v.X + r[2][1]*v.Y + r[2][2]*v.Z + p.Translation.Z,
	}
}

// RVec returns the rotation as an axis-angle vector (angle in radians).
func (p Pose) RVec() r3.Vector {
	r := p.Rotation
	tr := r[0][0] + r[1][1] + r[2][2]
	cosT := math.Max(-1, math.Min(1, (tr-1)/2))
	theta := math.Acos(cosT)

	// antisymmetric part, 2*sin(theta)*axis
	w := r3.Vector{X: r[2][1] - r[1][2], Y: r[0][2] - r[2][0], Z: r[1][0] - r[0][1]}

	switch {
	case theta < 1e-9:
		return w.Mul(0.5)
	case math.Pi-theta < 1e-4:
		// sin(theta) vanishes; recover the axis from R + I = 2*n*n^T
		b := [3][3]float64{}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				b[i][j] = r[i][j] / 2
			}
			b[i][i] += 0.5
		}
		k := 0
		for i := 1; i < 3; i++ {
			if b[i][i] > b[k][k] {
				k = i
			}
		}
		d := math.Sqrt(math.Max(b[k][k], 1e-300))
		n := r3.Vector{X: b[0][k] / d, Y: b[1][k] / d, Z: b[2][k] / d}.Normalize()
		if n.Dot(w) < 0 {
			n = n.Mul(-1)
		}
		return n.Mul(theta)
	default:
		return w.Mul(theta / (2 * math.Sin(theta)))
	}
}

// Rodrigues converts an axis-angle vector into a rotation matrix.
func Rodrigues(v r3.Vector) [3][3]float64 {
	theta := v.Norm()
	if theta < 1e-12 {
		return [3][3]float64{
			{1, -v.Z, v.Y},
			{v.Z, 1, -v.X},
			{-v.Y, v.X, 1},
		}
	}
	k := v.Mul(1 / theta)
	s, c := math.Sin(theta), math.Cos(theta)
	oc := 1 - c
	return [3][3]float64{
		{c + k.X*k.X*oc, k.X*k.Y*oc - k.Z*s, k.X*k.Z*oc + k.Y*s},
		{k.Y*k.X*oc + k.Z*s, c + k.Y*k.Y*oc, k.Y*k.Z*oc - k.X*s},
		{k.Z*k.X*oc - k.Y*s, k.Z*k.Y*oc + k.X*s, c + k.Z*k.Z*oc},
	}
}

// IsFinite reports whether every component of the pose is a finite number.
func (p Pose) IsFinite() bool {
	for _, row := range p.Rotation {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	t := p.Translation
	for _, v := range []float64{t.X, t.Y, t.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
