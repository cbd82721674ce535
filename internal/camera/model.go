// Package camera holds the intrinsic camera model used to relate marker
// geometry to pixel coordinates, and its on-disk calibration formats.
package camera

import (
	"math"

	"marker-ar/pkg/geometry"
)

// undistortIterations bounds the fixed-point inversion of the distortion model.
const undistortIterations = 20

// Model is a pinhole camera with optional lens distortion.
// Distortion coefficients follow the OpenCV order k1, k2, p1, p2, k3, k4, k5, k6;
// missing trailing coefficients are zero.
type Model struct {
	FX, FY     float64
	CX, CY     float64
	Skew       float64
	Distortion []float64

	// Width and Height are the image size the model was calibrated at (0 if unknown).
	Width, Height int

	// Identity is set for the fallback model used when no calibration is available.
	Identity bool
}

// IdentityModel returns the model substituted when no calibration exists:
// unit focal lengths, principal point at the origin, no distortion. It only
// becomes usable for tracking once ForFrame centres it on a frame.
func IdentityModel() Model {
	return Model{FX: 1, FY: 1, Identity: true}
}

// Matrix returns the 3x3 intrinsic matrix in row-major order.
func (m Model) Matrix() [3][3]float64 {
	return [3][3]float64{
		{m.FX, m.Skew, m.CX},
		{0, m.FY, m.CY},
		{0, 0, 1},
	}
}

// HasDistortion reports whether any distortion coefficient is nonzero.
func (m Model) HasDistortion() bool {
	for _, k := range m.Distortion {
		if k != 0 {
			return true
		}
	}
	return false
}

func (m Model) coeff(i int) float64 {
	if i < len(m.Distortion) {
		return m.Distortion[i]
	}
	return 0
}

// Distort applies the lens model to an ideal normalized image point.
func (m Model) Distort(x, y float64) (float64, float64) {
	if !m.HasDistortion() {
		return x, y
	}
	k1, k2, p1, p2, k3 := m.coeff(0), m.coeff(1), m.coeff(2), m.coeff(3), m.coeff(4)
	k4, k5, k6 := m.coeff(5), m.coeff(6), m.coeff(7)

	r2 := x*x + y*y
	r4 := r2 * r2
	r6 := r4 * r2
	radial := (1 + k1*r2 + k2*r4 + k3*r6) / (1 + k4*r2 + k5*r4 + k6*r6)
	xd := x*radial + 2*p1*x*y + p2*(r2+2*x*x)
	yd := y*radial + p1*(r2+2*y*y) + 2*p2*x*y
	return xd, yd
}

// Undistort inverts Distort by fixed-point iteration.
func (m Model) Undistort(xd, yd float64) (float64, float64) {
	if !m.HasDistortion() {
		return xd, yd
	}
	k1, k2, p1, p2, k3 := m.coeff(0), m.coeff(1), m.coeff(2), m.coeff(3), m.coeff(4)
	k4, k5, k6 := m.coeff(5), m.coeff(6), m.coeff(7)

	x, y := xd, yd
	for i := 0; i < undistortIterations; i++ {
		r2 := x*x + y*y
		r4 := r2 * r2
		r6 := r4 * r2
		icdist := (1 + k4*r2 + k5*r4 + k6*r6) / (1 + k1*r2 + k2*r4 + k3*r6)
		if math.IsNaN(icdist) || math.IsInf(icdist, 0) || icdist < 0 {
			// diverged, the point is far outside the calibrated field
			return xd, yd
		}
		dx := 2*p1*x*y + p2*(r2+2*x*x)
		dy := p1*(r2+2*y*y) + 2*p2*x*y
		x = (xd - dx) * icdist
		y = (yd - dy) * icdist
	}
	return x, y
}

// ToPixel maps an ideal normalized point through distortion and intrinsics.
func (m Model) ToPixel(x, y float64) geometry.Point2D {
	xd, yd := m.Distort(x, y)
	return geometry.Point2D{
		X: m.FX*xd + m.Skew*yd + m.CX,
		Y: m.FY*yd + m.CY,
	}
}

// Normalize maps a pixel to an ideal (undistorted) normalized image point.
func (m Model) Normalize(p geometry.Point2D) (float64, float64) {
	yd := (p.Y - m.CY) / m.FY
	xd := (p.X - m.CX - m.Skew*yd) / m.FX
	return m.Undistort(xd, yd)
}

// Scaled returns the model rescaled from its calibration resolution to a
// frame of width x height. Models without a known calibration size are
// returned unchanged.
func (m Model) Scaled(width, height int) Model {
	if m.Identity || m.Width <= 0 || m.Height <= 0 || width <= 0 || height <= 0 {
		return m
	}
	if m.Width == width && m.Height == height {
		return m
	}
	sx := float64(width) / float64(m.Width)
	sy := float64(height) / float64(m.Height)

	out := m
	out.FX *= sx
	out.CX *= sx
	out.Skew *= sx
	out.FY *= sy
	out.CY *= sy
	out.Width = width
	out.Height = height
	out.Distortion = append([]float64(nil), m.Distortion...)
	return out
}

// ForFrame returns the model to use for frames of width x height. The
// identity fallback becomes an undistorted pinhole centred on the frame with
// a focal length equal to the longer frame side, roughly a 53 degree field of
// view. Calibrated models are rescaled.
func (m Model) ForFrame(width, height int) Model {
	if !m.Identity || width <= 0 || height <= 0 {
		return m.Scaled(width, height)
	}
	f := float64(max(width, height))
	return Model{
		FX:       f,
		FY:       f,
		CX:       float64(width) / 2,
		CY:       float64(height) / 2,
		Width:    width,
		Height:   height,
		Identity: true,
	}
}

// Valid reports whether the model can be used for projection.
func (m Model) Valid() bool {
	for _, v := range []float64{m.FX, m.FY, m.CX, m.CY, m.Skew} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	for _, k := range m.Distortion {
		if math.IsNaN(k) || math.IsInf(k, 0) {
			return false
		}
	}
	return m.FX > 0 && m.FY > 0
}
