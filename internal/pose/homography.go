package pose

import (
	"fmt"
	"math"

	"marker-ar/pkg/geometry"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// minRankRatio is the smallest ratio between the 8th and the largest
// singular value of the DLT system before the correspondences are treated
// as rank deficient.
const minRankRatio = 1e-9

// similarity is an isotropic scale plus translation used to condition the
// DLT system: p' = s*(p - c).
type similarity struct {
	cx, cy, s float64
}

func normalizer(pts []geometry.Point2D) (similarity, error) {
	c := geometry.Centroid(pts)
	var mean float64
	for _, p := range pts {
		mean += p.Distance(c)
	}
	mean /= float64(len(pts))
	if mean < 1e-12 || math.IsNaN(mean) || math.IsInf(mean, 0) {
		return similarity{}, ErrDegenerate
	}
	return similarity{cx: c.X, cy: c.Y, s: math.Sqrt2 / mean}, nil
}

func (t similarity) apply(p geometry.Point2D) geometry.Point2D {
	return geometry.Point2D{X: t.s * (p.X - t.cx), Y: t.s * (p.Y - t.cy)}
}

func (t similarity) matrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		t.s, 0, -t.s * t.cx,
		0, t.s, -t.s * t.cy,
		0, 0, 1,
	})
}

func (t similarity) inverse() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1 / t.s, 0, t.cx,
		0, 1 / t.s, t.cy,
		0, 0, 1,
	})
}

// Homography estimates the 3x3 matrix H with dst ~ H*src from at least four
// correspondences using the normalized direct linear transform.
func Homography(src, dst []geometry.Point2D) (*mat.Dense, error) {
	if len(src) != len(dst) {
		return nil, fmt.Errorf("%w: %d source vs %d destination points", ErrMismatch, len(src), len(dst))
	}
	n := len(src)
	if n < 4 {
		return nil, fmt.Errorf("%w: need at least 4 points, got %d", ErrDegenerate, n)
	}

	ts, err := normalizer(src)
	if err != nil {
		return nil, err
	}
	td, err := normalizer(dst)
	if err != nil {
		return nil, err
	}

	// pad the minimal case to a square system so the null vector is the last
	// right singular vector
	rows := 2 * n
	if rows < 9 {
		rows = 9
	}
	a := mat.NewDense(rows, 9, nil)
	for i := 0; i < n; i++ {
		s := ts.apply(src[i])
		d := td.apply(dst[i])
		a.SetRow(2*i, []float64{-s.X, -s.Y, -1, 0, 0, 0, d.X * s.X, d.X * s.Y, d.X})
		a.SetRow(2*i+1, []float64{0, 0, 0, -s.X, -s.Y, -1, d.Y * s.X, d.Y * s.Y, d.Y})
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return nil, fmt.Errorf("%w: homography SVD did not converge", ErrDegenerate)
	}
	values := svd.Values(nil)
	if values[0] <= 0 || values[7]/values[0] < minRankRatio {
		return nil, fmt.Errorf("%w: correspondences are rank deficient", ErrDegenerate)
	}

	var v mat.Dense
	svd.VTo(&v)
	hn := mat.NewDense(3, 3, nil)
	for i := 0; i < 9; i++ {
		hn.Set(i/3, i%3, v.At(i, 8))
	}

	// undo conditioning: H = Td^-1 * Hn * Ts
	var h mat.Dense
	h.Product(td.inverse(), hn, ts.matrix())
	if z := h.At(2, 2); math.Abs(z) > 1e-15 {
		h.Scale(1/z, &h)
	}
	return &h, nil
}

// DecomposeHomography recovers the pose of the z=0 plane from a homography
// that maps plane coordinates to normalized image coordinates. The camera
// must see the plane from its front half-space.
func DecomposeHomography(h mat.Matrix) (Pose, error) {
	h1 := r3.Vector{X: h.At(0, 0), Y: h.At(1, 0), Z: h.At(2, 0)}
	h2 := r3.Vector{X: h.At(0, 1), Y: h.At(1, 1), Z: h.At(2, 1)}
	h3 := r3.Vector{X: h.At(0, 2), Y: h.At(1, 2), Z: h.At(2, 2)}

	norm := (h1.Norm() + h2.Norm()) / 2
	if norm < 1e-12 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return Pose{}, fmt.Errorf("%w: homography has no scale", ErrDegenerate)
	}
	lambda := 1 / norm
	if h3.Z < 0 {
		lambda = -lambda
	}
	r1 := h1.Mul(lambda)
	r2 := h2.Mul(lambda)
	t := h3.Mul(lambda)
	r3v := r1.Cross(r2)

	approx := mat.NewDense(3, 3, []float64{
		r1.X, r2.X, r3v.X,
		r1.Y, r2.Y, r3v.Y,
		r1.Z, r2.Z, r3v.Z,
	})
	rot, err := nearestRotation(approx)
	if err != nil {
		return Pose{}, err
	}
	p := Pose{Rotation: rot, Translation: t}
	if !p.IsFinite() || t.Z <= 0 {
		return Pose{}, fmt.Errorf("%w: plane is not in front of the camera", ErrDegenerate)
	}
	return p, nil
}

// nearestRotation returns the rotation closest to m in the Frobenius norm.
func nearestRotation(m *mat.Dense) ([3][3]float64, error) {
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDFull); !ok {
		return [3][3]float64{}, fmt.Errorf("%w: rotation SVD did not converge", ErrDegenerate)
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var r mat.Dense
	r.Mul(&u, v.T())
	if mat.Det(&r) < 0 {
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		r.Mul(&u, v.T())
	}

	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = r.At(i, j)
		}
	}
	return out, nil
}
