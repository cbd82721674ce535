package pose

import (
	"math"
	"math/rand"
	"testing"

	"marker-ar/internal/camera"
	"marker-ar/pkg/geometry"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCamera() camera.Model {
	return camera.Model{FX: 800, FY: 790, CX: 320, CY: 240, Width: 640, Height: 480}
}

func unitSquare() []geometry.Point3D {
	return []geometry.Point3D{
		geometry.NewPoint3D(0, 0, 0),
		geometry.NewPoint3D(1, 0, 0),
		geometry.NewPoint3D(1, 1, 0),
		geometry.NewPoint3D(0, 1, 0),
	}
}

func tiltedPose() Pose {
	return FromRVec(r3.Vector{X: 0.3, Y: -0.2, Z: 0.15}, r3.Vector{X: -0.4, Y: -0.3, Z: 5})
}

func assertPoseNear(t *testing.T, want, got Pose, tol float64) {
	t.Helper()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, want.Rotation[i][j], got.Rotation[i][j], tol, "R[%d][%d]", i, j)
		}
	}
	assert.InDelta(t, want.Translation.X, got.Translation.X, tol)
	assert.InDelta(t, want.Translation.Y, got.Translation.Y, tol)
	assert.InDelta(t, want.Translation.Z, got.Translation.Z, tol*10)
}

func TestRodriguesRoundTrip(t *testing.T) {
	for _, v := range []r3.Vector{
		{X: 0, Y: 0, Z: 0},
		{X: 1e-10, Y: 0, Z: 0},
		{X: 0.3, Y: -0.2, Z: 0.15},
		{X: 0, Y: 2.5, Z: 0},
		{X: math.Pi - 1e-6, Y: 0, Z: 0},
		r3.Vector{X: 1, Y: 1, Z: 0}.Normalize().Mul(math.Pi - 1e-3),
	} {
		got := FromRVec(v, r3.Vector{}).RVec()
		assert.InDelta(t, v.X, got.X, 1e-6, "rvec %v", v)
		assert.InDelta(t, v.Y, got.Y, 1e-6, "rvec %v", v)
		assert.InDelta(t, v.Z, got.Z, 1e-6, "rvec %v", v)
	}
}

func TestRotationIsOrthonormal(t *testing.T) {
	r := Rodrigues(r3.Vector{X: 0.7, Y: -1.1, Z: 0.4})
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var dot float64
			for k := 0; k < 3; k++ {
				dot += r[k][i] * r[k][j]
			}
			want := 0.0
			if i == j {
				want = 1
			}
			assert.InDelta(t, want, dot, 1e-12)
		}
	}
}

func TestProjectScalesWithDepth(t *testing.T) {
	cam := testCamera()
	near := Pose{Rotation: Identity().Rotation, Translation: r3.Vector{Z: 2}}
	far := Pose{Rotation: Identity().Rotation, Translation: r3.Vector{Z: 4}}
	pts := []geometry.Point3D{geometry.NewPoint3D(0.5, -0.25, 0), geometry.NewPoint3D(-1, 1, 0)}

	a := Project(near, cam, pts)
	b := Project(far, cam, pts)
	require.Len(t, a, 2)
	for i := range pts {
		// offsets from the principal point halve when depth doubles
		assert.InDelta(t, (a[i].X-cam.CX)/2, b[i].X-cam.CX, 1e-9)
		assert.InDelta(t, (a[i].Y-cam.CY)/2, b[i].Y-cam.CY, 1e-9)
	}

	// doubling planar points doubles the offset
	doubled := []geometry.Point3D{pts[0].Mul(2), pts[1].Mul(2)}
	c := Project(near, cam, doubled)
	for i := range pts {
		assert.InDelta(t, 2*(a[i].X-cam.CX), c[i].X-cam.CX, 1e-9)
	}
}

func TestProjectPrincipalPlane(t *testing.T) {
	p := Pose{Rotation: Identity().Rotation}
	pts := []geometry.Point3D{geometry.NewPoint3D(1, 1, 0), geometry.NewPoint3D(0, 0, -1)}
	got := Project(p, testCamera(), pts)
	assert.False(t, got[0].IsFinite())
	assert.True(t, got[1].IsFinite())
	assert.Equal(t, []bool{false, false}, InFront(p, pts))
}

func TestSolvePoseRoundTrip(t *testing.T) {
	cam := testCamera()
	want := tiltedPose()
	obj := unitSquare()
	img := Project(want, cam, obj)

	sol, err := NewSolver(DefaultSolverParams()).SolvePose(obj, img, cam)
	require.NoError(t, err)
	assert.Less(t, sol.RMSError, 1e-6)
	assertPoseNear(t, want, sol.Pose, 1e-5)
	assert.Equal(t, []int{0, 1, 2, 3}, sol.Inliers)

	for i, p := range Project(sol.Pose, cam, obj) {
		assert.Less(t, p.Distance(img[i]), 1e-3)
	}
}

func TestSolvePoseWithDistortion(t *testing.T) {
	cam := testCamera()
	cam.Distortion = []float64{-0.2, 0.05, 0.001, -0.0005, 0}
	want := tiltedPose()
	obj := unitSquare()
	img := Project(want, cam, obj)

	sol, err := NewSolver(DefaultSolverParams()).SolvePose(obj, img, cam)
	require.NoError(t, err)
	assert.Less(t, sol.RMSError, 1e-4)
	assertPoseNear(t, want, sol.Pose, 1e-4)
}

func TestSolvePoseNoisyCorners(t *testing.T) {
	cam := testCamera()
	obj := unitSquare()
	img := Project(tiltedPose(), cam, obj)
	noise := []geometry.Point2D{{X: 0.4, Y: -0.3}, {X: -0.2, Y: 0.5}, {X: 0.3, Y: 0.1}, {X: -0.5, Y: -0.2}}
	for i := range img {
		img[i] = img[i].Add(noise[i])
	}

	sol, err := NewSolver(DefaultSolverParams()).SolvePose(obj, img, cam)
	require.NoError(t, err)
	assert.Less(t, sol.RMSError, 2.0)
	assert.Greater(t, sol.Pose.Translation.Z, 0.0)
}

func TestSolvePoseIdentityCamera(t *testing.T) {
	// with unit intrinsics pixels act as normalized coordinates, so a marker
	// spanning ~100px sits very close to the camera
	cam := camera.IdentityModel()
	want := FromRVec(r3.Vector{X: 0.001, Y: -0.0015, Z: 0.1}, r3.Vector{X: 1.5, Y: 1.2, Z: 0.01})
	obj := unitSquare()
	img := Project(want, cam, obj)

	sol, err := NewSolver(DefaultSolverParams()).SolvePose(obj, img, cam)
	require.NoError(t, err)
	assert.Less(t, sol.RMSError, 1e-3)
	assert.Greater(t, sol.Pose.Translation.Z, 0.0)
	for i, p := range Project(sol.Pose, cam, obj) {
		assert.InDelta(t, img[i].X, p.X, 1e-3)
		assert.InDelta(t, img[i].Y, p.Y, 1e-3)
	}
}

func TestSolvePoseDegenerate(t *testing.T) {
	cam := testCamera()
	solver := NewSolver(DefaultSolverParams())

	t.Run("collinear image points", func(t *testing.T) {
		img := []geometry.Point2D{{X: 100, Y: 100}, {X: 200, Y: 100}, {X: 300, Y: 100}, {X: 150, Y: 300}}
		var err error
		require.NotPanics(t, func() { _, err = solver.SolvePose(unitSquare(), img, cam) })
		assert.ErrorIs(t, err, ErrDegenerate)
	})

	t.Run("coincident image points", func(t *testing.T) {
		img := []geometry.Point2D{{X: 100, Y: 100}, {X: 100, Y: 100}, {X: 100, Y: 100}, {X: 100, Y: 100}}
		_, err := solver.SolvePose(unitSquare(), img, cam)
		assert.ErrorIs(t, err, ErrDegenerate)
	})

	t.Run("too few points", func(t *testing.T) {
		img := Project(tiltedPose(), cam, unitSquare())
		_, err := solver.SolvePose(unitSquare()[:3], img[:3], cam)
		assert.ErrorIs(t, err, ErrDegenerate)
	})

	t.Run("non-finite image point", func(t *testing.T) {
		img := Project(tiltedPose(), cam, unitSquare())
		img[2].X = math.NaN()
		_, err := solver.SolvePose(unitSquare(), img, cam)
		assert.ErrorIs(t, err, ErrDegenerate)
	})

	t.Run("count mismatch", func(t *testing.T) {
		img := Project(tiltedPose(), cam, unitSquare())
		_, err := solver.SolvePose(unitSquare(), img[:3], cam)
		assert.ErrorIs(t, err, ErrMismatch)
	})

	t.Run("non-planar object", func(t *testing.T) {
		obj := unitSquare()
		obj[2].Z = 0.5
		img := Project(tiltedPose(), cam, obj)
		_, err := solver.SolvePose(obj, img, cam)
		assert.ErrorIs(t, err, ErrNonPlanar)
	})

	t.Run("invalid camera", func(t *testing.T) {
		img := Project(tiltedPose(), cam, unitSquare())
		_, err := solver.SolvePose(unitSquare(), img, camera.Model{})
		assert.ErrorIs(t, err, ErrInvalidCamera)
	})
}

func gridObject() []geometry.Point3D {
	var pts []geometry.Point3D
	for _, y := range []float64{0, 0.5, 1} {
		for _, x := range []float64{0, 0.5, 1} {
			pts = append(pts, geometry.NewPoint3D(x, y, 0))
		}
	}
	return pts
}

func TestSolvePoseRobustRejectsOutlier(t *testing.T) {
	cam := testCamera()
	want := tiltedPose()
	obj := gridObject()
	img := Project(want, cam, obj)
	img[4] = img[4].Add(geometry.Point2D{X: 60, Y: -45})

	params := DefaultSolverParams().WithMode(ModeRobust)
	sol, err := NewSolver(params).SolvePose(obj, img, cam)
	require.NoError(t, err)
	assert.NotContains(t, sol.Inliers, 4)
	assert.Len(t, sol.Inliers, len(obj)-1)
	assert.Less(t, sol.RMSError, 1e-3)
	assertPoseNear(t, want, sol.Pose, 1e-4)

	// the direct fit is pulled by the outlier
	direct, err := NewSolver(DefaultSolverParams()).SolvePose(obj, img, cam)
	require.NoError(t, err)
	assert.Greater(t, direct.RMSError, sol.RMSError)
}

func TestSolvePoseRobustNoConsensus(t *testing.T) {
	cam := testCamera()
	obj := gridObject()
	img := Project(tiltedPose(), cam, obj)
	// scatter every point so no four agree on a plane pose
	offsets := []geometry.Point2D{
		{X: 90, Y: 0}, {X: -80, Y: 40}, {X: 0, Y: 120}, {X: -70, Y: -90}, {X: 0, Y: 0},
		{X: 110, Y: -60}, {X: -40, Y: 130}, {X: 60, Y: 90}, {X: -120, Y: 20},
	}
	for i := range img {
		img[i] = img[i].Add(offsets[i])
	}

	params := DefaultSolverParams().WithMode(ModeRobust)
	params.RansacThreshold = 0.5
	_, err := NewSolver(params).SolvePose(obj, img, cam)
	assert.ErrorIs(t, err, ErrNoConsensus)
}

func TestSolvePoseRobustMinimalSet(t *testing.T) {
	cam := testCamera()
	want := tiltedPose()
	obj := unitSquare()
	img := Project(want, cam, obj)

	sol, err := NewSolver(DefaultSolverParams().WithMode(ModeRobust)).SolvePose(obj, img, cam)
	require.NoError(t, err)
	assertPoseNear(t, want, sol.Pose, 1e-5)
}

func TestSolvePoseRobustReweightsMinimalSet(t *testing.T) {
	cam := testCamera()
	obj := unitSquare()
	img := Project(tiltedPose(), cam, obj)
	img[2] = img[2].Add(geometry.Point2D{X: 15, Y: -9})

	direct, err := NewSolver(DefaultSolverParams()).SolvePose(obj, img, cam)
	require.NoError(t, err)

	params := DefaultSolverParams().WithMode(ModeRobust)
	params.HuberDelta = 0.01
	robust, err := NewSolver(params).SolvePose(obj, img, cam)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 3}, robust.Inliers)
	assert.Greater(t, robust.Pose.Translation.Z, 0.0)
	moved := direct.Pose.Translation.Sub(robust.Pose.Translation).Norm()
	assert.Greater(t, moved, 1e-6, "huber weights change the minimal-set fit")
}

func TestSolvePoseRobustIsDeterministic(t *testing.T) {
	cam := testCamera()
	var obj []geometry.Point3D
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			obj = append(obj, geometry.NewPoint3D(float64(x)/3, float64(y)/3, 0))
		}
	}
	img := Project(tiltedPose(), cam, obj)
	img[5] = img[5].Add(geometry.Point2D{X: 40, Y: 40})

	solver := NewSolver(DefaultSolverParams().WithMode(ModeRobust))
	a, err := solver.SolvePose(obj, img, cam)
	require.NoError(t, err)
	b, err := solver.SolvePose(obj, img, cam)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSamples(t *testing.T) {
	assert.Equal(t, 126, combinations(9, 4))
	assert.Equal(t, 0, combinations(3, 4))

	exhaustive := samples(6, 100, nil)
	assert.Len(t, exhaustive, 15)

	random := samples(20, 30, rand.New(rand.NewSource(7)))
	assert.Len(t, random, 30)
	for _, s := range random {
		require.Len(t, s, 4)
		seen := map[int]bool{}
		for _, i := range s {
			assert.False(t, seen[i])
			seen[i] = true
		}
	}
}

func TestHomographyMapsPoints(t *testing.T) {
	src := []geometry.Point2D{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	dst := []geometry.Point2D{{X: 10, Y: 20}, {X: 110, Y: 30}, {X: 105, Y: 140}, {X: 5, Y: 120}}

	h, err := Homography(src, dst)
	require.NoError(t, err)
	for i, s := range src {
		x := h.At(0, 0)*s.X + h.At(0, 1)*s.Y + h.At(0, 2)
		y := h.At(1, 0)*s.X + h.At(1, 1)*s.Y + h.At(1, 2)
		w := h.At(2, 0)*s.X + h.At(2, 1)*s.Y + h.At(2, 2)
		assert.InDelta(t, dst[i].X, x/w, 1e-8)
		assert.InDelta(t, dst[i].Y, y/w, 1e-8)
	}
}

func TestSolverParamsValidate(t *testing.T) {
	assert.NoError(t, DefaultSolverParams().Validate())
	assert.NoError(t, DefaultSolverParams().WithMode(ModeRobust).Validate())
	assert.Error(t, DefaultSolverParams().WithMode("lucky").Validate())

	p := DefaultSolverParams().WithMode(ModeRobust)
	p.RansacThreshold = 0
	assert.Error(t, p.Validate())

	p = DefaultSolverParams()
	p.MaxIterations = 0
	assert.Error(t, p.Validate())
}
