package pose

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	lmInitialLambda = 1e-3
	lmMaxLambda     = 1e10
	lmMinStep       = 1e-12
	lmMinImprove    = 1e-12
)

// refine minimizes the (optionally weighted) pixel reprojection error over
// the six pose parameters with Levenberg-Marquardt. It returns the refined
// pose and the number of accepted steps. The input pose is returned when no
// step improves it.
func refine(initial Pose, c correspondences, weights []float64, maxIter int) (Pose, int) {
	n := len(c.object)
	sqrtW := make([]float64, n)
	for i := range sqrtW {
		sqrtW[i] = 1
		if weights != nil {
			sqrtW[i] = math.Sqrt(weights[i])
		}
	}

	residuals := func(y, x []float64) {
		p := FromRVec(r3.Vector{X: x[0], Y: x[1], Z: x[2]}, r3.Vector{X: x[3], Y: x[4], Z: x[5]})
		for i, obj := range c.object {
			proj := projectOne(p, c.cam, obj)
			y[2*i] = sqrtW[i] * (proj.X - c.image[i].X)
			y[2*i+1] = sqrtW[i] * (proj.Y - c.image[i].Y)
		}
	}

	rv := initial.RVec()
	x := []float64{rv.X, rv.Y, rv.Z, initial.Translation.X, initial.Translation.Y, initial.Translation.Z}
	r := make([]float64, 2*n)
	residuals(r, x)
	cost := floats.Dot(r, r)
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return initial, 0
	}

	jac := mat.NewDense(2*n, 6, nil)
	settings := &fd.JacobianSettings{Formula: fd.Central}
	lambda := lmInitialLambda
	trial := make([]float64, 6)
	trialR := make([]float64, 2*n)
	accepted := 0

	for iter := 0; iter < maxIter; iter++ {
		fd.Jacobian(jac, residuals, x, settings)

		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		var g mat.VecDense
		g.MulVec(jac.T(), mat.NewVecDense(2*n, r))

		improved := false
		var step mat.VecDense
		for lambda < lmMaxLambda {
			a := mat.NewSymDense(6, nil)
			for i := 0; i < 6; i++ {
				for j := i; j < 6; j++ {
					a.SetSym(i, j, jtj.At(i, j))
				}
				a.SetSym(i, i, jtj.At(i, i)*(1+lambda)+1e-12)
			}
			var chol mat.Cholesky
			if ok := chol.Factorize(a); !ok {
				lambda *= 10
				continue
			}
			if err := chol.SolveVecTo(&step, &g); err != nil {
				lambda *= 10
				continue
			}
			for i := range trial {
				trial[i] = x[i] - step.AtVec(i)
			}
			residuals(trialR, trial)
			trialCost := floats.Dot(trialR, trialR)
			if trialCost < cost {
				improved = true
				copy(x, trial)
				copy(r, trialR)
				gain := cost - trialCost
				cost = trialCost
				lambda = math.Max(lambda/10, 1e-12)
				accepted++
				if gain < lmMinImprove*(1+cost) {
					return poseFromParams(x), accepted
				}
				break
			}
			lambda *= 10
		}
		if !improved || floats.Norm(step.RawVector().Data, 2) < lmMinStep {
			break
		}
	}
	return poseFromParams(x), accepted
}

func poseFromParams(x []float64) Pose {
	return FromRVec(r3.Vector{X: x[0], Y: x[1], Z: x[2]}, r3.Vector{X: x[3], Y: x[4], Z: x[5]})
}
