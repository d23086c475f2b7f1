// Public domain.

// Package nlfit fits nonlinear models to data by bounded
// Levenberg-Marquardt least squares.
//
// Parameters may be fixed or limited on either side.  Trial steps are
// projected back into the limits, so the search stays feasible at every
// iteration.  The Jacobian is computed by forward differences.
package nlfit

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrNotConverged is returned with the last iterate when the iteration
// limit is reached.
var ErrNotConverged = errors.New("fit did not converge")

// Param is one model parameter with its constraints.
type Param struct {
	Value   float64
	Fixed   bool
	Limited [2]bool // lower, upper
	Limits  [2]float64
}

// clamp returns v projected into the limits of p.
func (p *Param) clamp(v float64) float64 {
	if p.Limited[0] && v < p.Limits[0] {
		v = p.Limits[0]
	}
	if p.Limited[1] && v > p.Limits[1] {
		v = p.Limits[1]
	}
	return v
}

// Model evaluates a model at x for the full parameter vector p.
type Model func(x float64, p []float64) float64

// Problem is data to fit.  Sigma may be nil for unit weights.
type Problem struct {
	X, Y  []float64
	Sigma []float64
	Model Model
}

// Options control the iteration.  Zero values select defaults.
type Options struct {
	MaxIter int     // default 200
	FTol    float64 // relative chi-square decrease, default 1e-10
	XTol    float64 // relative parameter step, default 1e-10
}

// Result is the outcome of a fit.
type Result struct {
	Params    []float64
	Errors    []float64 // 1-sigma, zero for fixed parameters
	Chi2      float64
	DOF       int
	RedChi2   float64
	Iter      int
	Converged bool
}

const (
	lambda0   = 1e-3
	lambdaMax = 1e12
)

// Fit minimizes chi-square of prob over params, returning the best
// values found.  With MaxIter exhausted the result is returned along
// with ErrNotConverged.
func Fit(prob Problem, params []Param, opt Options) (*Result, error) {
	if opt.MaxIter <= 0 {
		opt.MaxIter = 200
	}
	if opt.FTol <= 0 {
		opt.FTol = 1e-10
	}
	if opt.XTol <= 0 {
		opt.XTol = 1e-10
	}
	n := len(prob.X)
	if n == 0 || len(prob.Y) != n || prob.Sigma != nil && len(prob.Sigma) != n {
		return nil, errors.New("nlfit: mismatched or empty data")
	}
	p := make([]float64, len(params))
	var free []int
	for i := range params {
		p[i] = params[i].clamp(params[i].Value)
		if !params[i].Fixed {
			free = append(free, i)
		}
	}
	f := &fitter{prob: prob, params: params, free: free, w: make([]float64, n)}
	for i := range f.w {
		f.w[i] = 1
		if prob.Sigma != nil && prob.Sigma[i] > 0 {
			f.w[i] = 1 / prob.Sigma[i]
		}
	}
	res := &Result{DOF: n - len(free)}
	if res.DOF < 1 {
		res.DOF = 1
	}
	r := make([]float64, n)
	chi2 := f.resid(p, r)
	if len(free) == 0 {
		res.Params, res.Errors = p, make([]float64, len(p))
		res.Chi2, res.RedChi2, res.Converged = chi2, chi2/float64(res.DOF), true
		return res, nil
	}

	m := len(free)
	jac := mat.NewDense(n, m, nil)
	a := mat.NewSymDense(m, nil)
	g := mat.NewVecDense(m, nil)
	trial := make([]float64, len(p))
	rt := make([]float64, n)
	lambda := lambda0
	small := 0 // consecutive accepted steps below tolerance
iterate:
	for res.Iter = 1; res.Iter <= opt.MaxIter; res.Iter++ {
		f.jacobian(p, r, jac)
		a.SymOuterK(1, jac.T())
		g.MulVec(jac.T(), mat.NewVecDense(n, r))
		// parameters on a limit with the gradient pointing out stay put
		pinned := make([]bool, m)
		for k, i := range free {
			pr := &params[i]
			pinned[k] = pr.Limited[0] && p[i] <= pr.Limits[0] && g.AtVec(k) < 0 ||
				pr.Limited[1] && p[i] >= pr.Limits[1] && g.AtVec(k) > 0
			if pinned[k] {
				g.SetVec(k, 0)
			}
		}
		for {
			damped := mat.NewSymDense(m, nil)
			damped.CopySym(a)
			for k := 0; k < m; k++ {
				if pinned[k] {
					for j := 0; j < m; j++ {
						damped.SetSym(k, j, 0)
					}
					damped.SetSym(k, k, 1)
					continue
				}
				d := a.At(k, k)
				if d == 0 {
					d = 1e-12
				}
				damped.SetSym(k, k, d*(1+lambda))
			}
			var chol mat.Cholesky
			var step mat.VecDense
			if chol.Factorize(damped) && chol.SolveVecTo(&step, g) == nil {
				copy(trial, p)
				maxRel := 0.
				for k, i := range free {
					trial[i] = params[i].clamp(p[i] + step.AtVec(k))
					d := math.Abs(trial[i]-p[i]) / (math.Abs(p[i]) + opt.XTol)
					maxRel = math.Max(maxRel, d)
				}
				c := f.resid(trial, rt)
				if c < chi2 {
					dec := chi2 - c
					copy(p, trial)
					copy(r, rt)
					chi2 = c
					lambda = math.Max(lambda/10, 1e-12)
					if dec <= opt.FTol*chi2 || maxRel <= opt.XTol {
						small++
					} else {
						small = 0
					}
					if chi2 == 0 || small == 2 {
						res.Converged = true
						break iterate
					}
					continue iterate
				}
			}
			lambda *= 10
			if lambda > lambdaMax {
				// no downhill step remains
				res.Converged = true
				break iterate
			}
		}
	}
	if res.Iter > opt.MaxIter {
		res.Iter = opt.MaxIter
	}

	res.Params = p
	res.Chi2 = chi2
	res.RedChi2 = chi2 / float64(res.DOF)
	res.Errors = make([]float64, len(p))
	f.jacobian(p, r, jac)
	a.SymOuterK(1, jac.T())
	var chol mat.Cholesky
	if chol.Factorize(a) {
		var cov mat.SymDense
		if chol.InverseTo(&cov) == nil {
			scale := 1.
			if prob.Sigma == nil {
				scale = res.RedChi2
			}
			for k, i := range free {
				res.Errors[i] = math.Sqrt(math.Abs(cov.At(k, k)) * scale)
			}
		}
	}
	if !res.Converged {
		return res, ErrNotConverged
	}
	return res, nil
}

type fitter struct {
	prob   Problem
	params []Param
	free   []int
	w      []float64
}

// resid fills r with weighted residuals (y - model) and returns their
// sum of squares.
func (f *fitter) resid(p, r []float64) float64 {
	s := 0.
	for i, x := range f.prob.X {
		r[i] = (f.prob.Y[i] - f.prob.Model(x, p)) * f.w[i]
		s += r[i] * r[i]
	}
	return s
}

// jacobian fills jac with the derivatives of the weighted model, by
// forward differences stepping away from an upper limit.
func (f *fitter) jacobian(p, r []float64, jac *mat.Dense) {
	pp := append([]float64{}, p...)
	rh := make([]float64, len(r))
	for k, i := range f.free {
		h := 1e-7 * math.Max(math.Abs(p[i]), 1e-2)
		if pr := &f.params[i]; pr.Limited[1] && p[i]+h > pr.Limits[1] {
			h = -h
		}
		pp[i] = p[i] + h
		f.resid(pp, rh)
		pp[i] = p[i]
		for j := range r {
			// r = (y - m) w, so dm w = r - rh
			jac.Set(j, k, (r[j]-rh[j])/h)
		}
	}
}
