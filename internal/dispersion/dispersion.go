// Public domain.

// Package dispersion fits and evaluates pixel to wavelength solutions.
package dispersion

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Solution maps pixel p to wavelength sum Coeffs[k] (p-RefPix)^k.
type Solution struct {
	RefPix float64
	Coeffs []float64
}

// Order is the polynomial degree.
func (s Solution) Order() int { return len(s.Coeffs) - 1 }

// Wavelength evaluates the solution at pixel p.
func (s Solution) Wavelength(p float64) float64 {
	d := p - s.RefPix
	w := 0.
	for k := len(s.Coeffs) - 1; k >= 0; k-- {
		w = w*d + s.Coeffs[k]
	}
	return w
}

// Slope returns dλ/dp at pixel p.
func (s Solution) Slope(p float64) float64 {
	d := p - s.RefPix
	w := 0.
	for k := len(s.Coeffs) - 1; k >= 1; k-- {
		w = w*d + float64(k)*s.Coeffs[k]
	}
	return w
}

// Pixel inverts the solution by Newton iteration from the linear
// estimate.  It returns NaN for a solution with zero slope.
func (s Solution) Pixel(w float64) float64 {
	if len(s.Coeffs) < 2 || s.Coeffs[1] == 0 {
		return math.NaN()
	}
	p := s.RefPix + (w-s.Coeffs[0])/s.Coeffs[1]
	for i := 0; i < 50; i++ {
		sl := s.Slope(p)
		if sl == 0 {
			return math.NaN()
		}
		dp := (s.Wavelength(p) - w) / sl
		p -= dp
		if math.Abs(dp) <= 1e-12*math.Max(1, math.Abs(p)) {
			break
		}
	}
	return p
}

// Shift returns a copy with the zero-order coefficient moved by dw.
func (s Solution) Shift(dw float64) Solution {
	c := append([]float64{}, s.Coeffs...)
	c[0] += dw
	return Solution{RefPix: s.RefPix, Coeffs: c}
}

// Fit returns the least squares polynomial of the given order through
// (pix, wave) pairs, and the rms wavelength residual.  The design matrix
// is built on pixel offsets scaled to [-1, 1] and solved by QR.
func Fit(pix, wave []float64, refPix float64, order int) (Solution, float64, error) {
	n := len(pix)
	switch {
	case order < 0:
		return Solution{}, 0, fmt.Errorf("negative order %d", order)
	case len(wave) != n:
		return Solution{}, 0, errors.New("pixel and wavelength counts differ")
	case n <= order:
		return Solution{}, 0, fmt.Errorf("%d points cannot determine order %d", n, order)
	}
	scale := 0.
	for _, p := range pix {
		scale = math.Max(scale, math.Abs(p-refPix))
	}
	if scale == 0 {
		scale = 1
	}
	a := mat.NewDense(n, order+1, nil)
	for i, p := range pix {
		u := (p - refPix) / scale
		v := 1.
		for k := 0; k <= order; k++ {
			a.Set(i, k, v)
			v *= u
		}
	}
	var qr mat.QR
	qr.Factorize(a)
	var x mat.Dense
	if err := qr.SolveTo(&x, false, mat.NewDense(n, 1, append([]float64{}, wave...))); err != nil {
		return Solution{}, 0, fmt.Errorf("dispersion fit: %w", err)
	}
	s := Solution{RefPix: refPix, Coeffs: make([]float64, order+1)}
	f := 1.
	for k := range s.Coeffs {
		s.Coeffs[k] = x.At(k, 0) / f
		f *= scale
	}
	ss := 0.
	for i, p := range pix {
		d := wave[i] - s.Wavelength(p)
		ss += d * d
	}
	return s, math.Sqrt(ss / float64(n)), nil
}
