// Public domain.

// Package extract finds emission lines in a comparison lamp spectrum.
//
// The spectrum is modeled as a polynomial continuum plus a sum of Voigt
// profiles.  Profiles are added one at a time at the peak of the current
// residual and all profiles are refit jointly after each addition.
package extract

import (
	"errors"
	"fmt"
	"math"

	"github.com/soniakeys/specred/internal/atlas"
	"github.com/soniakeys/specred/internal/config"
	"github.com/soniakeys/specred/internal/dispersion"
	"github.com/soniakeys/specred/internal/nlfit"
	"github.com/soniakeys/specred/internal/robust"
	"github.com/soniakeys/specred/internal/voigt"
)

// Spectrum is a one dimensional intensity array.
type Spectrum struct {
	Name   string
	Flux   []float64
	RefPix float64 // optical center, pixels of Flux
}

// Line is a fitted profile.  Positions and widths are in pixels of the
// untrimmed spectrum.
type Line struct {
	Center      float64
	GaussFWHM   float64
	LorentzFWHM float64
	Area        float64

	CenterErr  float64
	GaussErr   float64
	LorentzErr float64
	AreaErr    float64
}

// Options control extraction.
type Options struct {
	ContinuumDegree int
	Fraction        float64 // of atlas lines expected to be found
	WidthFixed      [2]bool // Gaussian, Lorentzian
	InitialWidth    float64 // Gaussian FWHM of a new profile
	MaxWidth        float64
	MaxIter         int
}

// OptionsFrom takes extraction options from a configuration.
func OptionsFrom(c *config.Config) Options {
	return Options{
		ContinuumDegree: c.ContinuumDegree,
		Fraction:        c.ExpectedLineFraction,
		WidthFixed:      c.WidthFixed,
		InitialWidth:    c.InitialWidth,
		MaxWidth:        c.MaxWidth,
		MaxIter:         c.MaxIterations,
	}
}

// Result is a completed extraction.
type Result struct {
	Lines     []Line
	Continuum []float64 // coefficients in scaled pixel offset
	Model     []float64 // over Lo:Hi
	RedChi2   float64
	Lo, Hi    int     // trimmed range of the input
	RefPix    float64 // optical center in trimmed pixels
	Target    int
}

// CountError reports an extraction that found a number of lines other
// than the target.
type CountError struct {
	File      string
	Got, Want int
}

func (e *CountError) Error() string {
	return fmt.Sprintf("%s: extracted %d lines, expected %d", e.File, e.Got, e.Want)
}

// Trim returns the range lo:hi of flux remaining after dropping leading
// and trailing samples that are non-finite or exactly zero, and refPix
// expressed in the trimmed array.  A non-finite sample inside the range
// is an error.
func Trim(flux []float64, refPix float64) (lo, hi int, ref float64, err error) {
	usable := func(v float64) bool { return v != 0 && !math.IsNaN(v) && !math.IsInf(v, 0) }
	for lo < len(flux) && !usable(flux[lo]) {
		lo++
	}
	hi = len(flux)
	for hi > lo && !usable(flux[hi-1]) {
		hi--
	}
	if lo == hi {
		return 0, 0, 0, errors.New("no usable samples")
	}
	for i := lo; i < hi; i++ {
		if math.IsNaN(flux[i]) || math.IsInf(flux[i], 0) {
			return 0, 0, 0, fmt.Errorf("non-finite sample at pixel %d", i)
		}
	}
	return lo, hi, refPix - float64(lo), nil
}

// Target returns the number of lines to extract from pixels lo:hi: the
// count of atlas lines falling there under solution s, times frac,
// rounded.
func Target(l atlas.List, s dispersion.Solution, lo, hi int, frac float64) int {
	n := len(l.Within(s.Wavelength(float64(lo)), s.Wavelength(float64(hi-1))))
	return int(math.Round(float64(n) * frac))
}

// model is the continuum and profile sum over trimmed data.
type model struct {
	deg    int
	xc, xs float64 // continuum offset and scale
}

func (m model) eval(x float64, p []float64) float64 {
	u := (x - m.xc) / m.xs
	y := 0.
	for k := m.deg; k >= 0; k-- {
		y = y*u + p[k]
	}
	for i := m.deg + 1; i+3 < len(p); i += 4 {
		y += voigt.Profile(x, p[i], p[i+1], p[i+2], p[i+3])
	}
	return y
}

// Lines extracts lines from s.  The target count comes from the atlas
// lines that guess places on the spectrum.  A result is returned with a
// *CountError when the count found differs from the target.
func Lines(s *Spectrum, guess dispersion.Solution, l atlas.List, opt Options) (*Result, error) {
	lo, hi, ref, err := Trim(s.Flux, s.RefPix)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name, err)
	}
	res := &Result{Lo: lo, Hi: hi, RefPix: ref}
	res.Target = Target(l, guess, lo, hi, opt.Fraction)
	if res.Target < 1 {
		return nil, fmt.Errorf("%s: no atlas lines expected in pixels %d:%d", s.Name, lo, hi)
	}

	n := hi - lo
	x := make([]float64, n)
	y := s.Flux[lo:hi]
	for i := range x {
		x[i] = float64(lo + i)
	}
	m := model{deg: opt.ContinuumDegree, xc: float64(lo+hi-1) / 2, xs: math.Max(1, float64(n-1)/2)}
	prob := nlfit.Problem{X: x, Y: y, Model: m.eval}
	fo := nlfit.Options{MaxIter: opt.MaxIter}

	params := make([]nlfit.Param, m.deg+1)
	params[0].Value = robust.Median(y)
	fit, err := nlfit.Fit(prob, params, fo)
	if err != nil && !errors.Is(err, nlfit.ErrNotConverged) {
		return nil, fmt.Errorf("%s: continuum: %w", s.Name, err)
	}
	setValues(params, fit.Params)
	prev := fit.RedChi2

	resid := make([]float64, n)
	for nl := 0; nl < res.Target; nl++ {
		pk := 0
		for i := range resid {
			resid[i] = y[i] - m.eval(x[i], fit.Params)
			if resid[i] > resid[pk] {
				pk = i
			}
		}
		trial := append(append([]nlfit.Param{}, params...),
			nlfit.Param{Value: x[pk]},
			nlfit.Param{Value: opt.InitialWidth, Fixed: opt.WidthFixed[0],
				Limited: [2]bool{true, true}, Limits: [2]float64{0, opt.MaxWidth}},
			nlfit.Param{Fixed: opt.WidthFixed[1],
				Limited: [2]bool{true, true}, Limits: [2]float64{0, opt.MaxWidth}},
			nlfit.Param{Value: math.Max(resid[pk], 0), Limited: [2]bool{true, false}},
		)
		tf, err := nlfit.Fit(prob, trial, fo)
		if err != nil && !errors.Is(err, nlfit.ErrNotConverged) {
			return nil, fmt.Errorf("%s: line %d: %w", s.Name, nl+1, err)
		}
		if tf.RedChi2 >= prev {
			// last profile did not help
			break
		}
		params, fit, prev = trial, tf, tf.RedChi2
		setValues(params, fit.Params)
	}

	// final joint refit without limits
	for i := range params {
		params[i].Limited = [2]bool{}
	}
	fit, err = nlfit.Fit(prob, params, fo)
	if err != nil {
		return nil, fmt.Errorf("%s: final refit: %w", s.Name, err)
	}

	res.Continuum = append([]float64{}, fit.Params[:m.deg+1]...)
	for i := m.deg + 1; i+3 < len(fit.Params); i += 4 {
		p, e := fit.Params[i:i+4], fit.Errors[i:i+4]
		res.Lines = append(res.Lines, Line{
			Center:      p[0],
			GaussFWHM:   math.Abs(p[1]),
			LorentzFWHM: math.Abs(p[2]),
			Area:        p[3],
			CenterErr:   e[0],
			GaussErr:    e[1],
			LorentzErr:  e[2],
			AreaErr:     e[3],
		})
	}
	res.Model = make([]float64, n)
	for i := range x {
		res.Model[i] = m.eval(x[i], fit.Params)
	}
	res.RedChi2 = fit.RedChi2
	if len(res.Lines) != res.Target {
		return res, &CountError{File: s.Name, Got: len(res.Lines), Want: res.Target}
	}
	return res, nil
}

func setValues(params []nlfit.Param, v []float64) {
	for i := range params {
		params[i].Value = v[i]
	}
}

// Centers returns the line centers of r.
func (r *Result) Centers() []float64 {
	c := make([]float64, len(r.Lines))
	for i, l := range r.Lines {
		c[i] = l.Center
	}
	return c
}
