// Public domain.

// Package voigt evaluates area-normalized Voigt line profiles.
//
// The Faddeeva function is computed with the four-region rational
// approximation of Humlicek (1982, JQSRT 27, 437), good to about 1e-4
// relative everywhere in the upper half plane.
package voigt

import (
	"math"
	"math/cmplx"
)

const (
	fwhmToSigma = 1 / 2.3548200450309493 // 1 / (2 sqrt(2 ln 2))
	sqrt2Pi     = 2.5066282746310002
)

// Profile returns the value at x of a Voigt profile centered at center
// with the given Gaussian and Lorentzian full widths at half maximum,
// scaled to integrate to area.  Widths are taken as absolute values.
// With both widths zero the profile is zero everywhere.
//
// A zero Lorentzian width still goes through the Faddeeva approximation
// rather than an exact Gaussian, so the profile stays continuous in both
// widths for fitting.
func Profile(x, center, gaussFWHM, lorentzFWHM, area float64) float64 {
	sigma := math.Abs(gaussFWHM) * fwhmToSigma
	gamma := math.Abs(lorentzFWHM) / 2
	d := x - center
	switch {
	case sigma == 0 && gamma == 0:
		return 0
	case sigma == 0:
		return area * gamma / (math.Pi * (d*d + gamma*gamma))
	}
	z := complex(d, gamma) / complex(sigma*math.Sqrt2, 0)
	return area * real(Faddeeva(z)) / (sigma * sqrt2Pi)
}

// Faddeeva returns w(z) = exp(-z²) erfc(-iz) for Im(z) >= 0.
func Faddeeva(z complex128) complex128 {
	x, y := real(z), imag(z)
	t := complex(y, -x)
	s := math.Abs(x) + y
	switch {
	case s >= 15:
		return t * .5641896 / (.5 + t*t)
	case s >= 5.5:
		u := t * t
		return t * (1.410474 + u*.5641896) / (.75 + u*(3+u))
	case y >= .195*math.Abs(x)-.176:
		return (16.4955 + t*(20.20933+t*(11.96482+t*(3.778987+t*.5642236)))) /
			(16.4955 + t*(38.82363+t*(39.27121+t*(21.69274+t*(6.699398+t)))))
	}
	u := t * t
	return cmplx.Exp(u) - t*(36183.31-u*(3321.9905-u*(1540.787-u*(219.0313-u*
		(35.76683-u*(1.320522-u*.56419))))))/
		(32066.6-u*(24322.84-u*(9022.228-u*(2186.181-u*(364.2191-u*
			(61.57037-u*(1.841439-u)))))))
}

// FWHM returns the full width at half maximum of a Voigt profile, by the
// approximation of Olivero and Longbothum (1977), good to 0.02%.
func FWHM(gaussFWHM, lorentzFWHM float64) float64 {
	g, l := math.Abs(gaussFWHM), math.Abs(lorentzFWHM)
	return .5346*l + math.Sqrt(.2166*l*l+g*g)
}
