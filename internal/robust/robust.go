// Public domain.

// Package robust has the order statistics used by the cuts and priors.
// Means and standard deviations come from gonum's stat package.
package robust

import (
	"math"
	"slices"
)

// Median returns the median of x, the mean of the two middle values for
// even lengths.  x is not modified.  The median of nothing is NaN.
func Median(x []float64) float64 {
	n := len(x)
	if n == 0 {
		return math.NaN()
	}
	s := slices.Clone(x)
	slices.Sort(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) * .5
}

// MeanAbsDev returns the mean absolute deviation of x about c.
func MeanAbsDev(x []float64, c float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	var s float64
	for _, v := range x {
		s += math.Abs(v - c)
	}
	return s / float64(len(x))
}

// MAD returns the median absolute deviation of x about its median, scaled
// by 1.4826 to estimate a normal standard deviation.
func MAD(x []float64) float64 {
	m := Median(x)
	d := make([]float64, len(x))
	for i, v := range x {
		d[i] = math.Abs(v - m)
	}
	return 1.4826 * Median(d)
}
