// Public domain.

package dispersion_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniakeys/specred/internal/dispersion"
)

var truth = dispersion.Solution{RefPix: 512, Coeffs: []float64{6300, .5, 2e-5, -3e-9}}

func TestRoundTrip(t *testing.T) {
	var pix, wave []float64
	for p := 0.; p < 1024; p += 8 {
		pix = append(pix, p)
		wave = append(wave, truth.Wavelength(p))
	}
	s, rms, err := dispersion.Fit(pix, wave, truth.RefPix, truth.Order())
	require.NoError(t, err)
	assert.Less(t, rms, 1e-9)
	for k, c := range truth.Coeffs {
		assert.InEpsilon(t, c, s.Coeffs[k], 1e-6, "coefficient %d", k)
	}
	assert.InDelta(t, 6300, s.Coeffs[0], 1e-9)
	assert.InDelta(t, .5, s.Coeffs[1], 1e-12)
}

func TestWavelength(t *testing.T) {
	assert.Equal(t, 6300.0, truth.Wavelength(512))
	assert.InDelta(t, 6300+.5*10+2e-5*100-3e-9*1000, truth.Wavelength(522), 1e-9)
	assert.InDelta(t, .5+2*2e-5*10-3*3e-9*100, truth.Slope(522), 1e-14)
}

func TestPixel(t *testing.T) {
	for _, p := range []float64{0, 100.25, 512, 1023} {
		assert.InDelta(t, p, truth.Pixel(truth.Wavelength(p)), 1e-9)
	}
	assert.True(t, math.IsNaN(dispersion.Solution{Coeffs: []float64{1}}.Pixel(1)))
}

func TestShift(t *testing.T) {
	s := truth.Shift(1.5)
	assert.Equal(t, 6301.5, s.Coeffs[0])
	assert.Equal(t, 6300.0, truth.Coeffs[0], "original unchanged")
	assert.Equal(t, truth.Coeffs[1:], s.Coeffs[1:])
}

func TestFitErrors(t *testing.T) {
	_, _, err := dispersion.Fit([]float64{1, 2}, []float64{1, 2}, 0, 2)
	assert.Error(t, err)
	_, _, err = dispersion.Fit([]float64{1, 2, 3}, []float64{1, 2}, 0, 1)
	assert.Error(t, err)
}

func entry(file string, day, c0 float64) dispersion.Entry {
	return dispersion.Entry{File: file, Day: day,
		Solution: dispersion.Solution{RefPix: 512, Coeffs: []float64{c0, .5}}}
}

func TestSort(t *testing.T) {
	tb := dispersion.Table{entry("c", 2, 0), entry("b", 1, 0), entry("a", 2, 0)}
	tb.Sort()
	var got []string
	for _, e := range tb {
		got = append(got, e.File)
	}
	if d := cmp.Diff([]string{"b", "a", "c"}, got); d != "" {
		t.Fatal(d)
	}
}

func TestMarkOutliers(t *testing.T) {
	var tb dispersion.Table
	for i := 0; i < 12; i++ {
		c0 := 6300.01
		if i%2 == 1 {
			c0 = 6299.99
		}
		tb = append(tb, entry(string(rune('a'+i)), float64(i), c0))
	}
	tb[6].Solution.Coeffs[0] = 6305
	assert.Equal(t, 1, tb.MarkOutliers(2, 3))
	for i, e := range tb {
		assert.Equal(t, i == 6, e.Flagged, "entry %d", i)
	}
	kept := tb.Kept(false)
	assert.Len(t, kept, 11)
	for _, e := range kept {
		assert.NotEqual(t, "g", e.File)
	}
	assert.Len(t, tb.Kept(true), 12)
}

func TestMarkOutliersIdentical(t *testing.T) {
	tb := dispersion.Table{entry("a", 1, 6300), entry("b", 2, 6300),
		entry("c", 3, 6301), entry("d", 4, 6300), entry("e", 5, 6300)}
	assert.Equal(t, 1, tb.MarkOutliers(2, 3))
	assert.True(t, tb[2].Flagged)
}

func TestMarkOutliersEdge(t *testing.T) {
	// b sits next to the first entry; a is judged against four neighbours,
	// not against b alone.
	tb := dispersion.Table{entry("a", 1, 6300), entry("b", 2, 6305),
		entry("c", 3, 6300), entry("d", 4, 6300), entry("e", 5, 6300),
		entry("f", 6, 6300)}
	assert.Equal(t, 1, tb.MarkOutliers(2, 3))
	assert.False(t, tb[0].Flagged)
	assert.True(t, tb[1].Flagged)
}

func TestMarkOutliersAgreeing(t *testing.T) {
	tb := dispersion.Table{entry("a", 1, 6300), entry("b", 2, 6300+1e-7),
		entry("c", 3, 6300), entry("d", 4, 6300), entry("e", 5, 6300)}
	assert.Zero(t, tb.MarkOutliers(2, 3))
}
