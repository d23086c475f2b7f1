// Public domain.

package assoc_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniakeys/specred/internal/assoc"
	"github.com/soniakeys/specred/internal/atlas"
	"github.com/soniakeys/specred/internal/dispersion"
)

func TestSyntheticThreeLines(t *testing.T) {
	l := atlas.List{6300, 6302.5, 6310}
	truth := dispersion.Solution{RefPix: 100, Coeffs: []float64{6305, .1}}
	var centers []float64
	for _, w := range []float64{6300.05, 6302.48, 6310.02} {
		centers = append(centers, truth.Pixel(w))
	}
	guess := truth.Shift(1.2)

	res, err := assoc.Associate(centers, l, guess, assoc.Options{Window: 5, Cut: 3, Order: 1})
	require.NoError(t, err)
	require.Len(t, res.Matches, 3)
	for i, m := range res.Matches {
		assert.Equal(t, i, m.Line)
		assert.Equal(t, i, m.Atlas, "line %d", i)
		assert.Less(t, m.Resid, .1)
		assert.False(t, m.Rejected)
	}
	assert.Equal(t, 3, res.NUsed)
	assert.InDelta(t, -1.2, res.Anchor.Shift, .1)
	assert.InDelta(t, 6305, res.Solution.Coeffs[0], .05)
	assert.InDelta(t, .1, res.Solution.Coeffs[1], 1e-3)
}

func TestOutlierLine(t *testing.T) {
	l := atlas.List{6300, 6310, 6320, 6330, 6340, 6350, 6360, 6370, 6500}
	truth := dispersion.Solution{RefPix: 100, Coeffs: []float64{6335, .5}}
	var centers []float64
	for k, w := range l[:8] {
		centers = append(centers, truth.Pixel(w+.01*float64(k%3)-.01))
	}
	// 50 units from its nearest free atlas line
	centers = append(centers[:4], append([]float64{truth.Pixel(6450)}, centers[4:]...)...)

	res, err := assoc.Associate(centers, l, truth.Shift(1), assoc.Options{Window: 5, Cut: 3, Order: 1})
	require.NoError(t, err)
	require.Len(t, res.Matches, 9)
	assert.Equal(t, 1, res.NRejected)
	assert.Equal(t, 8, res.NUsed)
	for _, m := range res.Matches {
		assert.Equal(t, m.Line == 4, m.Rejected, "line %d", m.Line)
	}
	assert.InDelta(t, 50, res.Matches[4].Resid, .1)
	assert.InDelta(t, 6335, res.Solution.Coeffs[0], .02)
	assert.InDelta(t, .5, res.Solution.Coeffs[1], 1e-3)
}

func TestGreedy(t *testing.T) {
	// nearest-per-line would give both predictions atlas 0
	ms := assoc.Greedy([]float64{1.0, 1.2}, atlas.List{1.15, 2.0})
	got := [][2]int{}
	for _, m := range ms {
		got = append(got, [2]int{m.Line, m.Atlas})
	}
	if d := cmp.Diff([][2]int{{0, 1}, {1, 0}}, got); d != "" {
		t.Fatal(d)
	}
	assert.InDelta(t, 1.0, ms[0].Resid, 1e-12)

	// more predictions than atlas lines
	ms = assoc.Greedy([]float64{1, 2, 3}, atlas.List{2.1, 2.9})
	require.Len(t, ms, 2)
	assert.Equal(t, 1, ms[0].Line)
	assert.Equal(t, 2, ms[1].Line)
}

func TestReject(t *testing.T) {
	var ms []assoc.Match
	for _, r := range []float64{.01, .05, .02, .08, .03, .04, .06, .02, 50} {
		ms = append(ms, assoc.Match{Resid: r})
	}
	assert.Equal(t, 1, assoc.Reject(ms, 3))
	for i, m := range ms {
		assert.Equal(t, i == 8, m.Rejected)
	}

	same := []assoc.Match{{Resid: .02}, {Resid: .02}, {Resid: .02}}
	assert.Zero(t, assoc.Reject(same, 3))
	assert.Zero(t, assoc.Reject(nil, 3))
}

func TestNoAnchor(t *testing.T) {
	_, _, err := assoc.FindAnchor([]float64{10, 20}, atlas.List{7000},
		dispersion.Solution{Coeffs: []float64{6300, 1}}, 5)
	assert.Error(t, err)
}

func TestTooFewSurvive(t *testing.T) {
	_, err := assoc.Associate([]float64{0}, atlas.List{6300},
		dispersion.Solution{Coeffs: []float64{6300.5, 1}}, assoc.Options{Window: 5, Cut: 3, Order: 1})
	assert.Error(t, err)
}
