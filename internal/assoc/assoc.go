// Public domain.

// Package assoc pairs extracted line positions with atlas wavelengths.
//
// A coarse anchor search first corrects the zero point of the initial
// dispersion guess.  Lines are then assigned to atlas entries by
// repeatedly taking the globally closest unassigned pair, and matches
// with outlying residuals are rejected before the dispersion fit.
package assoc

import (
	"fmt"
	"math"
	"sort"

	"github.com/soniakeys/specred/internal/atlas"
	"github.com/soniakeys/specred/internal/config"
	"github.com/soniakeys/specred/internal/dispersion"
	"github.com/soniakeys/specred/internal/robust"
)

// Match pairs extracted line Line with atlas entry Atlas.
type Match struct {
	Line     int     // index of the extracted line
	Atlas    int     // index into the atlas
	Pixel    float64 // extracted center
	Pred     float64 // wavelength predicted for Pixel
	Wave     float64 // atlas wavelength
	Resid    float64 // |Wave - Pred|
	Rejected bool
}

// Anchor is the pairing that best corrects the zero point.
type Anchor struct {
	Line, Atlas int
	Shift       float64 // added to the zero-order coefficient
	Score       float64 // sum of squared nearest-atlas distances
}

// Options control association.
type Options struct {
	Window float64 // anchor search half window, wavelength units
	Cut    float64 // outlier multiplier
	Order  int     // dispersion polynomial degree
}

// OptionsFrom takes association options from a configuration.
func OptionsFrom(c *config.Config) Options {
	return Options{Window: c.AnchorWindow, Cut: c.OutlierCut, Order: c.FitOrder}
}

// Result is a completed association and dispersion fit.
type Result struct {
	Anchor    Anchor
	Shifted   dispersion.Solution // guess after the anchor shift
	Matches   []Match
	Solution  dispersion.Solution
	RMS       float64
	NUsed     int
	NRejected int
}

// FindAnchor tries every pairing of an extracted line with an atlas line
// within window of its predicted wavelength.  Each pairing shifts the
// zero point of sol to make the pair exact and is scored over all lines.
// The best scoring pairing is returned with sol shifted to it.
func FindAnchor(centers []float64, l atlas.List, sol dispersion.Solution, window float64) (dispersion.Solution, Anchor, error) {
	pred := make([]float64, len(centers))
	for i, c := range centers {
		pred[i] = sol.Wavelength(c)
	}
	best := Anchor{Line: -1, Score: math.Inf(1)}
	used := make([]bool, len(l))
	for i, p := range pred {
		for j := sort.SearchFloat64s(l, p-window); j < len(l) && l[j] <= p+window; j++ {
			shift := l[j] - p
			if s := score(pred, shift, l, window, used); s < best.Score {
				best = Anchor{Line: i, Atlas: j, Shift: shift, Score: s}
			}
		}
	}
	if best.Line < 0 {
		return sol, best, fmt.Errorf("no atlas line within %g of any of %d extracted lines",
			window, len(centers))
	}
	return sol.Shift(best.Shift), best, nil
}

// score sums, over lines in order, the squared distance from the shifted
// prediction to the nearest atlas line not yet taken.  A line finding
// none left costs window squared.
func score(pred []float64, shift float64, l atlas.List, window float64, used []bool) float64 {
	clear(used)
	s := 0.
	for _, p := range pred {
		w := p + shift
		i := sort.SearchFloat64s(l, w)
		a, b := i-1, i
		for a >= 0 && used[a] {
			a--
		}
		for b < len(l) && used[b] {
			b++
		}
		k := -1
		switch {
		case a >= 0 && b < len(l):
			k = a
			if l[b]-w < w-l[a] {
				k = b
			}
		case a >= 0:
			k = a
		case b < len(l):
			k = b
		}
		if k < 0 {
			s += window * window
			continue
		}
		used[k] = true
		d := l[k] - w
		s += d * d
	}
	return s
}

// Greedy assigns predicted wavelengths to atlas lines one to one by
// repeatedly taking the closest remaining pair and retiring its row and
// column.  Matches are returned in prediction order; predictions left
// over when the atlas runs out are unmatched.
func Greedy(pred []float64, l atlas.List) []Match {
	type pair struct {
		i, j int
		d    float64
	}
	pairs := make([]pair, 0, len(pred)*len(l))
	for i, p := range pred {
		for j, w := range l {
			pairs = append(pairs, pair{i, j, math.Abs(w - p)})
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].d < pairs[b].d })
	row := make([]bool, len(pred))
	col := make([]bool, len(l))
	var ms []Match
	for _, p := range pairs {
		if len(ms) == len(pred) {
			break
		}
		if row[p.i] || col[p.j] {
			continue
		}
		row[p.i], col[p.j] = true, true
		ms = append(ms, Match{Line: p.i, Atlas: p.j, Pred: pred[p.i], Wave: l[p.j], Resid: p.d})
	}
	sort.Slice(ms, func(a, b int) bool { return ms[a].Line < ms[b].Line })
	return ms
}

// Reject marks matches whose residual exceeds the median residual plus
// cut times the mean absolute deviation about the median.  It returns
// the number rejected.
func Reject(ms []Match, cut float64) int {
	if len(ms) == 0 {
		return 0
	}
	r := make([]float64, len(ms))
	for i, m := range ms {
		r[i] = m.Resid
	}
	med := robust.Median(r)
	lim := med + cut*robust.MeanAbsDev(r, med)
	n := 0
	for i := range ms {
		ms[i].Rejected = ms[i].Resid > lim
		if ms[i].Rejected {
			n++
		}
	}
	return n
}

// Associate matches extracted centers to the atlas starting from guess,
// and fits a dispersion solution to the surviving pairs.
func Associate(centers []float64, l atlas.List, guess dispersion.Solution, opt Options) (*Result, error) {
	sol, anc, err := FindAnchor(centers, l, guess, opt.Window)
	if err != nil {
		return nil, err
	}
	pred := make([]float64, len(centers))
	for i, c := range centers {
		pred[i] = sol.Wavelength(c)
	}
	res := &Result{Anchor: anc, Shifted: sol, Matches: Greedy(pred, l)}
	for i := range res.Matches {
		res.Matches[i].Pixel = centers[res.Matches[i].Line]
	}
	res.NRejected = Reject(res.Matches, opt.Cut)

	var pix, wave []float64
	for _, m := range res.Matches {
		if !m.Rejected {
			pix = append(pix, m.Pixel)
			wave = append(wave, m.Wave)
		}
	}
	res.NUsed = len(pix)
	if res.NUsed <= opt.Order {
		return res, fmt.Errorf("%d lines survive association, order %d needs %d",
			res.NUsed, opt.Order, opt.Order+1)
	}
	res.Solution, res.RMS, err = dispersion.Fit(pix, wave, guess.RefPix, opt.Order)
	if err != nil {
		return res, err
	}
	return res, nil
}
