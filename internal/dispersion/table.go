// Public domain.

package dispersion

import (
	"math"
	"sort"

	"github.com/soniakeys/specred/internal/robust"
)

// Entry is the solution for one spectrum.
type Entry struct {
	File      string
	Day       float64 // observation day, the sort key
	Solution  Solution
	RMS       float64
	NUsed     int
	NRejected int
	Flagged   bool // inconsistent with neighbours in time
}

// Table collects the solutions of one directory of spectra.
type Table []Entry

// Sort orders the table by observation day, then file name.
func (t Table) Sort() {
	sort.SliceStable(t, func(i, j int) bool {
		if t[i].Day != t[j].Day {
			return t[i].Day < t[j].Day
		}
		return t[i].File < t[j].File
	})
}

// minSpread is the smallest robust spread of a coefficient as a fraction
// of its median.  Solutions agreeing to this precision are not outliers.
const minSpread = 1e-7

// MarkOutliers flags entries with any coefficient further than cut
// robust spreads from the median of that coefficient over window entries
// either side in the sorted table.  Near either end of the table the
// neighbourhood shifts inward so that it still holds 2*window entries
// where the table allows.  The spread of a coefficient is its scaled MAD
// over the whole table, but no less than minSpread of its median.  Only
// coefficients present in every entry take part.  MarkOutliers returns
// the number of entries flagged.
func (t Table) MarkOutliers(window int, cut float64) int {
	nc := math.MaxInt
	for _, e := range t {
		nc = min(nc, len(e.Solution.Coeffs))
	}
	if len(t) < 3 || nc == 0 {
		return 0
	}
	spread := make([]float64, nc)
	col := make([]float64, len(t))
	for k := range spread {
		for i, e := range t {
			col[i] = e.Solution.Coeffs[k]
		}
		spread[k] = robust.MAD(col)
		if f := minSpread * math.Abs(robust.Median(col)); spread[k] < f {
			spread[k] = f
		}
	}
	flagged := make([]bool, len(t))
	nb := make([]float64, 0, 2*window)
	for i := range t {
		for k := 0; k < nc && !flagged[i]; k++ {
			nb = nb[:0]
			lo, hi := max(0, i-window), min(len(t)-1, i+window)
			lo = max(0, hi-2*window)
			hi = min(len(t)-1, lo+2*window)
			for j := lo; j <= hi; j++ {
				if j != i {
					nb = append(nb, t[j].Solution.Coeffs[k])
				}
			}
			if len(nb) < 2 || spread[k] == 0 {
				continue
			}
			if math.Abs(t[i].Solution.Coeffs[k]-robust.Median(nb)) > cut*spread[k] {
				flagged[i] = true
			}
		}
	}
	n := 0
	for i, f := range flagged {
		t[i].Flagged = f
		if f {
			n++
		}
	}
	return n
}

// Kept returns the entries to persist: all of them with keepFlagged,
// otherwise those not flagged.
func (t Table) Kept(keepFlagged bool) Table {
	if keepFlagged {
		return append(Table{}, t...)
	}
	var k Table
	for _, e := range t {
		if !e.Flagged {
			k = append(k, e)
		}
	}
	return k
}
