// Public domain.

// Package atlas reads reference line lists of known lamp wavelengths.
//
// The file format is one wavelength per line.  Blank lines and lines
// starting with # are ignored.
package atlas

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// List is an ascending list of reference wavelengths.
type List []float64

// Read reads a line list.  The result is sorted.
func Read(r io.Reader) (List, error) {
	var l List
	s := bufio.NewScanner(r)
	for ln := 1; s.Scan(); ln++ {
		t := strings.TrimSpace(s.Text())
		if t == "" || t[0] == '#' {
			continue
		}
		w, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", ln, err)
		}
		l = append(l, w)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if len(l) == 0 {
		return nil, fmt.Errorf("no wavelengths")
	}
	slices.Sort(l)
	return l, nil
}

// ReadFile reads line list file fn.
func ReadFile(fn string) (List, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	l, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	return l, nil
}

// Within returns the sub-list of wavelengths in [lo, hi].  The bounds
// may be given in either order.
func (l List) Within(lo, hi float64) List {
	if hi < lo {
		lo, hi = hi, lo
	}
	i := sort.SearchFloat64s(l, lo)
	j := sort.Search(len(l), func(k int) bool { return l[k] > hi })
	return l[i:j]
}

// Nearest returns the index of the wavelength closest to w, or -1 for
// an empty list.
func (l List) Nearest(w float64) int {
	if len(l) == 0 {
		return -1
	}
	i := sort.SearchFloat64s(l, w)
	switch {
	case i == 0:
		return 0
	case i == len(l):
		return i - 1
	case w-l[i-1] <= l[i]-w:
		return i - 1
	}
	return i
}
