// Public domain.

// Package synth makes synthetic lamp spectra and line lists.
package synth

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	xrand "golang.org/x/exp/rand"

	"github.com/soniakeys/specred/internal/atlas"
	"github.com/soniakeys/specred/internal/dispersion"
	"github.com/soniakeys/specred/internal/voigt"
)

// Line is one emission line, pixel units.
type Line struct {
	Center      float64
	GaussFWHM   float64
	LorentzFWHM float64
	Area        float64
}

// Lamp describes a synthetic spectrum.
type Lamp struct {
	N         int       // pixels
	Pad       int       // zero samples at each end
	Continuum []float64 // polynomial in pixel
	Lines     []Line
	Noise     float64 // Gaussian sigma; 0 for none
	Seed      uint64
}

// Flux renders the lamp.  The same Seed gives the same noise.
func (l *Lamp) Flux() []float64 {
	f := make([]float64, l.N)
	var rnd *xrand.Rand
	if l.Noise > 0 {
		rnd = xrand.New(&xrand.PCGSource{})
		rnd.Seed(l.Seed)
	}
	for i := l.Pad; i < l.N-l.Pad; i++ {
		x := float64(i)
		v := 0.
		for k := len(l.Continuum) - 1; k >= 0; k-- {
			v = v*x + l.Continuum[k]
		}
		for _, ln := range l.Lines {
			v += voigt.Profile(x, ln.Center, ln.GaussFWHM, ln.LorentzFWHM, ln.Area)
		}
		if rnd != nil {
			v += l.Noise * rnd.NormFloat64()
		}
		f[i] = v
	}
	return f
}

// Place returns a line at the pixel position of each atlas wavelength
// under sol that falls inside [lo, hi).  All lines get the same shape.
func Place(al atlas.List, sol dispersion.Solution, lo, hi, gauss, lorentz, area float64) []Line {
	var ls []Line
	for _, w := range al {
		p := sol.Pixel(w)
		if p >= lo && p < hi {
			ls = append(ls, Line{p, gauss, lorentz, area})
		}
	}
	return ls
}

// Atlas returns n wavelengths from start with spacings that cycle
// through steps.  Uneven spacing keeps the list free of self-similar
// shifts.
func Atlas(start float64, n int, steps ...float64) atlas.List {
	if len(steps) == 0 {
		steps = []float64{7, 11, 5, 13, 9}
	}
	l := make(atlas.List, n)
	w := start
	for i := range l {
		l[i] = w
		w += steps[i%len(steps)]
	}
	return l
}

// Header is the set of "# KEY = value" lines of a spectrum file.
type Header map[string]string

// WriteSpectrum writes the text spectrum format: header lines sorted by
// key, then one intensity per line.
func WriteSpectrum(w io.Writer, h Header, flux []float64) error {
	b := bufio.NewWriter(w)
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "# %s = %s\n", k, h[k])
	}
	for _, v := range flux {
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		b.WriteByte('\n')
	}
	return b.Flush()
}

// WriteAtlas writes one wavelength per line.
func WriteAtlas(w io.Writer, l atlas.List) error {
	b := bufio.NewWriter(w)
	for _, v := range l {
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		b.WriteByte('\n')
	}
	return b.Flush()
}

// WriteFile creates fn and writes to it with wf.
func WriteFile(fn string, wf func(io.Writer) error) error {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	if err := wf(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", fn, err)
	}
	return f.Close()
}
