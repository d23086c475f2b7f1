// Public domain.

package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/soniakeys/exit"
	"github.com/soniakeys/meeus/v3/julian"

	"github.com/soniakeys/specred/internal/dispersion"
	"github.com/soniakeys/specred/internal/synth"
)

const versionString = "synthlamp version 0.1 Go source."
const copyrightString = "Public domain."

func main() {
	defer exit.Handler()

	flag.Usage = func() {
		os.Stderr.WriteString(`Usage:
  synthlamp [options]   Write an atlas and lamp spectra.
  synthlamp -v          Display version and copyright.

Options:
  -o <dir>       output directory, default current
  -n <count>     spectra, default 3
  -px <pixels>   spectrum length, default 1024
  -w0 <wave>     wavelength at the reference pixel, default 6300
  -disp <d>      wavelength per pixel, default 0.5
  -drift <d>     zero point change per spectrum, default 0.3
  -noise <s>     noise sigma, default 0.5
  -seed <n>      noise seed, default 1
  -date <date>   DATE-OBS of the first spectrum, default 2013-07-04

For full documentation:
   go doc github.com/soniakeys/specred/synthlamp
`)
	}
	out := flag.String("o", ".", "")
	n := flag.Int("n", 3, "")
	px := flag.Int("px", 1024, "")
	w0 := flag.Float64("w0", 6300, "")
	disp := flag.Float64("disp", .5, "")
	drift := flag.Float64("drift", .3, "")
	noise := flag.Float64("noise", .5, "")
	seed := flag.Uint64("seed", 1, "")
	date := flag.String("date", "2013-07-04", "")
	vers := flag.Bool("v", false, "")
	flag.Parse()
	if *vers {
		fmt.Println(versionString)
		fmt.Println(copyrightString)
		os.Exit(0)
	}
	if flag.NArg() > 0 || *n < 1 || *px < 64 {
		flag.Usage()
		os.Exit(1)
	}
	var y, m, d int
	if _, err := fmt.Sscanf(*date, "%d-%d-%d", &y, &m, &d); err != nil {
		exit.Log("invalid -date: " + *date)
	}
	jd0 := julian.CalendarGregorianToJD(y, m, float64(d))
	if err := os.MkdirAll(*out, 0o755); err != nil {
		exit.Log(err)
	}

	ref := float64(*px) / 2
	sol := dispersion.Solution{RefPix: ref, Coeffs: []float64{*w0, *disp}}
	span := float64(*px) * *disp
	al := synth.Atlas(*w0-span/2-20, int(span/9)+6)
	if err := synth.WriteFile(filepath.Join(*out, "lamp.atlas"), func(w io.Writer) error {
		return synth.WriteAtlas(w, al)
	}); err != nil {
		exit.Log(err)
	}

	for i := 0; i < *n; i++ {
		s := sol.Shift(float64(i) * *drift)
		// every other atlas line is lit, with varying strength
		var lit []float64
		for j := 0; j < len(al); j += 2 {
			lit = append(lit, al[j])
		}
		lines := synth.Place(lit, s, 8, float64(*px-8), 2.5, .4, 0)
		for j := range lines {
			lines[j].Area = 100 + 60*float64(j%4)
		}
		l := synth.Lamp{
			N:         *px,
			Pad:       4,
			Continuum: []float64{20, .002},
			Lines:     lines,
			Noise:     *noise,
			Seed:      *seed + uint64(i),
		}
		// exposures an hour apart from 01:00
		jd := jd0 + float64(i+1)/24
		yy, mm, dd := julian.JDToCalendar(jd)
		sec := int(math.Round((dd - math.Floor(dd)) * 86400))
		h := synth.Header{
			"DATE-OBS": fmt.Sprintf("%d-%02d-%02d", yy, mm, int(dd)),
			"UT":       fmt.Sprintf("%02d:%02d:%02d", sec/3600, sec/60%60, sec%60),
			"REFPIX":   strconv.FormatFloat(ref, 'g', -1, 64),
		}
		fn := filepath.Join(*out, fmt.Sprintf("arc%02d.txt", i+1))
		if err := synth.WriteFile(fn, func(w io.Writer) error {
			return synth.WriteSpectrum(w, h, l.Flux())
		}); err != nil {
			exit.Log(err)
		}
		fmt.Println(fn, "zero point", s.Coeffs[0])
	}
}
