// Public domain.

package calib

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/soniakeys/specred/internal/extract"
	"github.com/soniakeys/specred/internal/obsday"
)

// Input is a spectrum read from a file.
type Input struct {
	File     string
	Day      float64 // observation day
	Spectrum extract.Spectrum
}

var rxHeader = regexp.MustCompile(`^#[ \t]*([A-Za-z0-9_-]+)[ \t]*=[ \t]*(.*?)[ \t]*$`)

// ReadSpectrum reads the text spectrum format.  Lines "# KEY = value"
// are header cards; DATE-OBS is required, UT and REFPIX are optional.
// Other lines starting with # are comments.  The rest hold one intensity
// each; nan and inf are accepted.  REFPIX defaults to the middle sample.
func ReadSpectrum(r io.Reader, name string) (*Input, error) {
	hdr := map[string]string{}
	var flux []float64
	s := bufio.NewScanner(r)
	for ln := 1; s.Scan(); ln++ {
		t := strings.TrimSpace(s.Text())
		switch {
		case t == "":
		case t[0] == '#':
			if m := rxHeader.FindStringSubmatch(t); m != nil {
				hdr[strings.ToUpper(m[1])] = m[2]
			}
		default:
			v, err := strconv.ParseFloat(t, 64)
			if err != nil {
				return nil, &InputError{name, fmt.Errorf("line %d: %w", ln, err)}
			}
			flux = append(flux, v)
		}
	}
	if err := s.Err(); err != nil {
		return nil, &InputError{name, err}
	}
	if len(flux) == 0 {
		return nil, &InputError{name, errors.New("no intensities")}
	}
	date, ok := hdr["DATE-OBS"]
	if !ok {
		return nil, &InputError{name, errors.New("missing DATE-OBS")}
	}
	day, err := obsday.Day(date, hdr["UT"])
	if err != nil {
		return nil, &InputError{name, err}
	}
	ref := float64(len(flux)) / 2
	if v, ok := hdr["REFPIX"]; ok {
		if ref, err = cast.ToFloat64E(v); err != nil {
			return nil, &InputError{name, fmt.Errorf("REFPIX: %w", err)}
		}
	}
	return &Input{
		File:     name,
		Day:      day,
		Spectrum: extract.Spectrum{Name: name, Flux: flux, RefPix: ref},
	}, nil
}

// ReadSpectrumFile reads spectrum file fn.
func ReadSpectrumFile(fn string) (*Input, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, &InputError{fn, err}
	}
	defer f.Close()
	return ReadSpectrum(f, fn)
}
