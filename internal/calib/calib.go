// Public domain.

// Package calib runs wavelength calibration of lamp spectra: line
// extraction, association with an atlas, and a dispersion fit, one
// spectrum at a time or as a concurrent batch.
package calib

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/soniakeys/specred/internal/assoc"
	"github.com/soniakeys/specred/internal/atlas"
	"github.com/soniakeys/specred/internal/config"
	"github.com/soniakeys/specred/internal/dispersion"
	"github.com/soniakeys/specred/internal/display"
	"github.com/soniakeys/specred/internal/extract"
	"github.com/soniakeys/specred/internal/logger"
	"github.com/soniakeys/specred/internal/nlfit"
	"github.com/soniakeys/specred/internal/obsday"
	"github.com/soniakeys/specred/internal/review"
)

// InputError reports a spectrum that cannot be calibrated as given.
type InputError struct {
	File string
	Err  error
}

func (e *InputError) Error() string { return e.File + ": " + e.Err.Error() }
func (e *InputError) Unwrap() error { return e.Err }

// Calibrator holds what calibration needs besides the spectra.
type Calibrator struct {
	Config *config.Config
	Atlas  atlas.List
	// Guess is the initial dispersion; nil means Config.Guess.
	Guess []float64
	Log   *slog.Logger
	Sink  display.Sink // nil means display.Nop
}

func (c *Calibrator) sink() display.Sink {
	if c.Sink == nil {
		return display.Nop{}
	}
	return c.Sink
}

// Spectrum calibrates one spectrum.  Errors are *InputError,
// *extract.CountError, or wrap nlfit.ErrNotConverged.
func (c *Calibrator) Spectrum(in *Input) (*dispersion.Entry, error) {
	log := logger.Or(c.Log).With("file", in.File)
	coeffs := c.Guess
	if coeffs == nil {
		coeffs = c.Config.Guess
	}
	if len(coeffs) < 2 {
		return nil, &InputError{in.File, errors.New("no initial dispersion guess")}
	}
	guess := dispersion.Solution{RefPix: in.Spectrum.RefPix, Coeffs: coeffs}
	sink := c.sink()

	xr, err := extract.Lines(&in.Spectrum, guess, c.Atlas, extract.OptionsFrom(c.Config))
	if xr != nil {
		if serr := sink.Extraction(in.File, xr.Lo, in.Spectrum.Flux[xr.Lo:xr.Hi], xr.Model, xr.Lines); serr != nil {
			log.Warn("extraction plot", "err", serr)
		}
	}
	if err != nil {
		return nil, classify(in.File, err)
	}
	log.Debug("extracted", "lines", len(xr.Lines), "target", xr.Target, "redchi2", xr.RedChi2)

	ar, err := assoc.Associate(xr.Centers(), c.Atlas, guess, assoc.OptionsFrom(c.Config))
	if err != nil {
		return nil, &InputError{in.File, err}
	}
	if serr := sink.Association(in.File, ar.Matches, ar.Solution); serr != nil {
		log.Warn("association plot", "err", serr)
	}
	log.Info("calibrated",
		"day", obsday.Format(in.Day),
		"shift", ar.Anchor.Shift,
		"used", ar.NUsed,
		"rejected", ar.NRejected,
		"rms", ar.RMS)
	return &dispersion.Entry{
		File:      in.File,
		Day:       in.Day,
		Solution:  ar.Solution,
		RMS:       ar.RMS,
		NUsed:     ar.NUsed,
		NRejected: ar.NRejected,
	}, nil
}

// classify passes convergence errors through and makes anything else an
// input error.
func classify(file string, err error) error {
	var ce *extract.CountError
	if errors.As(err, &ce) || errors.Is(err, nlfit.ErrNotConverged) {
		return err
	}
	return &InputError{file, err}
}

// File reads and calibrates spectrum file fn.
func (c *Calibrator) File(fn string) (*dispersion.Entry, error) {
	in, err := ReadSpectrumFile(fn)
	if err != nil {
		return nil, err
	}
	return c.Spectrum(in)
}

// Outcome is the result for one file of a batch.
type Outcome struct {
	File  string
	Entry *dispersion.Entry // nil on error
	Err   error
}

type job struct {
	fn  string
	rch chan Outcome
}

// Batch calibrates files on up to workers goroutines, 0 meaning
// GOMAXPROCS.  Outcomes are in the order of files.  A failure is
// logged and recorded in its outcome; the batch continues.
func (c *Calibrator) Batch(files []string, workers int) []Outcome {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	log := logger.Or(c.Log)
	// jobCh feeds workers.  tickCh carries the result channels in
	// submission order so results can be collected in that order.
	jobCh := make(chan job)
	tickCh := make(chan chan Outcome, workers*2)
	go func() {
		for _, fn := range files {
			rch := make(chan Outcome, 1)
			tickCh <- rch
			jobCh <- job{fn, rch}
		}
		close(jobCh)
		close(tickCh)
	}()
	for w := 0; w < workers; w++ {
		go func() {
			for j := range jobCh {
				e, err := c.File(j.fn)
				j.rch <- Outcome{j.fn, e, err}
			}
		}()
	}
	out := make([]Outcome, 0, len(files))
	for rch := range tickCh {
		o := <-rch
		if o.Err != nil {
			log.Warn("skipped", "file", o.File, "err", o.Err)
		}
		out = append(out, o)
	}
	return out
}

// Collect gathers the entries of successful outcomes into a sorted table
// and returns it with the number of failures.
func Collect(outs []Outcome) (dispersion.Table, int) {
	var t dispersion.Table
	failed := 0
	for _, o := range outs {
		if o.Err != nil {
			failed++
			continue
		}
		t = append(t, *o.Entry)
	}
	t.Sort()
	return t, failed
}

// Summary is the one-line description of an entry shown for review.
func Summary(e *dispersion.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  rms %.4g  used %d rejected %d  coeffs",
		e.File, obsday.Format(e.Day), e.RMS, e.NUsed, e.NRejected)
	for _, c := range e.Solution.Coeffs {
		fmt.Fprintf(&b, " %.6g", c)
	}
	if e.Flagged {
		b.WriteString("  FLAGGED")
	}
	return b.String()
}

// Review walks t with rv.  Next accepts the entry shown, Previous goes
// back to the one before, Run accepts it and the rest.  Quit stops; the
// entries accepted so far are returned with quit true.
func Review(t dispersion.Table, rv review.Reviewer) (accepted dispersion.Table, quit bool, err error) {
	acc := make([]bool, len(t))
	nv := review.NewNavigator(len(t))
	for nv.State() == review.At {
		i := nv.Pos()
		cmd := review.Next
		if nv.Asking() {
			if cmd, err = rv.Review(i, len(t), Summary(&t[i])); err != nil {
				break
			}
		}
		if cmd == review.Next || cmd == review.Run {
			acc[i] = true
		}
		nv.Step(cmd)
	}
	for i, ok := range acc {
		if ok {
			accepted = append(accepted, t[i])
		}
	}
	return accepted, nv.State() == review.Stopped, err
}
