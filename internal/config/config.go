// Public domain.

// Package config reads the specred configuration file.
//
// Empty lines and lines beginning with # are ignored.  Other lines have
// the form
//
//	key = value
//
// with white space optional.  Keys not listed in Config are an error.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cast"
)

// Config holds every recognized option.
type Config struct {
	// statistics and filter chain
	MinGoodSamples       int
	Chi2Cut              float64
	DopplerCut           float64
	SeparationCut        float64
	CloseToBoundFraction float64
	GenericObject        bool

	// extraction, association, dispersion
	FitOrder             int
	ContinuumDegree      int
	ExpectedLineFraction float64
	OutlierCut           float64
	MaxIterations        int
	WidthFixed           [2]bool // Gaussian, Lorentzian
	InitialWidth         float64
	MaxWidth             float64
	AnchorWindow         float64
	NeighborWindow       int
	KeepFlagged          bool
	Guess                []float64 // initial dispersion coefficients

	// run control
	Workers     int
	Interactive bool
	PlotDir     string
	LogJSON     bool
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		MinGoodSamples:       5,
		Chi2Cut:              10,
		DopplerCut:           .5,
		SeparationCut:        .2,
		CloseToBoundFraction: .01,
		GenericObject:        true,
		FitOrder:             2,
		ContinuumDegree:      1,
		ExpectedLineFraction: .5,
		OutlierCut:           3,
		MaxIterations:        200,
		InitialWidth:         2,
		MaxWidth:             8,
		AnchorWindow:         5,
		NeighborWindow:       2,
	}
}

var rxKeyValue = regexp.MustCompile(`^[ \t]*([A-Za-z0-9_]+)[ \t]*=[ \t]*(.*?)[ \t]*$`)

// Read parses a configuration, starting from defaults.
func Read(r io.Reader) (*Config, error) {
	c := Default()
	s := bufio.NewScanner(r)
	for ln := 1; s.Scan(); ln++ {
		l := strings.TrimSpace(s.Text())
		if l == "" || l[0] == '#' {
			continue
		}
		m := rxKeyValue.FindStringSubmatch(l)
		if m == nil {
			return nil, fmt.Errorf("config line %d: expected key = value: %s", ln, l)
		}
		if err := c.Set(m[1], m[2]); err != nil {
			return nil, fmt.Errorf("config line %d: %w", ln, err)
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ReadFile reads configuration file fn.  With required false a missing
// file yields the defaults.
func ReadFile(fn string, required bool) (*Config, error) {
	f, err := os.Open(fn)
	if err != nil {
		if !required && os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	defer f.Close()
	c, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	return c, nil
}

// Set assigns one option from its string value.
func (c *Config) Set(key, value string) (err error) {
	switch strings.ToLower(key) {
	case "min_good_samples":
		c.MinGoodSamples, err = cast.ToIntE(value)
	case "chi2_cut":
		c.Chi2Cut, err = cast.ToFloat64E(value)
	case "doppler_cut":
		c.DopplerCut, err = cast.ToFloat64E(value)
	case "separation_cut":
		c.SeparationCut, err = cast.ToFloat64E(value)
	case "close_to_bound_fraction":
		c.CloseToBoundFraction, err = cast.ToFloat64E(value)
	case "generic_object":
		c.GenericObject, err = cast.ToBoolE(value)
	case "fit_order":
		c.FitOrder, err = cast.ToIntE(value)
	case "continuum_degree":
		c.ContinuumDegree, err = cast.ToIntE(value)
	case "expected_line_fraction":
		c.ExpectedLineFraction, err = cast.ToFloat64E(value)
	case "outlier_cut":
		c.OutlierCut, err = cast.ToFloat64E(value)
	case "max_iterations":
		c.MaxIterations, err = cast.ToIntE(value)
	case "width_fixed":
		c.WidthFixed, err = boolPair(value)
	case "initial_width":
		c.InitialWidth, err = cast.ToFloat64E(value)
	case "max_width":
		c.MaxWidth, err = cast.ToFloat64E(value)
	case "anchor_window":
		c.AnchorWindow, err = cast.ToFloat64E(value)
	case "neighbor_window":
		c.NeighborWindow, err = cast.ToIntE(value)
	case "guess":
		c.Guess, err = floatList(value)
	case "keep_flagged":
		c.KeepFlagged, err = cast.ToBoolE(value)
	case "workers":
		c.Workers, err = cast.ToIntE(value)
	case "interactive":
		c.Interactive, err = cast.ToBoolE(value)
	case "plot_dir":
		c.PlotDir = value
	case "log_json":
		c.LogJSON, err = cast.ToBoolE(value)
	default:
		return fmt.Errorf("unrecognized option %q", key)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// boolPair parses "true,false" or "1 0".
func boolPair(s string) (p [2]bool, err error) {
	f := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(f) != 2 {
		return p, fmt.Errorf("want two booleans, got %q", s)
	}
	for i := range p {
		if p[i], err = cast.ToBoolE(f[i]); err != nil {
			return p, err
		}
	}
	return p, nil
}

// floatList parses comma or space separated numbers.
func floatList(s string) ([]float64, error) {
	f := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	l := make([]float64, len(f))
	for i, v := range f {
		var err error
		if l[i], err = cast.ToFloat64E(v); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Validate checks option ranges.
func (c *Config) Validate() error {
	switch {
	case c.MinGoodSamples < 2:
		return fmt.Errorf("min_good_samples must be at least 2, got %d", c.MinGoodSamples)
	case c.Chi2Cut <= 0:
		return fmt.Errorf("chi2_cut must be positive, got %g", c.Chi2Cut)
	case c.DopplerCut <= 0:
		return fmt.Errorf("doppler_cut must be positive, got %g", c.DopplerCut)
	case c.SeparationCut < 0:
		return fmt.Errorf("separation_cut must be non-negative, got %g", c.SeparationCut)
	case c.CloseToBoundFraction < 0 || c.CloseToBoundFraction >= .5:
		return fmt.Errorf("close_to_bound_fraction must be in [0, .5), got %g", c.CloseToBoundFraction)
	case c.FitOrder < 1:
		return fmt.Errorf("fit_order must be at least 1, got %d", c.FitOrder)
	case c.ContinuumDegree < 0:
		return fmt.Errorf("continuum_degree must be non-negative, got %d", c.ContinuumDegree)
	case c.ExpectedLineFraction <= 0 || c.ExpectedLineFraction > 1:
		return fmt.Errorf("expected_line_fraction must be in (0, 1], got %g", c.ExpectedLineFraction)
	case c.OutlierCut <= 0:
		return fmt.Errorf("outlier_cut must be positive, got %g", c.OutlierCut)
	case c.MaxIterations < 1:
		return fmt.Errorf("max_iterations must be at least 1, got %d", c.MaxIterations)
	case c.InitialWidth <= 0 || c.MaxWidth < c.InitialWidth:
		return fmt.Errorf("need 0 < initial_width <= max_width, got %g, %g", c.InitialWidth, c.MaxWidth)
	case c.AnchorWindow <= 0:
		return fmt.Errorf("anchor_window must be positive, got %g", c.AnchorWindow)
	case c.NeighborWindow < 1:
		return fmt.Errorf("neighbor_window must be at least 1, got %d", c.NeighborWindow)
	case len(c.Guess) == 1:
		return fmt.Errorf("guess needs at least two coefficients")
	case c.Workers < 0:
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}
	return nil
}
