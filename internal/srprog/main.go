// Public domain.

// Package srprog implements the specred command.
package srprog

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/soniakeys/exit"

	"github.com/soniakeys/specred/internal/atlas"
	"github.com/soniakeys/specred/internal/calib"
	"github.com/soniakeys/specred/internal/config"
	"github.com/soniakeys/specred/internal/dispersion"
	"github.com/soniakeys/specred/internal/display"
	"github.com/soniakeys/specred/internal/logger"
	"github.com/soniakeys/specred/internal/prior"
	"github.com/soniakeys/specred/internal/qc"
	"github.com/soniakeys/specred/internal/review"
	"github.com/soniakeys/specred/internal/store"
)

const versionString = "specred version 0.1 Go source."
const copyrightString = "Public domain."

const (
	defConfig = "specred.config"
	defStore  = "specred.db"
	defOut    = "prior.json"
)

// Main runs the command on os.Args and terminates on error.
func Main() {
	defer exit.Handler()
	err := Run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	switch {
	case errors.Is(err, errUsage):
		os.Exit(1)
	case err != nil:
		exit.Log(err)
	}
}

type commandLine struct {
	dc, dd, do, dir string
	debug           bool
	sub             string
	args            []string
}

var errUsage = errors.New("usage")

const usage = `
Usage: specred [options] calib <atlas> <spectrum>...   calibrate lamp spectra
       specred [options] priors <baseline.json> [<measurements.json>]
                                                     update line priors
       specred -h                                    display help
       specred -v                                    display version

Options:
       -c <config-file>     default ` + defConfig + `
       -d <store-file>      default ` + defStore + `
       -o <template-file>   default ` + defOut + `
       -dir <table-name>    default: directory of the first spectrum
       -debug               log debug messages
`

func parseCommandLine(args []string, stdout, stderr io.Writer) (*commandLine, error) {
	fs := flag.NewFlagSet("specred", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { io.WriteString(stderr, usage) }
	var cl commandLine
	dh := fs.Bool("h", false, "")
	dv := fs.Bool("v", false, "")
	fs.StringVar(&cl.dc, "c", "", "")
	fs.StringVar(&cl.dd, "d", defStore, "")
	fs.StringVar(&cl.do, "o", defOut, "")
	fs.StringVar(&cl.dir, "dir", "", "")
	fs.BoolVar(&cl.debug, "debug", false, "")
	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	switch {
	case *dh:
		printHelp(stdout)
		return nil, nil
	case *dv:
		fmt.Fprintln(stdout, versionString)
		fmt.Fprintln(stdout, copyrightString)
		return nil, nil
	case fs.NArg() == 0:
		fs.Usage()
		return nil, errUsage
	}
	cl.sub, cl.args = fs.Arg(0), fs.Args()[1:]
	switch {
	case cl.sub == "calib" && len(cl.args) >= 2:
	case cl.sub == "priors" && (len(cl.args) == 1 || len(cl.args) == 2):
	default:
		fs.Usage()
		return nil, errUsage
	}
	return &cl, nil
}

// Run executes one command line.  It returns nil after -h or -v.
func Run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cl, err := parseCommandLine(args, stdout, stderr)
	if err != nil || cl == nil {
		return err
	}
	// an explicit config file must exist
	fc := cl.dc
	if fc == "" {
		fc = defConfig
	}
	cfg, err := config.ReadFile(fc, cl.dc != "")
	if err != nil {
		return err
	}
	level := slog.LevelInfo
	if cl.debug {
		level = slog.LevelDebug
	}
	log := logger.Init(stderr, level, cfg.LogJSON)

	st, err := store.Open(cl.dd)
	if err != nil {
		return err
	}
	defer st.Close()

	var rv review.Reviewer
	if cfg.Interactive {
		rv = review.NewConsole(stdin, stderr)
	}
	var sink display.Sink = display.Nop{}
	if cfg.PlotDir != "" {
		d, err := display.NewDir(cfg.PlotDir)
		if err != nil {
			return err
		}
		sink = d
	}

	if cl.sub == "calib" {
		return runCalib(cl, cfg, st, rv, sink, log, stdout)
	}
	return runPriors(cl, cfg, st, rv, log, stdout)
}

func runCalib(cl *commandLine, cfg *config.Config, st *store.Store,
	rv review.Reviewer, sink display.Sink, log *slog.Logger, stdout io.Writer) error {
	al, err := atlas.ReadFile(cl.args[0])
	if err != nil {
		return err
	}
	files := cl.args[1:]
	dir := cl.dir
	if dir == "" {
		dir = filepath.Base(filepath.Dir(files[0]))
	}
	c := &calib.Calibrator{Config: cfg, Atlas: al, Log: log, Sink: sink}
	tb, failed := calib.Collect(c.Batch(files, cfg.Workers))
	if len(tb) == 0 {
		return fmt.Errorf("no spectra calibrated of %d", len(files))
	}
	nf := tb.MarkOutliers(cfg.NeighborWindow, cfg.OutlierCut)
	log.Info("batch done", "dir", dir, "calibrated", len(tb),
		"failed", failed, "flagged", nf)

	tb, quit, err := finalTable(tb, rv, cfg.KeepFlagged)
	if err != nil {
		return err
	}
	if err := sink.Table(dir, tb); err != nil {
		log.Warn("table plot", "err", err)
	}
	if err := st.PutTable(dir, tb); err != nil {
		return err
	}
	for i := range tb {
		fmt.Fprintln(stdout, calib.Summary(&tb[i]))
	}
	if quit {
		log.Info("quit by reviewer", "kept", len(tb))
	}
	return nil
}

// finalTable returns the entries of tb to store.  A reviewer decides on
// each entry, flagged or not; without one, flagged entries are dropped
// unless keepFlagged is set.
func finalTable(tb dispersion.Table, rv review.Reviewer, keepFlagged bool) (dispersion.Table, bool, error) {
	if rv != nil {
		return calib.Review(tb, rv)
	}
	return tb.Kept(keepFlagged), false, nil
}

func runPriors(cl *commandLine, cfg *config.Config, st *store.Store,
	rv review.Reviewer, log *slog.Logger, stdout io.Writer) error {
	base, err := prior.ReadTemplateFile(cl.args[0])
	if err != nil {
		return err
	}
	if len(cl.args) == 2 {
		ms, err := prior.ReadMeasurementsFile(cl.args[1])
		if err != nil {
			return err
		}
		if err := st.PutMeasurements(ms); err != nil {
			return err
		}
	}
	ms, err := st.Measurements()
	if err != nil {
		return err
	}
	e := &qc.Engine{Config: cfg, Baseline: base, Reviewer: rv, Log: log}
	rep, err := e.Run(ms)
	if err != nil {
		return err
	}
	for i := range rep.Steps {
		if rep.Steps[i].Done {
			fmt.Fprintln(stdout, rep.Steps[i].Summary())
		}
	}
	if err := prior.WriteTemplateFile(cl.do, rep.Template); err != nil {
		return err
	}
	if err := st.PutTemplate(filepath.Base(cl.do), rep.Template); err != nil {
		return err
	}
	log.Info("template written", "file", cl.do, "quit", rep.Quit)
	return nil
}

func printHelp(w io.Writer) {
	fmt.Fprint(w, `
Specred calibrates the wavelength scale of arc lamp spectra and maintains
a template of prior line parameters from measurements of many spectra.

The calib subcommand extracts emission lines from each spectrum, matches
them to an atlas of lamp wavelengths, fits a dispersion polynomial and
stores the table of solutions of the directory.  The priors subcommand
filters line measurements, computes robust statistics per object group
and line, and writes an updated template.

Config file keywords:
   min_good_samples          fit_order
   chi2_cut                  continuum_degree
   doppler_cut               expected_line_fraction
   separation_cut            outlier_cut
   close_to_bound_fraction   max_iterations
   generic_object            width_fixed
   initial_width             max_width
   anchor_window             neighbor_window
   keep_flagged              guess
   workers                   interactive
   plot_dir                  log_json

For full documentation:
   go doc github.com/soniakeys/specred
`)
}
