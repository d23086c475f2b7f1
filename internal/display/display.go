// Public domain.

// Package display receives diagnostics from calibration.
//
// A Sink is told about each extraction, each association and each
// finished coefficient table.  Nop discards them.  Dir renders them as
// PNG plots and an HTML chart in a directory.
package display

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/soniakeys/specred/internal/assoc"
	"github.com/soniakeys/specred/internal/dispersion"
	"github.com/soniakeys/specred/internal/extract"
)

// Sink receives calibration diagnostics.  Methods may be called from
// several goroutines, for different spectra.
type Sink interface {
	// Extraction shows flux and model, both starting at pixel lo.
	Extraction(name string, lo int, flux, model []float64, lines []extract.Line) error
	Association(name string, ms []assoc.Match, sol dispersion.Solution) error
	Table(dir string, t dispersion.Table) error
}

// Nop is a Sink that does nothing.
type Nop struct{}

func (Nop) Extraction(string, int, []float64, []float64, []extract.Line) error { return nil }
func (Nop) Association(string, []assoc.Match, dispersion.Solution) error      { return nil }
func (Nop) Table(string, dispersion.Table) error                              { return nil }

// Dir writes plots into a directory.
type Dir struct {
	Path string
}

// NewDir returns a Dir sink, creating the directory if needed.
func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}
	return &Dir{Path: path}, nil
}

var (
	red  = color.RGBA{R: 200, A: 255}
	blue = color.RGBA{B: 200, A: 255}
	gray = color.RGBA{R: 128, G: 128, B: 128, A: 255}
)

// base strips directories and the extension from a spectrum name.
func base(name string) string {
	b := filepath.Base(name)
	return strings.TrimSuffix(b, filepath.Ext(b))
}

// Extraction writes <name>_lines.png: flux, model and line centers.
func (d *Dir) Extraction(name string, lo int, flux, model []float64, lines []extract.Line) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: %d lines", filepath.Base(name), len(lines))
	p.X.Label.Text = "Pixel"
	p.Y.Label.Text = "Intensity"

	xy := func(y []float64) plotter.XYs {
		pts := make(plotter.XYs, len(y))
		for i, v := range y {
			pts[i] = plotter.XY{X: float64(lo + i), Y: v}
		}
		return pts
	}
	fl, err := plotter.NewLine(xy(flux))
	if err != nil {
		return err
	}
	fl.Color = gray
	fl.Width = vg.Points(1)
	p.Add(fl)
	p.Legend.Add("flux", fl)
	if len(model) > 0 {
		ml, err := plotter.NewLine(xy(model))
		if err != nil {
			return err
		}
		ml.Color = blue
		ml.Width = vg.Points(1)
		p.Add(ml)
		p.Legend.Add("model", ml)
	}
	if len(lines) > 0 {
		pts := make(plotter.XYs, len(lines))
		for i, l := range lines {
			pts[i].X = l.Center
			if j := int(l.Center+.5) - lo; j >= 0 && j < len(model) {
				pts[i].Y = model[j]
			}
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		sc.Color = red
		p.Add(sc)
		p.Legend.Add("centers", sc)
	}
	return p.Save(14*vg.Inch, 6*vg.Inch, filepath.Join(d.Path, base(name)+"_lines.png"))
}

// Association writes <name>_assoc.png: residuals of matches against
// the fitted solution, rejected matches in red.
func (d *Dir) Association(name string, ms []assoc.Match, sol dispersion.Solution) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: dispersion residuals", filepath.Base(name))
	p.X.Label.Text = "Pixel"
	p.Y.Label.Text = "Atlas - fit"

	var kept, rej plotter.XYs
	for _, m := range ms {
		pt := plotter.XY{X: m.Pixel, Y: m.Wave - sol.Wavelength(m.Pixel)}
		if m.Rejected {
			rej = append(rej, pt)
		} else {
			kept = append(kept, pt)
		}
	}
	for _, s := range []struct {
		label string
		pts   plotter.XYs
		c     color.Color
	}{{"used", kept, blue}, {"rejected", rej, red}} {
		if len(s.pts) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(s.pts)
		if err != nil {
			return err
		}
		sc.Color = s.c
		p.Add(sc)
		p.Legend.Add(s.label, sc)
	}
	p.Add(plotter.NewGrid())
	return p.Save(10*vg.Inch, 5*vg.Inch, filepath.Join(d.Path, base(name)+"_assoc.png"))
}

// Table writes <dir>_coeffs.html, one chart per coefficient against
// observation day, flagged entries as a separate series.
func (d *Dir) Table(dir string, t dispersion.Table) error {
	nc := 0
	for _, e := range t {
		nc = max(nc, len(e.Solution.Coeffs))
	}
	page := components.NewPage()
	for k := 0; k < nc; k++ {
		var ok, flagged []opts.ScatterData
		for _, e := range t {
			if k >= len(e.Solution.Coeffs) {
				continue
			}
			v := opts.ScatterData{Value: []interface{}{e.Day, e.Solution.Coeffs[k]}, Name: e.File}
			if e.Flagged {
				flagged = append(flagged, v)
			} else {
				ok = append(ok, v)
			}
		}
		sc := charts.NewScatter()
		sc.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
			charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("c%d", k), Subtitle: dir}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Name: "day", Type: "value", Min: "dataMin", Max: "dataMax"}),
			charts.WithYAxisOpts(opts.YAxis{Min: "dataMin", Max: "dataMax"}),
		)
		sc.AddSeries("kept", ok, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
		sc.AddSeries("flagged", flagged, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 9}))
		page.AddCharts(sc)
	}
	f, err := os.Create(filepath.Join(d.Path, base(dir)+"_coeffs.html"))
	if err != nil {
		return err
	}
	if err := page.Render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
