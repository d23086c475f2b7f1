// Public domain.

package qc

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/soniakeys/specred/internal/filter"
	"github.com/soniakeys/specred/internal/group"
	"github.com/soniakeys/specred/internal/prior"
	"github.com/soniakeys/specred/internal/robust"
)

// minStats is the fewest survivors a median and spread are computed from.
const minStats = 2

// chain returns the cuts common to every parameter of a step.  Index i
// of a test addresses st.ms[i].
func (e *Engine) chain(ms []prior.Measurement, st step) []filter.Stage {
	c := e.Config
	m := func(i int) *prior.Measurement { return &ms[st.ms[i]] }
	return []filter.Stage{
		{Name: "chi2", Test: func(i int) bool {
			return m(i).Chi2 <= c.Chi2Cut
		}},
		{Name: "doppler", Fallback: true, Test: func(i int) bool {
			return math.Abs(m(i).DopplerResid)+m(i).DopplerErr <= c.DopplerCut
		}},
		{Name: "separation", Test: func(i int) bool {
			return m(i).Sep >= c.SeparationCut
		}},
	}
}

// boundStage rejects values of parameter p that were not fit, or that sit
// within a fraction of the baseline span of a baseline bound.
func (e *Engine) boundStage(ms []prior.Measurement, st step, p prior.Param) filter.Stage {
	b := e.Baseline.Param(st.line, p)
	frac := e.Config.CloseToBoundFraction
	return filter.Stage{Name: "bound", Fallback: true, Test: func(i int) bool {
		m := &ms[st.ms[i]]
		if m.Status[p] == prior.Inactive {
			return false
		}
		v := m.Value[p]
		for s := 0; s < 2; s++ {
			if !b.Limited[s] {
				continue
			}
			span := math.Abs(b.Limits[s])
			if b.Limited[0] && b.Limited[1] {
				span = b.Limits[1] - b.Limits[0]
			}
			if math.Abs(v-b.Limits[s]) <= frac*span {
				return false
			}
		}
		return true
	}}
}

// process runs one (group, line) step and writes its results into t.
func (e *Engine) process(t *prior.Template, ms []prior.Measurement, st step,
	reg *group.Registry, log *slog.Logger) StepReport {
	line := t.Lines[st.line]
	rep := StepReport{
		Done:     true,
		Group:    st.group,
		Path:     reg.Path(st.group),
		Line:     st.line,
		RestWave: line.RestWave,
		N:        len(st.ms),
	}
	log = log.With("group", rep.Path.String(), "line", line.RestWave)

	// a fallback cut leaving too few for an opinion is not applied
	need := max(minStats, e.Config.MinGoodSamples)
	base, reps := filter.Chain(filter.All(len(st.ms)), need, e.chain(ms, st)...)
	rep.Chain = reps
	for _, r := range reps {
		if r.Reverted {
			log.Warn("too few survivors, cut not applied",
				"stage", r.Name, "in", r.In)
		}
	}

	for p := prior.Param(0); p < prior.NParam; p++ {
		r, br := filter.Chain(base, need, e.boundStage(ms, st, p))
		ps := ParamStats{N: r.NGood(), Reverted: br[0].Reverted}
		if ps.Reverted {
			log.Warn("too few survivors, cut not applied",
				"stage", "bound", "param", p.String(), "in", br[0].In)
		}
		tp := t.Param(st.line, p)
		if ps.N < minStats || ps.N < e.Config.MinGoodSamples {
			ps.Status = prior.NoOpinion
			if p != prior.Center {
				tp.Status = prior.NoOpinion
			}
			log.Info("too few samples, no opinion",
				"param", p.String(), "n", ps.N, "min", e.Config.MinGoodSamples)
			rep.Params[p] = ps
			continue
		}
		v := make([]float64, 0, ps.N)
		for _, i := range r.Good() {
			v = append(v, ms[st.ms[i]].Value[p])
		}
		ps.Median = robust.Median(v)
		ps.StdDev = stat.StdDev(v, nil)
		ps.Status = prior.Active
		rep.Params[p] = ps
		if p == prior.Center {
			// the center absorbs the velocity fit alongside it; report only
			log.Info("center offset", "median", ps.Median, "stddev", ps.StdDev, "n", ps.N)
			continue
		}
		tp.Status = prior.Active
		tp.Value = ps.Median
		tp.Limits = [2]float64{ps.Median - ps.StdDev, ps.Median + ps.StdDev}
		tp.Limited = [2]bool{true, true}
	}
	return rep
}

// finalize pools the widths of group g across its completed steps and
// writes them to every line of the group.
func (r *Report) finalize(g int, steps []step, log *slog.Logger) {
	kind := r.Registry.Kind(g)
	gr := GroupReport{Group: g, Kind: kind}
	var lines []int
	for i, st := range steps {
		if st.group == g && r.Steps[i].Done {
			lines = append(lines, i)
		}
	}
	gr.NLines = len(lines)
	log = log.With("group", r.Registry.Path(g).String(), "kind", kind.String())

	t := r.Template
	for w, p := range []prior.Param{prior.GaussWidth, prior.LorentzWidth} {
		var med, sd []float64
		for _, i := range lines {
			if ps := r.Steps[i].Params[p]; ps.Status == prior.Active {
				med = append(med, ps.Median)
				sd = append(sd, ps.StdDev)
			}
		}
		if len(med) == 0 {
			log.Info("no active widths to pool", "param", p.String())
			continue
		}
		// the mean, as a median of few points is too coarse
		mean := stat.Mean(med, nil)
		spread := stat.Mean(sd, nil)
		if kind == group.Telluric {
			spread = floats.Max(sd)
		}
		gr.Width[w], gr.Spread[w] = mean, spread
		for _, i := range lines {
			tp := t.Param(steps[i].line, p)
			tp.Value = mean
			tp.Limits = [2]float64{math.Max(0, mean-2*spread), mean + 2*spread}
			tp.Limited = [2]bool{true, true}
			tp.Status = prior.Active
		}
		log.Info("pooled width", "param", p.String(), "mean", mean,
			"spread", spread, "lines", len(med))
	}

	if kind == group.Object {
		// measurement targets, not calibration sources
		for _, i := range lines {
			l := steps[i].line
			lw := t.Param(l, prior.LorentzWidth)
			lw.Value = 0
			lw.Limits = [2]float64{0, 0}
			lw.Fixed = true
			t.Param(l, prior.GaussWidth).Fixed = true
			ew := t.Param(l, prior.EqWidth)
			ew.Limits = [2]float64{0, 0}
			ew.Limited = [2]bool{true, false}
		}
	}

	for i := range r.Groups {
		if r.Groups[i].Group == g {
			r.Groups[i] = gr
			return
		}
	}
	r.Groups = append(r.Groups, gr)
}
