// Public domain.

// Package qc distills repeated measurements of spectral-line parameters
// into priors for a subsequent fit.
//
// Measurements are partitioned by Doppler group and physical line.  Each
// (group, line) pair runs through a filter chain, then the median and
// spread of surviving values are written into a clone of the baseline
// template.  When processing leaves a group, its line widths are pooled
// across the group.
package qc

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/soniakeys/specred/internal/config"
	"github.com/soniakeys/specred/internal/filter"
	"github.com/soniakeys/specred/internal/group"
	"github.com/soniakeys/specred/internal/logger"
	"github.com/soniakeys/specred/internal/prior"
	"github.com/soniakeys/specred/internal/review"
)

// InputError reports a measurement table that cannot be processed.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

// Engine holds what a run needs besides the measurements.
type Engine struct {
	Config   *config.Config
	Baseline *prior.Template
	Reviewer review.Reviewer // nil means no review
	Log      *slog.Logger
}

// ParamStats is the outcome for one parameter of one step.
type ParamStats struct {
	N        int // survivors
	Median   float64
	StdDev   float64
	Status   prior.Status
	Reverted bool // bound cut fell back to the pre-cut set
}

// StepReport is the outcome of one (group, line) step.
type StepReport struct {
	Done     bool
	Group    int
	Path     group.Path
	Line     int
	RestWave float64
	N        int // measurements before filtering
	Chain    []filter.StageReport
	Params   [prior.NParam]ParamStats
}

// GroupReport holds the pooled widths of one group.
type GroupReport struct {
	Group  int
	Kind   group.Kind
	NLines int
	Width  [2]float64 // Gaussian, Lorentzian pooled means
	Spread [2]float64
}

// Report is the result of a run.  With Quit set the template holds only
// the steps completed before the reviewer quit.
type Report struct {
	Template *prior.Template
	Registry *group.Registry
	Steps    []StepReport
	Groups   []GroupReport
	Quit     bool
}

type step struct {
	group, line int
	ms          []int // indexes into the measurement table
}

// Assign sets each measurement's Group from its kinematic path, using a
// registry that belongs to this run.  With generic set, each path has the
// measurement's object normalized to the generic placeholder.  The kind of
// a group follows from the normalized path either way.
func Assign(ms []prior.Measurement, reg *group.Registry, generic bool) {
	for i := range ms {
		p := ms[i].Path
		norm := p.Normalize(ms[i].Object)
		if generic {
			p = norm
		}
		ms[i].Group = reg.Key(p, group.KindOf(norm))
	}
}

// Run processes a measurement table.  The table is not modified; group
// keys are recomputed on a copy.
func (e *Engine) Run(table []prior.Measurement) (*Report, error) {
	log := logger.Or(e.Log)
	if len(table) == 0 {
		return nil, &InputError{Msg: "empty measurement table"}
	}
	if err := e.Baseline.Validate(); err != nil {
		return nil, &InputError{Msg: err.Error()}
	}
	ms := append([]prior.Measurement{}, table...)
	reg := group.NewRegistry()
	Assign(ms, reg, e.Config.GenericObject)

	steps := e.steps(ms, log)
	if len(steps) == 0 {
		return nil, &InputError{Msg: "no measurements match template lines"}
	}
	log.Info("quality control run", "run", reg.ID,
		"measurements", len(ms), "groups", reg.Len(), "steps", len(steps))

	rep := &Report{
		Template: e.Baseline.Clone(),
		Registry: reg,
		Steps:    make([]StepReport, len(steps)),
	}
	rv := e.Reviewer
	if rv == nil {
		rv = review.Auto{}
	}
	nv := review.NewNavigator(len(steps))
	for nv.State() == review.At {
		i := nv.Pos()
		st := steps[i]
		rep.Steps[i] = e.process(rep.Template, ms, st, reg, log)

		cmd := review.Next
		if nv.Asking() {
			var err error
			cmd, err = rv.Review(i, len(steps), rep.Steps[i].Summary())
			if err != nil {
				rep.Quit = true
				return rep, fmt.Errorf("review: %w", err)
			}
		}
		switch nv.Step(cmd) {
		case review.Stopped:
			log.Info("run quit by reviewer", "group", st.group,
				"line", rep.Steps[i].RestWave)
			rep.Quit = true
			return rep, nil
		case review.Done:
			rep.finalize(st.group, steps, log)
		default:
			if j := nv.Pos(); j > i && steps[j].group != st.group {
				rep.finalize(st.group, steps, log)
			}
		}
	}
	sort.Slice(rep.Groups, func(i, j int) bool {
		return rep.Groups[i].Group < rep.Groups[j].Group
	})
	return rep, nil
}

// steps partitions measurements by (group, line), ordered by group key
// then line index.
func (e *Engine) steps(ms []prior.Measurement, log *slog.Logger) []step {
	idx := map[[2]int]int{}
	var steps []step
	for i, m := range ms {
		l := m.Line
		if l < 0 || l >= len(e.Baseline.Lines) ||
			math.Abs(e.Baseline.Lines[l].RestWave-m.RestWave) > restTol {
			var ok bool
			if l, ok = e.Baseline.LineIndex(m.RestWave, restTol); !ok {
				log.Warn("measurement matches no template line",
					"file", m.File, "line", m.RestWave)
				continue
			}
		}
		k := [2]int{m.Group, l}
		s, ok := idx[k]
		if !ok {
			s = len(steps)
			idx[k] = s
			steps = append(steps, step{group: m.Group, line: l})
		}
		steps[s].ms = append(steps[s].ms, i)
	}
	sort.Slice(steps, func(i, j int) bool {
		if steps[i].group != steps[j].group {
			return steps[i].group < steps[j].group
		}
		return steps[i].line < steps[j].line
	})
	return steps
}

const restTol = 1e-3

// Summary is a one-line description for the reviewer.
func (s *StepReport) Summary() string {
	r := fmt.Sprintf("group %d (%s) line %.3f: n=%d", s.Group, s.Path, s.RestWave, s.N)
	for p := prior.Param(0); p < prior.NParam; p++ {
		ps := s.Params[p]
		if ps.Status == prior.Active {
			r += fmt.Sprintf(" %s=%.4g±%.2g(%d)", p, ps.Median, ps.StdDev, ps.N)
		} else {
			r += fmt.Sprintf(" %s=?(%d)", p, ps.N)
		}
	}
	return r
}
