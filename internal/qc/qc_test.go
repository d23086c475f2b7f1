// Public domain.

package qc_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniakeys/specred/internal/config"
	"github.com/soniakeys/specred/internal/group"
	"github.com/soniakeys/specred/internal/logger"
	"github.com/soniakeys/specred/internal/prior"
	"github.com/soniakeys/specred/internal/qc"
	"github.com/soniakeys/specred/internal/review"
)

// baseline lines: 0 solar, 1 telluric, 2 object (io)
func baseline() *prior.Template {
	t := &prior.Template{Lines: []prior.Line{
		{RestWave: 6300, Path: group.Path{"sun", "io", "earth"}, Object: "io"},
		{RestWave: 6302, Path: group.Path{"earth"}},
		{RestWave: 6305, Path: group.Path{"io", "earth"}, Object: "io"},
	}}
	for range t.Lines {
		t.Params = append(t.Params,
			prior.Parameter{Name: "center", Limits: [2]float64{-1, 1}, Limited: [2]bool{true, true}},
			prior.Parameter{Name: "eqwidth", Value: .1},
			prior.Parameter{Name: "gwidth", Value: .5, Limits: [2]float64{0, 1}, Limited: [2]bool{true, true}},
			prior.Parameter{Name: "lwidth", Value: .05, Limits: [2]float64{0, 1}, Limited: [2]bool{true, true}},
		)
	}
	t.Params = append(t.Params, prior.Parameter{Name: "continuum", Value: 1, Fixed: true})
	return t
}

// meas returns one measurement per ew value for line l of baseline.
func meas(l int, ew ...float64) []prior.Measurement {
	b := baseline().Lines[l]
	ms := make([]prior.Measurement, len(ew))
	for i, v := range ew {
		d := float64(i-len(ew)/2) * .01
		ms[i] = prior.Measurement{
			File:     "f" + string(rune('a'+i)),
			Line:     l,
			RestWave: b.RestWave,
			Path:     b.Path,
			Object:   b.Object,
			Value:    [prior.NParam]float64{.02 + d, v, .3 + d, .1 + d},
			Error:    [prior.NParam]float64{.01, .01, .01, .01},
			Status:   [prior.NParam]prior.Status{1, 1, 1, 1},
			Chi2:     1,
			Sep:      1,
		}
	}
	return ms
}

func engine(c *config.Config, rv review.Reviewer) *qc.Engine {
	return &qc.Engine{Config: c, Baseline: baseline(), Reviewer: rv, Log: logger.Discard()}
}

func TestGating(t *testing.T) {
	c := config.Default()
	ew := []float64{.20, .24, .22, .21, .23}

	// one short of the minimum
	rep, err := engine(c, nil).Run(meas(0, ew[:c.MinGoodSamples-1]...))
	require.NoError(t, err)
	p := rep.Template.Param(0, prior.EqWidth)
	assert.Equal(t, prior.NoOpinion, p.Status)
	assert.Equal(t, .1, p.Value, "value unaltered")
	assert.Equal(t, prior.NoOpinion, rep.Steps[0].Params[prior.EqWidth].Status)

	// exactly the minimum
	rep, err = engine(c, nil).Run(meas(0, ew[:c.MinGoodSamples]...))
	require.NoError(t, err)
	p = rep.Template.Param(0, prior.EqWidth)
	assert.Equal(t, prior.Active, p.Status)
	assert.Equal(t, .22, p.Value)
	sd := rep.Steps[0].Params[prior.EqWidth].StdDev
	assert.InDelta(t, .22-sd, p.Limits[0], 1e-15)
	assert.InDelta(t, .22+sd, p.Limits[1], 1e-15)
	assert.Equal(t, [2]bool{true, true}, p.Limited)
}

func TestCenterNotWritten(t *testing.T) {
	rep, err := engine(config.Default(), nil).Run(meas(0, .2, .2, .2, .2, .2))
	require.NoError(t, err)
	cs := rep.Steps[0].Params[prior.Center]
	assert.Equal(t, prior.Active, cs.Status)
	assert.InDelta(t, .02, cs.Median, 1e-15)
	b := baseline()
	assert.Equal(t, *b.Param(0, prior.Center), *rep.Template.Param(0, prior.Center))
}

func TestSentinelsUntouched(t *testing.T) {
	var ms []prior.Measurement
	for l := 0; l < 3; l++ {
		ms = append(ms, meas(l, .2, .21, .22, .23, .24, .25)...)
	}
	rep, err := engine(config.Default(), nil).Run(ms)
	require.NoError(t, err)
	assert.Equal(t, baseline().Sentinels(), rep.Template.Sentinels())
	assert.Len(t, rep.Template.Params, len(baseline().Params))
}

func TestTelluricPooling(t *testing.T) {
	rep, err := engine(config.Default(), nil).Run(meas(1, .2, .2, .2, .2, .2))
	require.NoError(t, err)
	require.Len(t, rep.Groups, 1)
	g := rep.Groups[0]
	assert.Equal(t, group.Telluric, g.Kind)
	sd := rep.Steps[0].Params[prior.GaussWidth].StdDev
	assert.InDelta(t, .3, g.Width[0], 1e-12)
	assert.InDelta(t, sd, g.Spread[0], 1e-15)
	gw := rep.Template.Param(1, prior.GaussWidth)
	assert.InDelta(t, .3-2*sd, gw.Limits[0], 1e-12)
	assert.InDelta(t, .3+2*sd, gw.Limits[1], 1e-12)
	assert.False(t, gw.Fixed)
}

func TestWidthClippedAtZero(t *testing.T) {
	ms := meas(1, .2, .2, .2, .2, .2)
	for i := range ms {
		ms[i].Value[prior.LorentzWidth] = .02 + float64(i)*.1
	}
	rep, err := engine(config.Default(), nil).Run(ms)
	require.NoError(t, err)
	lw := rep.Template.Param(1, prior.LorentzWidth)
	assert.Equal(t, 0.0, lw.Limits[0])
	assert.Greater(t, lw.Limits[1], lw.Value)
}

func TestObjectGroup(t *testing.T) {
	rep, err := engine(config.Default(), nil).Run(meas(2, .2, .21, .22, .23, .24))
	require.NoError(t, err)
	assert.Equal(t, group.Object, rep.Registry.Kind(rep.Steps[0].Group))
	lw := rep.Template.Param(2, prior.LorentzWidth)
	assert.Equal(t, 0.0, lw.Value)
	assert.True(t, lw.Fixed)
	assert.True(t, rep.Template.Param(2, prior.GaussWidth).Fixed)
	ew := rep.Template.Param(2, prior.EqWidth)
	assert.Equal(t, [2]bool{true, false}, ew.Limited)
	assert.Equal(t, 0.0, ew.Limits[0])
	assert.Equal(t, .22, ew.Value)
}

func TestGenericObjectGrouping(t *testing.T) {
	a := meas(2, .2, .2, .2)
	b := meas(2, .2, .2, .2)
	for i := range b {
		b[i].Path = group.Path{"europa", "earth"}
		b[i].Object = "europa"
	}
	ms := append(a, b...)

	rep, err := engine(config.Default(), nil).Run(ms)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Registry.Len())
	assert.Equal(t, 6, rep.Steps[0].N)

	c := config.Default()
	c.GenericObject = false
	rep, err = engine(c, nil).Run(ms)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Registry.Len())
	assert.Len(t, rep.Steps, 2)
}

func TestObjectKindNamedPath(t *testing.T) {
	c := config.Default()
	c.GenericObject = false
	rep, err := engine(c, nil).Run(meas(2, .20, .24, .22, .21, .23))
	require.NoError(t, err)
	g := rep.Steps[0].Group
	assert.Equal(t, group.Path{"io", "earth"}, rep.Registry.Path(g))
	assert.Equal(t, group.Object, rep.Registry.Kind(g))
	lw := rep.Template.Param(2, prior.LorentzWidth)
	assert.Equal(t, 0.0, lw.Value)
	assert.True(t, lw.Fixed)
	assert.True(t, rep.Template.Param(2, prior.GaussWidth).Fixed)
	assert.Equal(t, [2]bool{true, false}, rep.Template.Param(2, prior.EqWidth).Limited)
}

func TestCuts(t *testing.T) {
	ms := meas(0, .2, .2, .2, .2, .2, .2, .2, .2)
	ms[0].Chi2 = 50
	ms[1].Sep = .05
	ms[2].DopplerResid = 3
	ms[3].Value[prior.GaussWidth] = .999 // pegged at the baseline bound
	c := config.Default()
	c.MinGoodSamples = 4
	rep, err := engine(c, nil).Run(ms)
	require.NoError(t, err)
	s := rep.Steps[0]
	require.Len(t, s.Chain, 3)
	assert.Equal(t, 7, s.Chain[0].Out)
	assert.Equal(t, 6, s.Chain[1].Out)
	assert.Equal(t, 5, s.Chain[2].Out)
	assert.Equal(t, 5, s.Params[prior.EqWidth].N)
	assert.Equal(t, 4, s.Params[prior.GaussWidth].N)
}

func TestFallbackKeepsOpinion(t *testing.T) {
	// half fail the doppler cut; the rest would be too few for an opinion
	ms := meas(0, .20, .24, .22, .21, .23, .22, .22, .22)
	for i := range ms[:4] {
		ms[i].DopplerResid = 3
	}
	rep, err := engine(config.Default(), nil).Run(ms)
	require.NoError(t, err)
	s := rep.Steps[0]
	assert.True(t, s.Chain[1].Reverted)
	assert.Equal(t, 8, s.Chain[1].Out)
	assert.Equal(t, 8, s.Params[prior.EqWidth].N)
	assert.Equal(t, prior.Active, s.Params[prior.EqWidth].Status)
	assert.Equal(t, prior.Active, rep.Template.Param(0, prior.EqWidth).Status)

	// a pegged width is kept rather than losing the opinion
	ms = meas(0, .20, .24, .22, .21, .23)
	ms[0].Value[prior.GaussWidth] = .999
	rep, err = engine(config.Default(), nil).Run(ms)
	require.NoError(t, err)
	gw := rep.Steps[0].Params[prior.GaussWidth]
	assert.True(t, gw.Reverted)
	assert.Equal(t, 5, gw.N)
}

func TestDopplerFallback(t *testing.T) {
	ms := meas(0, .2, .2, .2, .2, .2)
	for i := range ms[1:] {
		ms[i+1].DopplerResid = 5
	}
	rep, err := engine(config.Default(), nil).Run(ms)
	require.NoError(t, err)
	s := rep.Steps[0]
	assert.True(t, s.Chain[1].Reverted)
	assert.Equal(t, 5, s.Params[prior.EqWidth].N)
	assert.Equal(t, prior.Active, s.Params[prior.EqWidth].Status)
}

func TestNavigation(t *testing.T) {
	var ms []prior.Measurement
	for l := 0; l < 3; l++ {
		ms = append(ms, meas(l, .2, .21, .22, .23, .24)...)
	}
	s := review.Script{review.Next, review.Previous, review.Quit}
	rep, err := engine(config.Default(), &s).Run(ms)
	require.NoError(t, err)
	assert.True(t, rep.Quit)
	assert.True(t, rep.Steps[0].Done)
	assert.True(t, rep.Steps[1].Done)
	assert.False(t, rep.Steps[2].Done, "quit skips further groups")
	// leaving the first group finalized it once
	require.Len(t, rep.Groups, 1)
	assert.Equal(t, rep.Steps[0].Group, rep.Groups[0].Group)
	// already computed results were kept
	assert.Equal(t, prior.Active, rep.Template.Param(1, prior.EqWidth).Status)
	assert.Equal(t, prior.Parameter{Name: "eqwidth", Value: .1},
		*rep.Template.Param(2, prior.EqWidth))
}

func TestRunToEnd(t *testing.T) {
	var ms []prior.Measurement
	for l := 0; l < 3; l++ {
		ms = append(ms, meas(l, .2, .21, .22, .23, .24)...)
	}
	n := 0
	rv := reviewFunc(func() review.Command { n++; return review.Run })
	rep, err := engine(config.Default(), rv).Run(ms)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "run stops asking")
	assert.False(t, rep.Quit)
	assert.Len(t, rep.Groups, 3)
}

type reviewFunc func() review.Command

func (f reviewFunc) Review(int, int, string) (review.Command, error) { return f(), nil }

func TestInputErrors(t *testing.T) {
	_, err := engine(config.Default(), nil).Run(nil)
	var ie *qc.InputError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "empty measurement table", err.Error())

	ms := meas(0, .2, .2)
	for i := range ms {
		ms[i].Line = 9
		ms[i].RestWave = 7000
	}
	_, err = engine(config.Default(), nil).Run(ms)
	require.True(t, errors.As(err, &ie))
	assert.Contains(t, err.Error(), "no measurements match")
}

func TestLineMatchedByRestWave(t *testing.T) {
	ms := meas(1, .2, .2, .2, .2, .2)
	for i := range ms {
		ms[i].Line = 0 // stale index, rest wavelength says line 1
	}
	rep, err := engine(config.Default(), nil).Run(ms)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Steps[0].Line)
}
