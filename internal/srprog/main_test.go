// Public domain.

package srprog

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniakeys/specred/internal/atlas"
	"github.com/soniakeys/specred/internal/dispersion"
	"github.com/soniakeys/specred/internal/group"
	"github.com/soniakeys/specred/internal/prior"
	"github.com/soniakeys/specred/internal/review"
	"github.com/soniakeys/specred/internal/store"
	"github.com/soniakeys/specred/internal/synth"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runIn(t, strings.NewReader(""), args...)
}

func runIn(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	var out bytes.Buffer
	err := Run(args, stdin, &out, io.Discard)
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "-v")
	require.NoError(t, err)
	assert.Contains(t, out, versionString)
	out, err = run(t, "-h")
	require.NoError(t, err)
	assert.Contains(t, out, "expected_line_fraction")
}

func TestUsage(t *testing.T) {
	for _, args := range [][]string{
		nil,
		{"calib", "atlas.txt"},
		{"priors"},
		{"reduce", "x"},
		{"-nosuch"},
	} {
		_, err := run(t, args...)
		assert.ErrorIs(t, err, errUsage, "%q", args)
	}
}

func TestMissingConfig(t *testing.T) {
	_, err := run(t, "-c", filepath.Join(t.TempDir(), "none"), "priors", "b.json")
	assert.Error(t, err)
}

func writeConfig(t *testing.T, dir, text string) string {
	t.Helper()
	fn := filepath.Join(dir, "specred.config")
	require.NoError(t, os.WriteFile(fn, []byte(text), 0o644))
	return fn
}

func TestCalib(t *testing.T) {
	dir := t.TempDir()
	night := filepath.Join(dir, "night1")
	require.NoError(t, os.Mkdir(night, 0o755))

	lamp := atlas.List{6260, 6275, 6300, 6310, 6325, 6340, 6400}
	al := filepath.Join(dir, "lamp.atlas")
	require.NoError(t, synth.WriteFile(al, func(w io.Writer) error {
		return synth.WriteAtlas(w, lamp)
	}))
	var files []string
	for i, c0 := range []float64{6300.8, 6301.1} {
		truth := dispersion.Solution{RefPix: 110, Coeffs: []float64{c0, .5}}
		lines := synth.Place(atlas.List{6275, 6310, 6340}, truth, 0, 220, 2.5, .5, 200)
		l := synth.Lamp{N: 220, Pad: 5, Continuum: []float64{10}, Lines: lines}
		fn := filepath.Join(night, "arc"+string(rune('1'+i))+".txt")
		h := synth.Header{"DATE-OBS": "2013-07-04", "UT": "0" + string(rune('1'+i)) + ":00:00", "REFPIX": "110"}
		require.NoError(t, synth.WriteFile(fn, func(w io.Writer) error {
			return synth.WriteSpectrum(w, h, l.Flux())
		}))
		files = append(files, fn)
	}
	cfg := writeConfig(t, dir, "# two lamp exposures\nfit_order = 1\nguess = 6300, .5\nworkers = 2\n")
	db := filepath.Join(dir, "specred.db")

	out, err := run(t, append([]string{"-c", cfg, "-d", db, "calib", al}, files...)...)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)
	assert.Contains(t, out, "arc1.txt")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	tb, err := st.Table("night1")
	require.NoError(t, err)
	require.Len(t, tb, 2)
	assert.Equal(t, files[0], tb[0].File)
	assert.InDelta(t, 6301.1, tb[1].Solution.Coeffs[0], .01)
}

// writePriors writes a baseline of one line and five measurements of it,
// returning the two file names.
func writePriors(t *testing.T, dir string) (string, string) {
	t.Helper()
	base := &prior.Template{
		Lines: []prior.Line{{RestWave: 6300, Path: group.Path{"sun", "io", "earth"}, Object: "io"}},
		Params: []prior.Parameter{
			{Name: "center", Limits: [2]float64{-1, 1}, Limited: [2]bool{true, true}},
			{Name: "eqwidth", Value: .1},
			{Name: "gwidth", Value: .5, Limits: [2]float64{0, 1}, Limited: [2]bool{true, true}},
			{Name: "lwidth", Value: .05, Limits: [2]float64{0, 1}, Limited: [2]bool{true, true}},
			{Name: "continuum", Value: 1, Fixed: true},
		},
	}
	bfn := filepath.Join(dir, "baseline.json")
	require.NoError(t, prior.WriteTemplateFile(bfn, base))

	var ms []prior.Measurement
	for i, ew := range []float64{.20, .24, .22, .21, .23} {
		d := float64(i-2) * .01
		ms = append(ms, prior.Measurement{
			File:     "f" + string(rune('a'+i)),
			RestWave: 6300,
			Path:     base.Lines[0].Path,
			Object:   "io",
			Value:    [prior.NParam]float64{.02 + d, ew, .3 + d, .1 + d},
			Status:   [prior.NParam]prior.Status{1, 1, 1, 1},
			Chi2:     1,
			Sep:      1,
		})
	}
	b, err := json.Marshal(ms)
	require.NoError(t, err)
	mfn := filepath.Join(dir, "meas.json")
	require.NoError(t, os.WriteFile(mfn, b, 0o644))
	return bfn, mfn
}

func TestPriors(t *testing.T) {
	dir := t.TempDir()
	bfn, mfn := writePriors(t, dir)
	db := filepath.Join(dir, "specred.db")
	ofn := filepath.Join(dir, "prior.json")
	cfg := writeConfig(t, dir, "min_good_samples = 5\n")
	out, err := run(t, "-c", cfg, "-d", db, "-o", ofn, "priors", bfn, mfn)
	require.NoError(t, err)
	assert.Contains(t, out, "line 6300.000")

	got, err := prior.ReadTemplateFile(ofn)
	require.NoError(t, err)
	p := got.Param(0, prior.EqWidth)
	assert.Equal(t, prior.Active, p.Status)
	assert.Equal(t, .22, p.Value)

	// measurements persist; a second run needs no table file
	_, err = run(t, "-c", cfg, "-d", db, "-o", ofn, "priors", bfn)
	require.NoError(t, err)
	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	stored, err := st.GetTemplate("prior.json")
	require.NoError(t, err)
	assert.Equal(t, .22, stored.Param(0, prior.EqWidth).Value)
}

type brokenInput struct{}

func (brokenInput) Read([]byte) (int, error) { return 0, errors.New("terminal gone") }

func TestPriorsReviewFails(t *testing.T) {
	dir := t.TempDir()
	bfn, mfn := writePriors(t, dir)
	db := filepath.Join(dir, "specred.db")
	ofn := filepath.Join(dir, "prior.json")
	cfg := writeConfig(t, dir, "interactive = true\n")
	_, err := runIn(t, brokenInput{}, "-c", cfg, "-d", db, "-o", ofn, "priors", bfn, mfn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminal gone")

	// nothing is written
	assert.NoFileExists(t, ofn)
	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	_, err = st.GetTemplate("prior.json")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFinalTable(t *testing.T) {
	tb := dispersion.Table{
		{File: "a", Day: 1, Solution: dispersion.Solution{Coeffs: []float64{6300, .5}}},
		{File: "b", Day: 2, Solution: dispersion.Solution{Coeffs: []float64{6309, .5}}, Flagged: true},
		{File: "c", Day: 3, Solution: dispersion.Solution{Coeffs: []float64{6300.1, .5}}},
	}
	names := func(t dispersion.Table) (s []string) {
		for _, e := range t {
			s = append(s, e.File)
		}
		return
	}

	got, quit, err := finalTable(tb, nil, false)
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Equal(t, []string{"a", "c"}, names(got))
	got, _, err = finalTable(tb, nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names(got))

	// entries a reviewer accepts are stored, flagged or not
	s := review.Script{review.Run}
	got, quit, err = finalTable(tb, &s, false)
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Equal(t, []string{"a", "b", "c"}, names(got))

	s = review.Script{review.Previous, review.Next, review.Next, review.Quit}
	got, quit, err = finalTable(tb, &s, false)
	require.NoError(t, err)
	assert.True(t, quit)
	assert.Equal(t, []string{"a", "b"}, names(got))
}
