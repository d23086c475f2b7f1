// Public domain.

// Package prior defines line-parameter templates and the measurements from
// which they are refined.
//
// Parameters of one physical line are stored as a tuple of NParam
// consecutive template entries: center, equivalent width, Gaussian width,
// Lorentzian width.  Entries past the last tuple are sentinels, global
// parameters of the fit that the quality-control engine never touches.
package prior

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/soniakeys/specred/internal/group"
)

// Param indexes a parameter within a line tuple.
type Param int

const (
	Center Param = iota
	EqWidth
	GaussWidth
	LorentzWidth
	NParam = 4
)

var paramNames = [NParam]string{"center", "eqwidth", "gwidth", "lwidth"}

func (p Param) String() string {
	if p < 0 || p >= NParam {
		return fmt.Sprintf("Param(%d)", int(p))
	}
	return paramNames[p]
}

// Status is the tri-state opinion a run holds on a parameter.
type Status int

const (
	Inactive  Status = -1
	NoOpinion Status = 0
	Active    Status = 1
)

func (s Status) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case NoOpinion:
		return "no-opinion"
	case Active:
		return "active"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Parameter is one template entry.  Limits apply only where Limited is set.
type Parameter struct {
	Name    string     `json:"name"`
	Value   float64    `json:"value"`
	Limits  [2]float64 `json:"limits"`
	Limited [2]bool    `json:"limited"`
	Fixed   bool       `json:"fixed"`
	Status  Status     `json:"status"`
}

// Line identifies a physical line of a template.
type Line struct {
	RestWave float64    `json:"rest_wave"`
	Path     group.Path `json:"path"`
	Object   string     `json:"object,omitempty"`
}

// Template holds line identities and the flat parameter list.
type Template struct {
	Lines  []Line      `json:"lines"`
	Params []Parameter `json:"params"`
}

// Index returns the position of parameter p of line l in t.Params.
func Index(l int, p Param) int { return l*NParam + int(p) }

// Param returns a pointer to parameter p of line l.
func (t *Template) Param(l int, p Param) *Parameter {
	return &t.Params[Index(l, p)]
}

// Sentinels returns the trailing parameters that follow the line tuples.
func (t *Template) Sentinels() []Parameter {
	return t.Params[len(t.Lines)*NParam:]
}

// Clone returns a deep copy of t.
func (t *Template) Clone() *Template {
	c := &Template{
		Lines:  make([]Line, len(t.Lines)),
		Params: append([]Parameter{}, t.Params...),
	}
	for i, l := range t.Lines {
		l.Path = append(group.Path{}, l.Path...)
		c.Lines[i] = l
	}
	return c
}

// Validate checks the tuple layout.
func (t *Template) Validate() error {
	if len(t.Lines) == 0 {
		return fmt.Errorf("template has no lines")
	}
	if len(t.Params) < len(t.Lines)*NParam {
		return fmt.Errorf("template has %d lines but only %d parameters",
			len(t.Lines), len(t.Params))
	}
	for i, l := range t.Lines {
		if len(l.Path) == 0 {
			return fmt.Errorf("line %d (%g) has no kinematic path", i, l.RestWave)
		}
	}
	return nil
}

// LineIndex returns the index of the line with rest wavelength w, within
// tolerance tol.
func (t *Template) LineIndex(w, tol float64) (int, bool) {
	for i, l := range t.Lines {
		if d := l.RestWave - w; d <= tol && d >= -tol {
			return i, true
		}
	}
	return 0, false
}

// ReadTemplate decodes a JSON template.
func ReadTemplate(r io.Reader) (*Template, error) {
	var t Template
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("decoding template: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// ReadTemplateFile reads a JSON template from file fn.
func ReadTemplateFile(fn string) (*Template, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := ReadTemplate(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	return t, nil
}

// WriteTemplate encodes t as indented JSON.
func WriteTemplate(w io.Writer, t *Template) error {
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(t)
}

// WriteTemplateFile writes t to file fn.
func WriteTemplateFile(fn string, t *Template) error {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	if err = WriteTemplate(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
