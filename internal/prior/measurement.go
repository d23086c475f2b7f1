// Public domain.

package prior

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/soniakeys/specred/internal/group"
)

// Measurement is the parameter tuple of one line as fit in one
// observation, with the quality metrics of that fit.
type Measurement struct {
	File     string     `json:"file"`
	Day      float64    `json:"day"`
	Line     int        `json:"line"` // index into the template's lines
	RestWave float64    `json:"rest_wave"`
	Path     group.Path `json:"path"`
	Object   string     `json:"object,omitempty"`

	// Group is assigned by a run from Path; never trusted from input.
	Group int `json:"-"`

	Value  [NParam]float64 `json:"value"`
	Error  [NParam]float64 `json:"error"`
	Status [NParam]Status  `json:"status"`

	Chi2         float64 `json:"chi2"` // reduced chi-square of the fit
	DopplerResid float64 `json:"doppler_resid"`
	DopplerErr   float64 `json:"doppler_err"`
	Sep          float64 `json:"sep"` // offset to the nearest neighbour line
}

// ReadMeasurements decodes a JSON array of measurements.
func ReadMeasurements(r io.Reader) ([]Measurement, error) {
	var ms []Measurement
	if err := json.NewDecoder(r).Decode(&ms); err != nil {
		return nil, fmt.Errorf("decoding measurements: %w", err)
	}
	return ms, nil
}

// ReadMeasurementsFile reads a JSON measurement table from file fn.
func ReadMeasurementsFile(fn string) ([]Measurement, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ms, err := ReadMeasurements(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	return ms, nil
}
