package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Provenance describes where a wide table came from, as encoded in its filename.
type Provenance struct {
	Variable    string `json:"variable"`
	Metric      string `json:"metric"`
	Model       string `json:"model"`
	Scenario    string `json:"scenario"`
	Timestep    string `json:"timestep"`
	Aggregation string `json:"aggregation"`
	Path        string `json:"path"`
}

// Group is the temporal label shared by all rows of the file, e.g. "annual_decadals".
func (p Provenance) Group() string {
	return p.Timestep + "_" + p.Aggregation
}

// ParseProvenance splits the basename of path on "_" and reads the first six tokens
// positionally. The extension is dropped first so a six-token name does not leak
// ".csv" into the aggregation.
func ParseProvenance(path string) (Provenance, error) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	tokens := strings.Split(base, "_")
	if len(tokens) < 6 {
		return Provenance{}, fmt.Errorf("%w: %q has %d of 6 required fields", ErrMalformedFilename, filepath.Base(path), len(tokens))
	}

	return Provenance{
		Variable:    tokens[0],
		Metric:      tokens[1],
		Model:       tokens[2],
		Scenario:    tokens[3],
		Timestep:    tokens[4],
		Aggregation: tokens[5],
		Path:        path,
	}, nil
}
