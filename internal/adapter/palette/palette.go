// Package palette reads color overrides from YAML.
//
//	minesites:
//	  Snap_Lake_Mine: "rgb(81,158,46)"
//	models:
//	  GFDL-CM3:
//	    rcp85: "#254117"
package palette

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/minesite-climate-service/internal/domain"
)

// ReadColors loads a palette file. Unknown top-level keys are rejected so that a
// typo does not silently fall back to the defaults.
func ReadColors(path string) (domain.ColorMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ColorMap{}, fmt.Errorf("%w: open %s: %v", domain.ErrDataUnavailable, path, err)
	}
	cm, err := ParseColors(data)
	if err != nil {
		return domain.ColorMap{}, fmt.Errorf("%w: %s: %v", domain.ErrDataUnavailable, path, err)
	}
	return cm, nil
}

// ParseColors decodes palette YAML.
func ParseColors(data []byte) (domain.ColorMap, error) {
	var cm domain.ColorMap
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cm); err != nil {
		return domain.ColorMap{}, fmt.Errorf("decode palette: %w", err)
	}
	return cm, nil
}
