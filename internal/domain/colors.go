package domain

import (
	"fmt"
	"sort"
	"strings"
)

// ColorMap fixes a display color per minesite and per (model, scenario) so a series
// keeps its color across interactions.
type ColorMap struct {
	Minesites      map[string]string            `yaml:"minesites" json:"minesites"`
	ModelScenarios map[string]map[string]string `yaml:"models" json:"models"`
}

// DefaultColors is the palette the dashboards shipped with.
func DefaultColors() ColorMap {
	return ColorMap{
		Minesites: map[string]string{
			"CanTung_Mine":                "rgb(140,86,75)",
			"Diavik_Mine":                 "rgb(41,119,179)",
			"Ekati_Mine":                  "rgb(235,124,50)",
			"Gahcho_Kue_Mine":             "rgb(212,56,46)",
			"NICO_Mine":                   "rgb(145,101,185)",
			"Pine_Point_Mine_(Tamerlane)": "rgb(223,117,190)",
			"Prairie_Creek_Mine":          "rgb(125,125,125)",
			"Snap_Lake_Mine":              "rgb(81,158,46)",
		},
		ModelScenarios: map[string]map[string]string{
			"GISS-E2-R":    {"rcp45": "#FDD017", "rcp60": "#F2BB66", "rcp85": "#EAC117"},
			"GFDL-CM3":     {"rcp45": "#6AA121", "rcp60": "#347C17", "rcp85": "#254117"},
			"5ModelAvg":    {"rcp45": "#736F6E", "rcp60": "#463E3F", "rcp85": "#2B1B17"},
			"IPSL-CM5A-LR": {"rcp45": "#C24641", "rcp60": "#7E3517", "rcp85": "#800517"},
			"MRI-CGCM3":    {"rcp45": "#4863A0", "rcp60": "#2B547E", "rcp85": "#151B54"},
			"NCAR-CCSM4":   {"rcp45": "#C35817", "rcp60": "#6F4E37", "rcp85": "#493D26"},
		},
	}
}

// Merge returns a copy of c with the entries of override layered on top.
func (c ColorMap) Merge(override ColorMap) ColorMap {
	out := ColorMap{
		Minesites:      make(map[string]string, len(c.Minesites)+len(override.Minesites)),
		ModelScenarios: make(map[string]map[string]string, len(c.ModelScenarios)+len(override.ModelScenarios)),
	}
	for k, v := range c.Minesites {
		out.Minesites[k] = v
	}
	for k, v := range override.Minesites {
		out.Minesites[k] = v
	}
	for _, src := range []map[string]map[string]string{c.ModelScenarios, override.ModelScenarios} {
		for model, byScenario := range src {
			if out.ModelScenarios[model] == nil {
				out.ModelScenarios[model] = make(map[string]string, len(byScenario))
			}
			for scenario, color := range byScenario {
				out.ModelScenarios[model][scenario] = color
			}
		}
	}
	return out
}

// MinesiteColor looks up the color of a minesite.
func (c ColorMap) MinesiteColor(minesite string) (string, error) {
	color, ok := c.Minesites[minesite]
	if !ok {
		return "", fmt.Errorf("%w: minesite %q", ErrUnknownColorKey, minesite)
	}
	return color, nil
}

// ModelScenarioColor looks up the color of a (model, scenario) pair.
func (c ColorMap) ModelScenarioColor(model, scenario string) (string, error) {
	color, ok := c.ModelScenarios[model][scenario]
	if !ok {
		return "", fmt.Errorf("%w: model %q scenario %q", ErrUnknownColorKey, model, scenario)
	}
	return color, nil
}

// Validate checks that every minesite and every observed (model, scenario) pair of ds
// has a color. Observations without a model or scenario only need a minesite color.
// All missing keys are reported together.
func (c ColorMap) Validate(ds *Dataset) error {
	var missing []string
	seenSite := make(map[string]bool)
	seenPair := make(map[[2]string]bool)
	for _, o := range ds.Observations() {
		if !seenSite[o.Minesite] {
			seenSite[o.Minesite] = true
			if _, err := c.MinesiteColor(o.Minesite); err != nil {
				missing = append(missing, "minesite "+o.Minesite)
			}
		}
		if o.Model == "" || o.Scenario == "" {
			continue
		}
		pair := [2]string{o.Model, o.Scenario}
		if !seenPair[pair] {
			seenPair[pair] = true
			if _, err := c.ModelScenarioColor(o.Model, o.Scenario); err != nil {
				missing = append(missing, o.Model+"/"+o.Scenario)
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: dataset %q has no color for %s", ErrUnknownColorKey, ds.Name(), strings.Join(missing, ", "))
	}
	return nil
}

// AssignColors sets the color of each series: the minesite color when minesite is a
// grouping key, otherwise the (model, scenario) color. An empty series for a
// combination absent from the data draws nothing and is left uncolored.
func (c ColorMap) AssignColors(series []Series, keys GroupKey) error {
	for i := range series {
		var (
			color string
			err   error
		)
		switch {
		case keys.Has(ByMinesite):
			color, err = c.MinesiteColor(series[i].Minesite)
		case keys.Has(ByModel | ByScenario):
			color, err = c.ModelScenarioColor(series[i].Model, series[i].Scenario)
		default:
			err = fmt.Errorf("%w: grouping %q has no color dimension", ErrUnknownColorKey, keys.String())
		}
		if err != nil {
			if series[i].Len() == 0 {
				continue
			}
			return err
		}
		series[i].Color = color
	}
	return nil
}
