package domain

import (
	"fmt"
	"sort"
	"time"
)

// Dataset is an immutable set of observations with its selection facets precomputed.
// Build it once with NewDataset and share it freely between goroutines.
type Dataset struct {
	name         string
	observations []Observation
	facets       Facets
	unattributed bool
}

// Facets lists the distinct values a UI offers for selection.
type Facets struct {
	Name         string   `json:"name"`
	Observations int      `json:"observations"`
	Minesites    []string `json:"minesites"`
	Models       []string `json:"models"`
	Scenarios    []string `json:"scenarios"`
	Groups       []string `json:"groups"`
	Months       []int    `json:"months,omitempty"`
	YearMin      int      `json:"year_min"`
	YearMax      int      `json:"year_max"`
	HasMonth     bool     `json:"has_month"`
}

// NewDataset copies obs and derives facets. Distinct values keep first-seen order;
// empty strings are not offered as facets.
func NewDataset(name string, obs []Observation) *Dataset {
	own := make([]Observation, len(obs))
	copy(own, obs)

	f := Facets{Name: name, Observations: len(own)}
	seen := map[string]map[string]bool{
		colMinesite: {}, colModel: {}, colScenario: {}, colGroup: {},
	}
	add := func(kind, v string, dst *[]string) {
		if v == "" || seen[kind][v] {
			return
		}
		seen[kind][v] = true
		*dst = append(*dst, v)
	}
	months := make(map[int]bool)
	var unattributed bool

	for i, o := range own {
		if o.Model == "" || o.Scenario == "" {
			unattributed = true
		}
		add(colMinesite, o.Minesite, &f.Minesites)
		add(colModel, o.Model, &f.Models)
		add(colScenario, o.Scenario, &f.Scenarios)
		add(colGroup, o.Group, &f.Groups)
		if o.Month != 0 && !months[o.Month] {
			months[o.Month] = true
			f.Months = append(f.Months, o.Month)
		}
		if i == 0 || o.Year < f.YearMin {
			f.YearMin = o.Year
		}
		if i == 0 || o.Year > f.YearMax {
			f.YearMax = o.Year
		}
	}
	sort.Ints(f.Months)
	f.HasMonth = len(f.Months) > 0

	return &Dataset{name: name, observations: own, facets: f, unattributed: unattributed}
}

// Name returns the catalog name of the dataset.
func (d *Dataset) Name() string { return d.name }

// Len returns the number of observations.
func (d *Dataset) Len() int { return len(d.observations) }

// HasMonth reports whether any observation carries a month.
func (d *Dataset) HasMonth() bool { return d.facets.HasMonth }

// HasUnattributed reports whether any observation lacks a model or scenario. Such
// rows can only be colored by minesite.
func (d *Dataset) HasUnattributed() bool { return d.unattributed }

// Observations returns the backing slice. Callers must not modify it.
func (d *Dataset) Observations() []Observation { return d.observations }

// Facets returns a copy of the selection facets.
func (d *Dataset) Facets() Facets {
	f := d.facets
	f.Minesites = append([]string(nil), f.Minesites...)
	f.Models = append([]string(nil), f.Models...)
	f.Scenarios = append([]string(nil), f.Scenarios...)
	f.Groups = append([]string(nil), f.Groups...)
	f.Months = append([]int(nil), f.Months...)
	return f
}

// Region is the boundary polygon drawn under the site markers.
type Region struct {
	GeoJSON []byte  `json:"-"`
	MinLat  float64 `json:"min_lat"`
	MinLon  float64 `json:"min_lon"`
	MaxLat  float64 `json:"max_lat"`
	MaxLon  float64 `json:"max_lon"`
}

// Center returns the midpoint of the bounding box.
func (r Region) Center() (lat, lon float64) {
	return (r.MinLat + r.MaxLat) / 2, (r.MinLon + r.MaxLon) / 2
}

// SkippedFile records a source file left out of a load and why.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Catalog is everything the dashboard serves from one load. It is replaced as a whole
// on refresh and never mutated.
type Catalog struct {
	Generation string
	LoadedAt   time.Time
	Names      []string
	Datasets   map[string]*Dataset
	Sites      []Site
	Region     *Region
	Colors     ColorMap
	Skipped    []SkippedFile
}

// Dataset looks up a dataset by name.
func (c *Catalog) Dataset(name string) (*Dataset, error) {
	d, ok := c.Datasets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataset, name)
	}
	return d, nil
}

// MapCenter prefers the region bounding box and falls back to the mean site position.
func (c *Catalog) MapCenter() (lat, lon float64) {
	if c.Region != nil {
		return c.Region.Center()
	}
	var n int
	for _, s := range c.Sites {
		if !s.HasCoordinates() {
			continue
		}
		lat += s.Latitude
		lon += s.Longitude
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return lat / float64(n), lon / float64(n)
}
