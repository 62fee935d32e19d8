package domain

import (
	"strings"
	"time"
)

// Table is a delimited file held in memory: the header row plus one string slice per
// record. Columns[0] is the record index.
type Table struct {
	Columns []string
	Rows    [][]string
	Source  string
}

// Observation is one decadal mean temperature for a minesite after melting.
type Observation struct {
	Year            int     `json:"year"`
	Minesite        string  `json:"minesite"`
	MinesiteOrdinal int     `json:"minesite_ordinal"`
	Temperature     float64 `json:"tas"`
	Model           string  `json:"model,omitempty"`
	Scenario        string  `json:"scenario,omitempty"`
	Month           int     `json:"month,omitempty"` // 0 for annual data
	Group           string  `json:"group,omitempty"` // "<timestep>_<aggregation>"
}

// Key identifies the series an observation belongs to, independent of year.
func (o Observation) Key() string {
	return o.Minesite + "|" + o.Model + "|" + o.Scenario + "|" + monthKey(o.Month)
}

func monthKey(m int) string {
	if m == 0 {
		return ""
	}
	return time.Month(m).String()
}

// Site is a point location rendered as a map marker.
type Site struct {
	Name      string  `json:"name"`
	Label     string  `json:"label"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	PlaceName string  `json:"place_name,omitempty"`
	GeoSource string  `json:"geo_source,omitempty"` // "forward", "reverse", "original", "failed"
}

// HasCoordinates reports whether the site carries a usable position.
func (s Site) HasCoordinates() bool {
	return s.Latitude != 0 || s.Longitude != 0
}

// DisplayName turns an identifier such as "Pine_Point_Mine_(Tamerlane)" into the
// label shown in selection widgets.
func DisplayName(id string) string {
	return strings.ReplaceAll(id, "_", " ")
}

// SiteID is the inverse of DisplayName, used when a map click reports a label.
func SiteID(label string) string {
	return strings.ReplaceAll(strings.TrimSpace(label), " ", "_")
}
