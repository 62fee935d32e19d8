package domain

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// GroupKey selects which observation attributes split rows into series.
type GroupKey uint8

const (
	ByModel GroupKey = 1 << iota
	ByScenario
	ByMinesite
	ByMonth
)

var groupKeyNames = []struct {
	key  GroupKey
	name string
}{
	{ByModel, "model"},
	{ByScenario, "scenario"},
	{ByMinesite, "minesite"},
	{ByMonth, "month"},
}

// Has reports whether every bit of f is set in k.
func (k GroupKey) Has(f GroupKey) bool { return k&f == f }

func (k GroupKey) String() string {
	var parts []string
	for _, g := range groupKeyNames {
		if k.Has(g.key) {
			parts = append(parts, g.name)
		}
	}
	return strings.Join(parts, ",")
}

// ParseGroupKey reads a comma-separated list such as "model,scenario".
func ParseGroupKey(s string) (GroupKey, error) {
	var k GroupKey
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		found := false
		for _, g := range groupKeyNames {
			if g.name == part {
				k |= g.key
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown group key %q", part)
		}
	}
	return k, nil
}

// XValue is a point on the chart's x axis: the decade start year, or "<month>-<year>"
// for monthly data.
type XValue struct {
	Year  int
	Month int
}

func (x XValue) String() string {
	if x.Month == 0 {
		return strconv.Itoa(x.Year)
	}
	return strconv.Itoa(x.Month) + "-" + strconv.Itoa(x.Year)
}

// MarshalJSON writes annual values as numbers and monthly values as strings.
func (x XValue) MarshalJSON() ([]byte, error) {
	if x.Month == 0 {
		return []byte(strconv.Itoa(x.Year)), nil
	}
	return []byte(strconv.Quote(x.String())), nil
}

// Series is one line on the chart.
type Series struct {
	Name     string    `json:"name"`
	Model    string    `json:"model,omitempty"`
	Scenario string    `json:"scenario,omitempty"`
	Minesite string    `json:"minesite,omitempty"`
	Month    int       `json:"month,omitempty"`
	X        []XValue  `json:"x"`
	Y        []float64 `json:"y"`
	Color    string    `json:"color"`
}

// Len returns the number of points.
func (s Series) Len() int { return len(s.Y) }

// GroupSeries splits filtered rows into series over the active keys. For each key the
// candidate values are the predicate's explicit set when given, otherwise the distinct
// values of rows in first-seen order. One series is produced per combination
// (scenario outermost, then model, minesite, month), so a requested combination with
// no rows yields an empty series. Points are ordered by year then month; NaN
// temperatures are dropped.
func GroupSeries(rows []Observation, p Predicate, keys GroupKey, monthly bool) []Series {
	if !monthly {
		keys &^= ByMonth
	}

	scenarios := dimension(keys.Has(ByScenario), p.Scenarios, rows, func(o Observation) string { return o.Scenario })
	models := dimension(keys.Has(ByModel), p.Models, rows, func(o Observation) string { return o.Model })
	minesites := dimension(keys.Has(ByMinesite), p.Minesites, rows, func(o Observation) string { return o.Minesite })
	var monthSet []string
	if p.Month != 0 {
		monthSet = []string{strconv.Itoa(p.Month)}
	}
	months := dimension(keys.Has(ByMonth), monthSet, rows, func(o Observation) string { return strconv.Itoa(o.Month) })

	var series []Series
	index := make(map[string]int)
	for _, s := range scenarios {
		for _, m := range models {
			for _, site := range minesites {
				for _, mon := range months {
					month, _ := strconv.Atoi(mon)
					sr := Series{Model: m, Scenario: s, Minesite: site, Month: month}
					sr.Name = seriesName(sr, keys)
					sr.X = []XValue{}
					sr.Y = []float64{}
					index[seriesKey(s, m, site, mon)] = len(series)
					series = append(series, sr)
				}
			}
		}
	}

	type point struct {
		x XValue
		y float64
	}
	points := make([][]point, len(series))
	for _, o := range rows {
		if math.IsNaN(o.Temperature) {
			continue
		}
		k := seriesKey(
			pick(keys.Has(ByScenario), o.Scenario),
			pick(keys.Has(ByModel), o.Model),
			pick(keys.Has(ByMinesite), o.Minesite),
			pick(keys.Has(ByMonth), strconv.Itoa(o.Month)),
		)
		i, ok := index[k]
		if !ok {
			continue
		}
		x := XValue{Year: o.Year}
		if monthly {
			x.Month = o.Month
		}
		points[i] = append(points[i], point{x: x, y: o.Temperature})
	}

	for i, pts := range points {
		sort.SliceStable(pts, func(a, b int) bool {
			if pts[a].x.Year != pts[b].x.Year {
				return pts[a].x.Year < pts[b].x.Year
			}
			return pts[a].x.Month < pts[b].x.Month
		})
		for _, pt := range pts {
			series[i].X = append(series[i].X, pt.x)
			series[i].Y = append(series[i].Y, pt.y)
		}
	}
	return series
}

// dimension returns the values to enumerate for one grouping key. An inactive key
// contributes a single wildcard so the product is unaffected.
func dimension(active bool, explicit []string, rows []Observation, get func(Observation) string) []string {
	if !active {
		return []string{""}
	}
	var out []string
	seen := make(map[string]bool)
	add := func(v string) {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	if explicit != nil {
		for _, v := range explicit {
			add(v)
		}
		return out
	}
	for _, o := range rows {
		add(get(o))
	}
	return out
}

func pick(active bool, v string) string {
	if !active {
		return ""
	}
	return v
}

func seriesKey(scenario, model, minesite, month string) string {
	return scenario + "\x00" + model + "\x00" + minesite + "\x00" + month
}

func seriesName(s Series, keys GroupKey) string {
	var parts []string
	if keys.Has(ByModel) {
		parts = append(parts, s.Model)
	}
	if keys.Has(ByScenario) {
		parts = append(parts, s.Scenario)
	}
	if keys.Has(ByMinesite) {
		parts = append(parts, DisplayName(s.Minesite))
	}
	if keys.Has(ByMonth) && s.Month >= 1 && s.Month <= 12 {
		parts = append(parts, time.Month(s.Month).String())
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, " ")
}
