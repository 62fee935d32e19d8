package domain

import (
	"strconv"
	"strings"
)

// Predicate selects observations. A nil set means "any value"; a non-nil empty set
// matches nothing. The year range is inclusive on both ends. Month 0 means no month
// filter.
type Predicate struct {
	Minesites []string
	Scenarios []string
	Models    []string
	YearMin   int
	YearMax   int
	Month     int
}

// Everything returns a predicate spanning the whole dataset.
func Everything(ds *Dataset) Predicate {
	f := ds.facets
	return Predicate{YearMin: f.YearMin, YearMax: f.YearMax}
}

// CacheKey renders the predicate canonically, keeping nil and empty sets distinct and
// preserving set order since it drives series order.
func (p Predicate) CacheKey() string {
	var b strings.Builder
	writeSet := func(name string, vs []string) {
		b.WriteString(name)
		switch {
		case vs == nil:
			b.WriteString("=*")
		default:
			b.WriteString("=[")
			for i, v := range vs {
				if i > 0 {
					b.WriteByte(',')
				}
				b.WriteString(strconv.Quote(v))
			}
			b.WriteByte(']')
		}
		b.WriteByte(';')
	}
	writeSet("minesites", p.Minesites)
	writeSet("scenarios", p.Scenarios)
	writeSet("models", p.Models)
	b.WriteString("years=" + strconv.Itoa(p.YearMin) + ".." + strconv.Itoa(p.YearMax))
	b.WriteString(";month=" + strconv.Itoa(p.Month))
	return b.String()
}

// Filter returns the observations of ds that satisfy p, in dataset order.
func Filter(ds *Dataset, p Predicate) []Observation {
	return FilterRows(ds.Observations(), p, ds.HasMonth())
}

// FilterRows is Filter over an arbitrary slice. monthAware tells whether the rows come
// from data that carries months; when false the month predicate is ignored. An
// inverted year range yields no rows.
func FilterRows(rows []Observation, p Predicate, monthAware bool) []Observation {
	if p.YearMin > p.YearMax {
		return []Observation{}
	}

	minesites := toSet(p.Minesites)
	scenarios := toSet(p.Scenarios)
	models := toSet(p.Models)
	filterMonth := monthAware && p.Month != 0

	out := make([]Observation, 0)
	for _, o := range rows {
		if o.Year < p.YearMin || o.Year > p.YearMax {
			continue
		}
		if !inSet(minesites, o.Minesite) || !inSet(scenarios, o.Scenario) || !inSet(models, o.Model) {
			continue
		}
		if filterMonth && o.Month != p.Month {
			continue
		}
		out = append(out, o)
	}
	return out
}

// Matches reports whether a single observation satisfies p.
func (p Predicate) Matches(o Observation, monthAware bool) bool {
	return len(FilterRows([]Observation{o}, p, monthAware)) == 1
}

// toSet returns nil for an unrestricted set and a (possibly empty) map otherwise.
func toSet(vs []string) map[string]struct{} {
	if vs == nil {
		return nil
	}
	s := make(map[string]struct{}, len(vs))
	for _, v := range vs {
		s[v] = struct{}{}
	}
	return s
}

func inSet(s map[string]struct{}, v string) bool {
	if s == nil {
		return true
	}
	_, ok := s[v]
	return ok
}
