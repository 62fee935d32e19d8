package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Long-format column names as written by the melt tool and the upstream notebooks.
const (
	colYear     = "year"
	colRand     = "rand"
	colMinesite = "minesite"
	colTas      = "tas"
	colGroup    = "group"
	colModel    = "model"
	colScenario = "scenario"
)

// FromLongTable reads an already-melted table. Required columns are year, minesite
// and tas (or temperature); group, model, scenario, month and rand are optional.
// The first column is treated as a record index when its header is blank.
//
// A rand column holding integers is kept as the ordinal; otherwise ordinals are
// assigned in first-seen order.
func FromLongTable(t Table) ([]Observation, error) {
	idx := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		name := strings.ToLower(strings.TrimSpace(c))
		if name == "" && i == 0 {
			continue
		}
		if name == "temperature" {
			name = colTas
		}
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	for _, required := range []string{colYear, colMinesite, colTas} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("%w: %s has no %q column", ErrDataUnavailable, t.Source, required)
		}
	}

	get := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok {
			return ""
		}
		return strings.TrimSpace(cell(row, i))
	}

	ordinals := make(map[string]int)
	out := make([]Observation, 0, len(t.Rows))
	for r, row := range t.Rows {
		year, err := parseLongYear(get(row, colYear))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", t.Source, r+1, err)
		}
		tas, err := ParseTemperature(get(row, colTas))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", t.Source, r+1, err)
		}
		month, err := parseMonth(get(row, MonthColumn))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", t.Source, r+1, err)
		}

		minesite := get(row, colMinesite)
		ordinal, err := strconv.Atoi(get(row, colRand))
		if err != nil {
			var seen bool
			ordinal, seen = ordinals[minesite]
			if !seen {
				ordinal = len(ordinals)
				ordinals[minesite] = ordinal
			}
		}

		out = append(out, Observation{
			Year:            year,
			Minesite:        minesite,
			MinesiteOrdinal: ordinal,
			Temperature:     tas,
			Model:           get(row, colModel),
			Scenario:        get(row, colScenario),
			Month:           month,
			Group:           get(row, colGroup),
		})
	}
	return out, nil
}

// ToLongTable renders observations in the consolidated long layout with a 0-based
// record index in the first column.
func ToLongTable(obs []Observation) Table {
	hasMonth := false
	for _, o := range obs {
		if o.Month != 0 {
			hasMonth = true
			break
		}
	}

	columns := []string{"", colYear, colRand, colMinesite, colTas, colGroup, colModel, colScenario}
	if hasMonth {
		columns = append(columns, MonthColumn)
	}

	rows := make([][]string, len(obs))
	for i, o := range obs {
		row := []string{
			strconv.Itoa(i),
			strconv.Itoa(o.Year),
			strconv.Itoa(o.MinesiteOrdinal),
			o.Minesite,
			FormatTemperature(o.Temperature),
			o.Group,
			o.Model,
			o.Scenario,
		}
		if hasMonth {
			m := ""
			if o.Month != 0 {
				m = strconv.Itoa(o.Month)
			}
			row = append(row, m)
		}
		rows[i] = row
	}
	return Table{Columns: columns, Rows: rows}
}

// IsLongTable reports whether a header already describes melted rows.
func IsLongTable(columns []string) bool {
	var hasMinesite, hasTas bool
	for _, c := range columns {
		switch strings.ToLower(strings.TrimSpace(c)) {
		case colMinesite:
			hasMinesite = true
		case colTas, "temperature":
			hasTas = true
		}
	}
	return hasMinesite && hasTas
}

// parseLongYear accepts both melted integers ("1990") and decade labels ("1990s").
func parseLongYear(s string) (int, error) {
	if y, err := strconv.Atoi(s); err == nil && y >= 0 {
		return y, nil
	}
	return ParseYearLabel(s)
}
