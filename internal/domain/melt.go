package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MonthColumn is the passthrough column carrying the month in monthly tables.
const MonthColumn = "month"

// passthroughColumns are bookkeeping columns that are never melted into minesites.
var passthroughColumns = map[string]bool{
	"rand":      true,
	MonthColumn: true,
}

// ParseYearLabel reduces a decade label such as "1990s" to its start year by taking
// the integer before the first literal 's'.
func ParseYearLabel(label string) (int, error) {
	label = strings.TrimSpace(label)
	prefix, _, found := strings.Cut(label, "s")
	if !found {
		return 0, fmt.Errorf("%w: %q has no 's' delimiter", ErrInvalidYearLabel, label)
	}
	year, err := strconv.Atoi(prefix)
	if err != nil || year < 0 {
		return 0, fmt.Errorf("%w: %q has no non-negative year prefix", ErrInvalidYearLabel, label)
	}
	return year, nil
}

// FormatYearLabel is the inverse of ParseYearLabel for canonical labels.
func FormatYearLabel(year int) string {
	return strconv.Itoa(year) + "s"
}

// Melt converts a wide table into observations. Rows are emitted column by column:
// every decade of the first minesite, then every decade of the next. When prov is
// non-nil its model, scenario and group are attached to every row.
//
// A table whose only columns are the index and passthrough columns melts to zero
// observations without error.
func Melt(t Table, prov *Provenance) ([]Observation, error) {
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("%w: %s has no header", ErrDataUnavailable, t.Source)
	}

	monthIdx := -1
	var valueIdx []int
	for i := 1; i < len(t.Columns); i++ {
		name := strings.TrimSpace(t.Columns[i])
		switch {
		case name == MonthColumn:
			monthIdx = i
		case passthroughColumns[name]:
		default:
			valueIdx = append(valueIdx, i)
		}
	}
	if len(valueIdx) == 0 {
		return nil, nil
	}

	years := make([]int, len(t.Rows))
	months := make([]int, len(t.Rows))
	for r, row := range t.Rows {
		year, err := ParseYearLabel(cell(row, 0))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", t.Source, r+1, err)
		}
		years[r] = year

		if monthIdx >= 0 {
			m, err := parseMonth(cell(row, monthIdx))
			if err != nil {
				return nil, fmt.Errorf("%s row %d: %w", t.Source, r+1, err)
			}
			months[r] = m
		}
	}

	ordinals := make(map[string]int)
	out := make([]Observation, 0, len(valueIdx)*len(t.Rows))
	for _, ci := range valueIdx {
		minesite := strings.TrimSpace(t.Columns[ci])
		ordinal, seen := ordinals[minesite]
		if !seen {
			ordinal = len(ordinals)
			ordinals[minesite] = ordinal
		}

		for r, row := range t.Rows {
			tas, err := ParseTemperature(cell(row, ci))
			if err != nil {
				return nil, fmt.Errorf("%s row %d column %q: %w", t.Source, r+1, minesite, err)
			}
			obs := Observation{
				Year:            years[r],
				Minesite:        minesite,
				MinesiteOrdinal: ordinal,
				Temperature:     tas,
				Month:           months[r],
			}
			if prov != nil {
				obs.Model = prov.Model
				obs.Scenario = prov.Scenario
				obs.Group = prov.Group()
			}
			out = append(out, obs)
		}
	}
	return out, nil
}

// Concat appends melted tables in order. Overlapping keys are kept as-is.
func Concat(parts ...[]Observation) []Observation {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]Observation, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Pivot rebuilds a wide table from observations of a single (model, scenario).
// Rows follow the first-seen (year, month) order and columns the first-seen minesite
// order. A "month" column is written after the index when any observation carries a
// month. Duplicate cells resolve to the last observation. The "rand" bookkeeping
// column is not reproduced.
func Pivot(obs []Observation, indexHeader string) Table {
	type rowKey struct{ year, month int }

	var (
		rowOrder  []rowKey
		rowIndex  = make(map[rowKey]int)
		siteOrder []string
		siteIndex = make(map[string]int)
		hasMonth  bool
	)
	for _, o := range obs {
		k := rowKey{o.Year, o.Month}
		if _, ok := rowIndex[k]; !ok {
			rowIndex[k] = len(rowOrder)
			rowOrder = append(rowOrder, k)
		}
		if _, ok := siteIndex[o.Minesite]; !ok {
			siteIndex[o.Minesite] = len(siteOrder)
			siteOrder = append(siteOrder, o.Minesite)
		}
		if o.Month != 0 {
			hasMonth = true
		}
	}

	offset := 1
	columns := []string{indexHeader}
	if hasMonth {
		columns = append(columns, MonthColumn)
		offset = 2
	}
	columns = append(columns, siteOrder...)

	rows := make([][]string, len(rowOrder))
	for i, k := range rowOrder {
		row := make([]string, len(columns))
		row[0] = FormatYearLabel(k.year)
		if hasMonth {
			row[1] = strconv.Itoa(k.month)
		}
		rows[i] = row
	}
	for _, o := range obs {
		r := rowIndex[rowKey{o.Year, o.Month}]
		rows[r][offset+siteIndex[o.Minesite]] = FormatTemperature(o.Temperature)
	}

	return Table{Columns: columns, Rows: rows}
}

// PivotLike rebuilds the wide table layout was melted from. Header, row order and
// passthrough cells (rand, month) are replayed from layout; every minesite cell is
// taken from obs. A cell keeps its original text when that text still parses to the
// observed value, so "-9.0" is not rewritten as "-9". Observations whose decade,
// month or minesite do not appear in layout are appended in canonical form after
// the replayed rows and columns.
func PivotLike(obs []Observation, layout Table) Table {
	type cellKey struct {
		year, month int
		minesite    string
	}
	values := make(map[cellKey]float64, len(obs))
	for _, o := range obs {
		values[cellKey{o.Year, o.Month, o.Minesite}] = o.Temperature
	}

	monthIdx := -1
	colIndex := make(map[string]int)
	for i := 1; i < len(layout.Columns); i++ {
		name := strings.TrimSpace(layout.Columns[i])
		switch {
		case name == MonthColumn:
			monthIdx = i
		case passthroughColumns[name]:
		default:
			colIndex[name] = i
		}
	}

	out := Table{
		Columns: append([]string(nil), layout.Columns...),
		Rows:    make([][]string, 0, len(layout.Rows)),
		Source:  layout.Source,
	}
	used := make(map[cellKey]bool, len(obs))
	rowKeys := make(map[[2]int]int)
	for _, src := range layout.Rows {
		row := make([]string, len(out.Columns))
		copy(row, src)
		year, yerr := ParseYearLabel(cell(src, 0))
		month := 0
		if monthIdx >= 0 {
			month, _ = parseMonth(cell(src, monthIdx))
		}
		if yerr == nil {
			rowKeys[[2]int{year, month}] = len(out.Rows)
		}
		for name, ci := range colIndex {
			k := cellKey{year, month, name}
			v, ok := values[k]
			if yerr != nil || !ok {
				row[ci] = ""
				continue
			}
			used[k] = true
			row[ci] = keepText(cell(src, ci), v)
		}
		out.Rows = append(out.Rows, row)
	}

	// Anything the layout has no place for.
	for _, o := range obs {
		k := cellKey{o.Year, o.Month, o.Minesite}
		if used[k] {
			continue
		}
		used[k] = true
		ci, ok := colIndex[o.Minesite]
		if !ok {
			ci = len(out.Columns)
			colIndex[o.Minesite] = ci
			out.Columns = append(out.Columns, o.Minesite)
			for i := range out.Rows {
				out.Rows[i] = append(out.Rows[i], "")
			}
		}
		ri, ok := rowKeys[[2]int{o.Year, o.Month}]
		if !ok {
			ri = len(out.Rows)
			rowKeys[[2]int{o.Year, o.Month}] = ri
			row := make([]string, len(out.Columns))
			row[0] = FormatYearLabel(o.Year)
			if monthIdx >= 0 && o.Month != 0 {
				row[monthIdx] = strconv.Itoa(o.Month)
			}
			out.Rows = append(out.Rows, row)
		}
		out.Rows[ri][ci] = FormatTemperature(values[k])
	}
	return out
}

// keepText returns original when it still denotes v, else the canonical form of v.
func keepText(original string, v float64) string {
	parsed, err := ParseTemperature(original)
	if err == nil && (parsed == v || (math.IsNaN(parsed) && math.IsNaN(v))) {
		return original
	}
	return FormatTemperature(v)
}

// ParseTemperature parses a cell value. Empty cells and "nan" read as NaN.
func ParseTemperature(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: temperature %q is not a number", ErrDataUnavailable, s)
	}
	return v, nil
}

// FormatTemperature writes the shortest representation that parses back to v.
// NaN is written as an empty cell.
func FormatTemperature(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseMonth(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	m, err := strconv.Atoi(s)
	if err != nil || m < 1 || m > 12 {
		return 0, fmt.Errorf("%w: month %q outside 1-12", ErrDataUnavailable, s)
	}
	return m, nil
}

// cell returns row[i] or "" for short rows.
func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
