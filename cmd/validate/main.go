// Command validate checks a projection data directory before it is served: every
// table must carry readable provenance and decade labels, melting must be reversible,
// and every minesite and model run must have a color and a map position.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -data-dir data/annual \
//	  -sites data/minesites.csv \
//	  -colors data/colors.yaml
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/couchcryptid/minesite-climate-service/internal/adapter/chart"
	"github.com/couchcryptid/minesite-climate-service/internal/adapter/csvfile"
	"github.com/couchcryptid/minesite-climate-service/internal/adapter/palette"
	"github.com/couchcryptid/minesite-climate-service/internal/domain"
	"github.com/couchcryptid/minesite-climate-service/internal/pipeline"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// source is one table with what could be derived from it.
type source struct {
	path  string
	table domain.Table
	prov  *domain.Provenance
	long  bool
	obs   []domain.Observation
}

func main() {
	dataDir := flag.String("data-dir", "", "directory (or single file) of projection CSV tables")
	sitesFile := flag.String("sites", "", "optional minesite locations CSV")
	colorsFile := flag.String("colors", "", "optional color palette YAML layered over the defaults")
	flag.Parse()

	if *dataDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(*dataDir, *sitesFile, *colorsFile))
}

func run(dataDir, sitesFile, colorsFile string) int {
	fmt.Println("=== Minesite Projection Data Validation ===")
	fmt.Println()

	paths, err := listTables(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "FATAL: no CSV tables in %s\n", dataDir)
		return 1
	}

	colors := domain.DefaultColors()
	if colorsFile != "" {
		override, err := palette.ReadColors(colorsFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load colors: %v\n", err)
			return 1
		}
		colors = colors.Merge(override)
	}

	var sites []domain.Site
	if sitesFile != "" {
		if sites, err = csvfile.ReadSites(sitesFile); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load sites: %v\n", err)
			return 1
		}
	}

	sources := make([]*source, 0, len(paths))
	readPhase := &phase{name: "Phase 1: Tables readable"}
	for _, path := range paths {
		t, err := csvfile.ReadTable(path)
		if err != nil {
			readPhase.errorf("%v", err)
			continue
		}
		sources = append(sources, &source{path: path, table: t, long: domain.IsLongTable(t.Columns)})
	}

	phases := []*phase{
		readPhase,
		validateProvenance(sources),
		validateMelt(sources),
		validateRoundTrip(sources),
	}
	ds := domain.NewDataset(filepath.Base(dataDir), collect(sources))
	phases = append(phases, validateColors(ds, colors))
	if sitesFile != "" {
		phases = append(phases, validateSites(ds, sites))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	f := ds.Facets()
	fmt.Println()
	fmt.Printf("Tables: %d, observations: %d, minesites: %d, model runs: %d, years: %d-%d\n",
		len(sources), ds.Len(), len(f.Minesites), countRuns(ds), f.YearMin, f.YearMax)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func listTables(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && pipeline.IsCSV(e.Name()) {
			out = append(out, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func collect(sources []*source) []domain.Observation {
	parts := make([][]domain.Observation, 0, len(sources))
	for _, s := range sources {
		parts = append(parts, s.obs)
	}
	return domain.Concat(parts...)
}

func countRuns(ds *domain.Dataset) int {
	runs := make(map[[2]string]bool)
	for _, o := range ds.Observations() {
		runs[[2]string{o.Model, o.Scenario}] = true
	}
	return len(runs)
}

// ── Phase 2: Provenance ──
// Wide tables must name their model run; long tables carry it in columns.

func validateProvenance(sources []*source) *phase {
	p := &phase{name: "Phase 2: Filename provenance"}
	for _, s := range sources {
		if s.long {
			continue
		}
		prov, err := domain.ParseProvenance(s.path)
		if err != nil {
			p.errorf("%v", err)
			continue
		}
		if prov.Variable != "tas" {
			p.errorf("%s: variable %q, expected tas", filepath.Base(s.path), prov.Variable)
		}
		s.prov = &prov
	}
	return p
}

// ── Phase 3: Melt ──
// Every decade label must parse and every cell must be a number or empty.

func validateMelt(sources []*source) *phase {
	p := &phase{name: "Phase 3: Decade labels and values"}
	for _, s := range sources {
		var (
			obs []domain.Observation
			err error
		)
		switch {
		case s.long:
			obs, err = domain.FromLongTable(s.table)
		case s.prov != nil:
			obs, err = domain.Melt(s.table, s.prov)
		default:
			continue
		}
		if err != nil {
			p.errorf("%v", err)
			continue
		}
		if len(obs) == 0 {
			p.errorf("%s: no minesite columns", filepath.Base(s.path))
		}
		var missing int
		for _, o := range obs {
			if math.IsNaN(o.Temperature) {
				missing++
			}
		}
		if missing > 0 {
			fmt.Printf("  Note: %s has %d empty temperature cell(s)\n", filepath.Base(s.path), missing)
		}
		s.obs = obs
	}
	return p
}

// ── Phase 4: Round trip ──
// Pivoting the melted rows back onto the table's own layout must reproduce it cell
// for cell, passthrough columns and number formatting included.

func validateRoundTrip(sources []*source) *phase {
	p := &phase{name: "Phase 4: Melt/pivot round trip"}
	for _, s := range sources {
		if s.long || s.obs == nil {
			continue
		}
		got := domain.PivotLike(s.obs, s.table)
		name := filepath.Base(s.path)

		if len(got.Columns) != len(s.table.Columns) {
			p.errorf("%s: pivot gives %d columns, table has %d", name, len(got.Columns), len(s.table.Columns))
		}
		if len(got.Rows) != len(s.table.Rows) {
			p.errorf("%s: pivot gives %d rows, table has %d", name, len(got.Rows), len(s.table.Rows))
		}
		for r := 0; r < len(s.table.Rows) && r < len(got.Rows); r++ {
			for c := range s.table.Columns {
				w, g := cellAt(s.table.Rows[r], c), cellAt(got.Rows[r], c)
				if w != g {
					p.errorf("%s: row %d column %q was %q, pivot gives %q", name, r+1, s.table.Columns[c], w, g)
				}
			}
		}
	}
	return p
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// ── Phase 5: Colors ──

func validateColors(ds *domain.Dataset, colors domain.ColorMap) *phase {
	p := &phase{name: "Phase 5: Color coverage"}
	if err := colors.Validate(ds); err != nil {
		p.errorf("%v", err)
	}
	if err := chart.ValidateColors(colors); err != nil {
		p.errorf("%v", err)
	}
	return p
}

// ── Phase 6: Sites ──
// Every minesite in the tables needs a marker with a position.

func validateSites(ds *domain.Dataset, sites []domain.Site) *phase {
	p := &phase{name: "Phase 6: Site locations"}
	byName := make(map[string]domain.Site, len(sites))
	for _, s := range sites {
		byName[s.Name] = s
	}
	for _, m := range ds.Facets().Minesites {
		s, ok := byName[m]
		switch {
		case !ok:
			p.errorf("minesite %q has no row in the sites file", m)
		case !s.HasCoordinates():
			p.errorf("minesite %q has no coordinates", m)
		}
	}
	return p
}
