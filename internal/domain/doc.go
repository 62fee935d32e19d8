// Package domain models decadal temperature projections for Northwest Territories
// mine sites and the pure functions that reshape and query them.
//
// # Data Source
//
// Projections are delivered as CSV tables derived from downscaled CMIP5 model runs.
// Two layouts exist:
//
//	Wide:  one row per decade, one column per minesite, plus bookkeeping columns.
//	Long:  one row per (decade, minesite) observation, already melted.
//
// Wide files come one per (model, scenario) and carry their provenance in the
// filename:
//
//	"<variable>_<metric>_<model>_<scenario>_<timestep>_<aggregation>_<anything>.csv"
//	e.g. "tas_mean_NCAR-CCSM4_rcp85_annual_decadals_profiles_nwt_mine_sites.csv"
//	     → variable=tas metric=mean model=NCAR-CCSM4 scenario=rcp85
//	       timestep=annual aggregation=decadals
//
// Only the first six underscore-separated tokens are positional; everything after is
// free text. See [ParseProvenance].
//
// # Wide Table Conventions
//
// The first column is the record index and holds a decade label:
//
//	"1990s" → 1990 (integer prefix before the first literal 's').
//
// A label without an 's' is a format mismatch for the whole file, not a bad record,
// so [Melt] returns [ErrInvalidYearLabel] and the load aborts.
//
// Passthrough columns are never melted:
//
//	rand:  placeholder ordinal written by the upstream notebook; recomputed.
//	month: 1–12 in monthly-resolution tables; copied onto each observation.
//
// Every other column is a minesite, e.g. "Snap_Lake_Mine". Underscores are kept in
// identifiers and replaced by spaces only for display.
//
// # Ordinals
//
// MinesiteOrdinal enumerates minesites in the order they first appear in the melted
// rows. It is reproducible for a given file but not comparable across files that cover
// different minesite subsets; use it for coloring only.
//
// # Concatenation
//
// Rows from several files are appended without deduplication. Two files contributing
// the same (minesite, model, scenario, year) tuple both survive; queries return both.
package domain
