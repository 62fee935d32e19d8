package domain

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSource = "tas_mean_GFDL-CM3_rcp85_annual_decadals_profiles_nwt_mine_sites.csv"

func wideTable() Table {
	return Table{
		Columns: []string{"", "rand", "Snap_Lake_Mine", "Diavik_Mine"},
		Rows: [][]string{
			{"1990s", "0", "-8.5", "-10.25"},
			{"2000s", "0", "-7.75", "-9.5"},
		},
		Source: testSource,
	}
}

func TestParseYearLabel(t *testing.T) {
	valid := map[string]int{
		"1990s":   1990,
		"2050s":   2050,
		" 2000s ": 2000,
		"1990s_x": 1990,
		"0s":      0,
	}
	for label, want := range valid {
		t.Run(label, func(t *testing.T) {
			got, err := ParseYearLabel(label)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	for _, label := range []string{"1990", "", "s", "abcs", "-10s", "19x0s"} {
		t.Run("invalid "+label, func(t *testing.T) {
			_, err := ParseYearLabel(label)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidYearLabel)
		})
	}
}

func TestFormatYearLabel(t *testing.T) {
	assert.Equal(t, "1990s", FormatYearLabel(1990))
	got, err := ParseYearLabel(FormatYearLabel(2090))
	require.NoError(t, err)
	assert.Equal(t, 2090, got)
}

func TestMelt(t *testing.T) {
	t.Run("column-major order with ordinals", func(t *testing.T) {
		obs, err := Melt(wideTable(), nil)
		require.NoError(t, err)

		want := []Observation{
			{Year: 1990, Minesite: "Snap_Lake_Mine", MinesiteOrdinal: 0, Temperature: -8.5},
			{Year: 2000, Minesite: "Snap_Lake_Mine", MinesiteOrdinal: 0, Temperature: -7.75},
			{Year: 1990, Minesite: "Diavik_Mine", MinesiteOrdinal: 1, Temperature: -10.25},
			{Year: 2000, Minesite: "Diavik_Mine", MinesiteOrdinal: 1, Temperature: -9.5},
		}
		if diff := cmp.Diff(want, obs); diff != "" {
			t.Errorf("Melt() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("attaches provenance", func(t *testing.T) {
		prov, err := ParseProvenance(testSource)
		require.NoError(t, err)

		obs, err := Melt(wideTable(), &prov)
		require.NoError(t, err)
		require.Len(t, obs, 4)
		for _, o := range obs {
			assert.Equal(t, "GFDL-CM3", o.Model)
			assert.Equal(t, "rcp85", o.Scenario)
			assert.Equal(t, "annual_decadals", o.Group)
		}
	})

	t.Run("month passthrough", func(t *testing.T) {
		tbl := Table{
			Columns: []string{"", "month", "NICO_Mine"},
			Rows: [][]string{
				{"1990s", "1", "-25.5"},
				{"1990s", "7", "15.25"},
			},
		}
		obs, err := Melt(tbl, nil)
		require.NoError(t, err)
		require.Len(t, obs, 2)
		assert.Equal(t, 1, obs[0].Month)
		assert.Equal(t, 7, obs[1].Month)
		assert.Equal(t, "NICO_Mine", obs[1].Minesite)
	})

	t.Run("invalid year label aborts", func(t *testing.T) {
		tbl := wideTable()
		tbl.Rows[1][0] = "2000"
		_, err := Melt(tbl, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidYearLabel)
		assert.Contains(t, err.Error(), "row 2")
	})

	t.Run("no value columns yields nothing", func(t *testing.T) {
		tbl := Table{
			Columns: []string{"", "rand"},
			Rows:    [][]string{{"not-a-label", "0"}},
		}
		obs, err := Melt(tbl, nil)
		require.NoError(t, err)
		assert.Empty(t, obs)
	})

	t.Run("empty minesite name preserved", func(t *testing.T) {
		tbl := Table{
			Columns: []string{"", ""},
			Rows:    [][]string{{"1990s", "1.5"}},
		}
		obs, err := Melt(tbl, nil)
		require.NoError(t, err)
		require.Len(t, obs, 1)
		assert.Equal(t, "", obs[0].Minesite)
		assert.Equal(t, 1.5, obs[0].Temperature)
	})

	t.Run("empty cell reads as NaN", func(t *testing.T) {
		tbl := wideTable()
		tbl.Rows[0][2] = ""
		obs, err := Melt(tbl, nil)
		require.NoError(t, err)
		assert.True(t, math.IsNaN(obs[0].Temperature))
	})

	t.Run("non-numeric cell", func(t *testing.T) {
		tbl := wideTable()
		tbl.Rows[0][3] = "warm"
		_, err := Melt(tbl, nil)
		assert.ErrorIs(t, err, ErrDataUnavailable)
	})

	t.Run("month out of range", func(t *testing.T) {
		tbl := Table{
			Columns: []string{"", "month", "NICO_Mine"},
			Rows:    [][]string{{"1990s", "13", "1"}},
		}
		_, err := Melt(tbl, nil)
		assert.ErrorIs(t, err, ErrDataUnavailable)
	})

	t.Run("missing header", func(t *testing.T) {
		_, err := Melt(Table{}, nil)
		assert.ErrorIs(t, err, ErrDataUnavailable)
	})
}

func TestMelt_OrdinalIsFirstSeen(t *testing.T) {
	tbl := Table{
		Columns: []string{"", "Ekati_Mine", "CanTung_Mine", "Ekati_Mine"},
		Rows:    [][]string{{"1990s", "1", "2", "3"}},
	}
	obs, err := Melt(tbl, nil)
	require.NoError(t, err)
	require.Len(t, obs, 3)
	assert.Equal(t, []int{0, 1, 0}, []int{obs[0].MinesiteOrdinal, obs[1].MinesiteOrdinal, obs[2].MinesiteOrdinal})
}

func TestMeltPivotRoundTrip(t *testing.T) {
	tables := map[string]Table{
		"annual": {
			Columns: []string{"", "CanTung_Mine", "Diavik_Mine", "Ekati_Mine"},
			Rows: [][]string{
				{"1990s", "-3.1", "-9.82", "-10.4"},
				{"2000s", "-2.5", "-9", "-9.75"},
				{"2010s", "-1.95", "-8.125", "-9.1"},
			},
		},
		"monthly": {
			Columns: []string{"", MonthColumn, "Snap_Lake_Mine"},
			Rows: [][]string{
				{"2020s", "1", "-27.5"},
				{"2020s", "2", "-25"},
				{"2030s", "1", "-26.25"},
				{"2030s", "2", "-24.5"},
			},
		},
		"single column": {
			Columns: []string{"decade", "Prairie_Creek_Mine"},
			Rows:    [][]string{{"2090s", "2.5"}},
		},
		"delivered layout": {
			Columns: []string{"", "rand", "CanTung_Mine", "Diavik_Mine", " Ekati_Mine"},
			Rows: [][]string{
				{"1990s", "0", "-3.1", "-9.82", "-10.40"},
				{"2000s", "0", "-2.5", "-9.0", ""},
				{"2010s", "0", "-1.95", "-8.125", "-9.1"},
			},
		},
		"monthly with rand": {
			Columns: []string{"", "rand", MonthColumn, "Snap_Lake_Mine"},
			Rows: [][]string{
				{"2020s", "7", "1", "-27.50"},
				{"2020s", "7", "2", "-25"},
			},
		},
	}

	for name, tbl := range tables {
		t.Run(name, func(t *testing.T) {
			obs, err := Melt(tbl, nil)
			require.NoError(t, err)

			got := PivotLike(obs, tbl)
			if diff := cmp.Diff(tbl, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPivotLike_ValuesComeFromObservations(t *testing.T) {
	layout := Table{
		Columns: []string{"", "rand", "Snap_Lake_Mine"},
		Rows:    [][]string{{"1990s", "0", "-8.50"}},
	}
	obs := []Observation{
		{Year: 1990, Minesite: "Snap_Lake_Mine", Temperature: -8.25},
		{Year: 2000, Minesite: "Snap_Lake_Mine", Temperature: -7.5},
		{Year: 1990, Minesite: "NICO_Mine", Temperature: -6},
	}

	got := PivotLike(obs, layout)

	want := Table{
		Columns: []string{"", "rand", "Snap_Lake_Mine", "NICO_Mine"},
		Rows: [][]string{
			{"1990s", "0", "-8.25", "-6"},
			{"2000s", "", "-7.5", ""},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("pivot mismatch (-want +got):\n%s", diff)
	}
}

func TestMelt_TrimsMinesiteHeaders(t *testing.T) {
	obs, err := Melt(Table{
		Columns: []string{"", " rand", " Snap_Lake_Mine "},
		Rows:    [][]string{{"1990s", "0", "-8.5"}},
	}, nil)
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, "Snap_Lake_Mine", obs[0].Minesite)
}

func TestPivot_LastDuplicateWins(t *testing.T) {
	obs := []Observation{
		{Year: 1990, Minesite: "A", Temperature: 1},
		{Year: 1990, Minesite: "A", Temperature: 2},
	}
	tbl := Pivot(obs, "")
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, []string{"1990s", "2"}, tbl.Rows[0])
}

func TestConcat(t *testing.T) {
	a := []Observation{{Year: 1990, Minesite: "A", Model: "m1"}}
	b := []Observation{{Year: 1990, Minesite: "A", Model: "m1"}, {Year: 2000, Minesite: "A"}}

	got := Concat(a, nil, b)

	require.Len(t, got, 3)
	assert.Equal(t, a[0], got[0])
	assert.Equal(t, b[0], got[1], "duplicates are kept")
}

func TestTemperatureFormatting(t *testing.T) {
	v, err := ParseTemperature(" nan ")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v))
	assert.Equal(t, "", FormatTemperature(math.NaN()))
	assert.Equal(t, "-12.345", FormatTemperature(-12.345))
	assert.Equal(t, "3", FormatTemperature(3))
}
