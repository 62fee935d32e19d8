package pipeline_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/minesite-climate-service/internal/config"
	"github.com/couchcryptid/minesite-climate-service/internal/pipeline"
	"github.com/stretchr/testify/require"
)

const (
	gfdlFile = "tas_mean_GFDL-CM3_rcp85_annual_decadals_profiles_nwt_mine_sites.csv"
	ncarFile = "tas_mean_NCAR-CCSM4_rcp45_annual_decadals_profiles_nwt_mine_sites.csv"

	gfdlCSV = ",rand,Snap_Lake_Mine,CanTung_Mine\n" +
		"1990s,0,-8.5,-3\n" +
		"2000s,0,-7.75,-2.5\n"
	ncarCSV = ",rand,Snap_Lake_Mine,CanTung_Mine\n" +
		"1990s,0,-8.25,-3.25\n" +
		"2000s,0,-7.5,-2.75\n"

	monthlyCSV = ",year,rand,minesite,tas,group,model,scenario,month\n" +
		"0,2000,0,Ekati_Mine,-28.5,monthly_decadals,GFDL-CM3,rcp85,1\n" +
		"1,2010,0,Ekati_Mine,-27.25,monthly_decadals,GFDL-CM3,rcp85,1\n" +
		"2,2000,0,Ekati_Mine,-26,monthly_decadals,GFDL-CM3,rcp85,2\n" +
		"3,2010,0,Ekati_Mine,-25.5,monthly_decadals,GFDL-CM3,rcp85,2\n"

	sitesCSV = ",Name,Latitude,Longitude\n" +
		"0,Snap Lake Mine,63.59,-110.87\n" +
		"1,CanTung Mine,61.96,-128.25\n" +
		"2,Ekati Mine,64.72,-110.62\n"

	boundaryJSON = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},
		"geometry":{"type":"Polygon","coordinates":[[[-136,60],[-102,60],[-102,78],[-136,78],[-136,60]]]}}]}`
)

type fixture struct {
	root       string
	annualDir  string
	monthlyCSV string
	sites      string
	boundary   string
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// newFixture lays out an annual directory of wide files (plus one file whose name
// carries no provenance), a consolidated monthly file, sites and a boundary.
func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{
		root:       root,
		annualDir:  filepath.Join(root, "annual"),
		monthlyCSV: filepath.Join(root, "monthly", "tas_minesites_decadal_monthly_mean_alldata_melted.csv"),
		sites:      filepath.Join(root, "minesites.csv"),
		boundary:   filepath.Join(root, "nwt.geojson"),
	}
	writeFile(t, filepath.Join(f.annualDir, gfdlFile), gfdlCSV)
	writeFile(t, filepath.Join(f.annualDir, ncarFile), ncarCSV)
	writeFile(t, filepath.Join(f.annualDir, "badname.csv"), gfdlCSV)
	writeFile(t, filepath.Join(f.annualDir, "README.txt"), "not data")
	writeFile(t, f.monthlyCSV, monthlyCSV)
	writeFile(t, f.sites, sitesCSV)
	writeFile(t, f.boundary, boundaryJSON)
	return f
}

func (f fixture) sources() pipeline.Sources {
	return pipeline.Sources{
		Datasets: []config.DatasetSource{
			{Name: "annual", Path: f.annualDir},
			{Name: "monthly", Path: f.monthlyCSV},
		},
		SitesFile:    f.sites,
		BoundaryFile: f.boundary,
		Region:       "Northwest Territories",
	}
}
