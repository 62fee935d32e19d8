package httpadapter_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/couchcryptid/minesite-climate-service/internal/adapter/httpadapter"
	"github.com/couchcryptid/minesite-climate-service/internal/dashboard"
	"github.com/couchcryptid/minesite-climate-service/internal/domain"
	"github.com/couchcryptid/minesite-climate-service/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type staticSource struct{ cat *domain.Catalog }

func (s staticSource) Current() *domain.Catalog { return s.cat }

func testCatalog() *domain.Catalog {
	annual := domain.NewDataset("annual", []domain.Observation{
		{Year: 1990, Minesite: "Snap_Lake_Mine", Temperature: -8.5, Model: "GFDL-CM3", Scenario: "rcp85"},
		{Year: 2000, Minesite: "Snap_Lake_Mine", Temperature: -7.75, Model: "GFDL-CM3", Scenario: "rcp85"},
		{Year: 1990, Minesite: "CanTung_Mine", Temperature: -3, Model: "GFDL-CM3", Scenario: "rcp85"},
		{Year: 2000, Minesite: "CanTung_Mine", Temperature: -2.5, Model: "GFDL-CM3", Scenario: "rcp85"},
	})
	return &domain.Catalog{
		Generation: "gen-1",
		Names:      []string{"annual"},
		Datasets:   map[string]*domain.Dataset{"annual": annual},
		Sites:      []domain.Site{{Name: "Snap_Lake_Mine", Label: "Snap Lake Mine", Latitude: 63.59, Longitude: -110.87}},
		Region:     &domain.Region{GeoJSON: []byte(`{"type":"FeatureCollection","features":[]}`), MinLat: 60, MaxLat: 78, MinLon: -136, MaxLon: -102},
		Colors:     domain.DefaultColors(),
	}
}

func newTestServer(readyErr error, cat *domain.Catalog) *httpadapter.Server {
	svc := dashboard.NewService(staticSource{cat: cat}, dashboard.Options{CacheSize: 8, MapboxToken: "pk.test", Region: "Northwest Territories"},
		observability.NewMetricsForTesting(), slog.Default())
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, svc, slog.Default())
}

func get(t *testing.T, srv http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(t, newTestServer(nil, nil), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(t, newTestServer(nil, testCatalog()), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(t, newTestServer(fmt.Errorf("catalog has not been loaded yet"), nil), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "catalog has not been loaded yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(nil, nil), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAPIReturns503BeforeLoad(t *testing.T) {
	rec := get(t, newTestServer(nil, nil), "/api/datasets")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDatasetsAndFacets(t *testing.T) {
	srv := newTestServer(nil, testCatalog())

	rec := get(t, srv, "/api/datasets")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Datasets []domain.Facets `json:"datasets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Datasets, 1)
	assert.Equal(t, "annual", list.Datasets[0].Name)

	rec = get(t, srv, "/api/datasets/annual/facets")
	require.Equal(t, http.StatusOK, rec.Code)
	var f domain.Facets
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))
	assert.Equal(t, []string{"Snap_Lake_Mine", "CanTung_Mine"}, f.Minesites)
	assert.Equal(t, 1990, f.YearMin)
	assert.Equal(t, 2000, f.YearMax)

	rec = get(t, srv, "/api/datasets/monthly/facets")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type seriesBody struct {
	Group  string `json:"group"`
	Series []struct {
		Name  string    `json:"name"`
		X     []int     `json:"x"`
		Y     []float64 `json:"y"`
		Color string    `json:"color"`
	} `json:"series"`
}

func TestSeriesEndpoint(t *testing.T) {
	srv := newTestServer(nil, testCatalog())

	rec := get(t, srv, "/api/datasets/annual/series?minesite=Snap+Lake+Mine&group=minesite&year_min=1990&year_max=2000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body seriesBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "minesite", body.Group)
	require.Len(t, body.Series, 1)
	assert.Equal(t, "Snap Lake Mine", body.Series[0].Name)
	assert.Equal(t, []int{1990, 2000}, body.Series[0].X)
	assert.Equal(t, []float64{-8.5, -7.75}, body.Series[0].Y)
	assert.Equal(t, "rgb(81,158,46)", body.Series[0].Color)
}

func TestSeriesEndpointEmptySelection(t *testing.T) {
	srv := newTestServer(nil, testCatalog())

	for _, target := range []string{
		"/api/datasets/annual/series?minesite=",
		"/api/datasets/annual/series?year_min=2010&year_max=1990",
		"/api/datasets/annual/series?scenario=rcp26",
	} {
		rec := get(t, srv, target)
		require.Equal(t, http.StatusOK, rec.Code, target)
		var body seriesBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), target)
		for _, s := range body.Series {
			assert.Empty(t, s.Y, target)
		}
	}
}

func TestSeriesEndpointBadRequest(t *testing.T) {
	srv := newTestServer(nil, testCatalog())

	for _, target := range []string{
		"/api/datasets/annual/series?year_min=nineteen",
		"/api/datasets/annual/series?month=jan",
		"/api/datasets/annual/series?group=decade",
	} {
		rec := get(t, srv, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestChartEndpoint(t *testing.T) {
	srv := newTestServer(nil, testCatalog())

	rec := get(t, srv, "/api/datasets/annual/chart.png?group=minesite&width=400&height=300")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())

	rec = get(t, srv, "/api/datasets/annual/chart.png?minesite=")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = get(t, srv, "/api/datasets/annual/chart.png?width=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSitesMapAndBoundary(t *testing.T) {
	srv := newTestServer(nil, testCatalog())

	rec := get(t, srv, "/api/sites")
	require.Equal(t, http.StatusOK, rec.Code)
	var sites struct {
		Sites []domain.Site `json:"sites"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sites))
	require.Len(t, sites.Sites, 1)
	assert.Equal(t, "Snap Lake Mine", sites.Sites[0].Label)

	rec = get(t, srv, "/api/map")
	require.Equal(t, http.StatusOK, rec.Code)
	var mc dashboard.MapConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mc))
	assert.Equal(t, "pk.test", mc.Token)
	assert.True(t, mc.HasBoundary)
	assert.Equal(t, 69.0, mc.CenterLat)
	assert.Equal(t, -119.0, mc.CenterLon)

	rec = get(t, srv, "/api/boundary")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, rec.Body.String())
}

func TestParseQuery(t *testing.T) {
	q, err := httpadapter.ParseQuery(url.Values{
		"minesite": {"Snap Lake Mine", "CanTung_Mine,Ekati_Mine"},
		"model":    {""},
		"year_max": {"2050"},
		"group":    {"model,scenario"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Snap_Lake_Mine", "CanTung_Mine", "Ekati_Mine"}, q.Minesites)
	assert.NotNil(t, q.Models)
	assert.Empty(t, q.Models)
	assert.Nil(t, q.Scenarios)
	assert.Nil(t, q.YearMin)
	require.NotNil(t, q.YearMax)
	assert.Equal(t, 2050, *q.YearMax)
	assert.Equal(t, domain.ByModel|domain.ByScenario, q.Group)
}
