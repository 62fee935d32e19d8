package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/minesite-climate-service/internal/adapter/chart"
	"github.com/couchcryptid/minesite-climate-service/internal/dashboard"
	"github.com/couchcryptid/minesite-climate-service/internal/domain"
)

// Dashboard is the query surface the API serves.
type Dashboard interface {
	Datasets() ([]domain.Facets, error)
	Facets(name string) (domain.Facets, error)
	Series(ctx context.Context, name string, q dashboard.Query) (dashboard.SeriesResult, error)
	Sites() ([]domain.Site, error)
	MapConfig() (dashboard.MapConfig, error)
	Boundary() ([]byte, error)
}

const maxChartSide = 4096

type handlers struct {
	api    Dashboard
	logger *slog.Logger
}

func (h *handlers) datasets(w http.ResponseWriter, _ *http.Request) {
	all, err := h.api.Datasets()
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"datasets": all})
}

func (h *handlers) facets(w http.ResponseWriter, r *http.Request) {
	f, err := h.api.Facets(r.PathValue("name"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *handlers) series(w http.ResponseWriter, r *http.Request) {
	q, err := ParseQuery(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err))
		return
	}
	res, err := h.api.Series(r.Context(), r.PathValue("name"), q)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if res.Series == nil {
		res.Series = []domain.Series{}
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) chart(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q, err := ParseQuery(values)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err))
		return
	}
	opts := chart.DefaultOptions()
	if opts.Width, err = intParam(values, "width", opts.Width); err == nil {
		opts.Height, err = intParam(values, "height", opts.Height)
	}
	if err != nil || opts.Width <= 0 || opts.Height <= 0 || opts.Width > maxChartSide || opts.Height > maxChartSide {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid chart size"})
		return
	}

	name := r.PathValue("name")
	res, err := h.api.Series(r.Context(), name, q)
	if err != nil {
		h.writeError(w, err)
		return
	}
	opts.Title = fmt.Sprintf("%s temperature (%s)", name, res.Group)

	var buf bytes.Buffer
	if err := chart.RenderPNG(&buf, res.Series, opts); err != nil {
		if errors.Is(err, chart.ErrNoPoints) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *handlers) sites(w http.ResponseWriter, _ *http.Request) {
	sites, err := h.api.Sites()
	if err != nil {
		h.writeError(w, err)
		return
	}
	if sites == nil {
		sites = []domain.Site{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sites": sites})
}

func (h *handlers) mapConfig(w http.ResponseWriter, _ *http.Request) {
	mc, err := h.api.MapConfig()
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mc)
}

func (h *handlers) boundary(w http.ResponseWriter, _ *http.Request) {
	data, err := h.api.Boundary()
	if err != nil {
		h.writeError(w, err)
		return
	}
	if data == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no boundary configured"})
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, dashboard.ErrNotLoaded):
		status = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrUnknownDataset):
		status = http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	default:
		h.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorBody(err))
}

func errorBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ParseQuery reads a series selection from URL parameters. The set parameters
// minesite, model and scenario may repeat or hold comma lists; a parameter that is
// present with no values selects nothing. Minesites may be given by label.
func ParseQuery(values url.Values) (dashboard.Query, error) {
	var (
		q   dashboard.Query
		err error
	)
	q.Minesites = setParam(values, "minesite")
	for i, m := range q.Minesites {
		q.Minesites[i] = domain.SiteID(m)
	}
	q.Models = setParam(values, "model")
	q.Scenarios = setParam(values, "scenario")

	if q.YearMin, err = optionalIntParam(values, "year_min"); err != nil {
		return q, err
	}
	if q.YearMax, err = optionalIntParam(values, "year_max"); err != nil {
		return q, err
	}
	if q.Month, err = intParam(values, "month", 0); err != nil {
		return q, err
	}
	if g := values.Get("group"); g != "" {
		if q.Group, err = domain.ParseGroupKey(g); err != nil {
			return q, err
		}
	}
	return q, nil
}

// setParam returns nil when name is absent and a non-nil, possibly empty, slice
// otherwise.
func setParam(values url.Values, name string) []string {
	raw, ok := values[name]
	if !ok {
		return nil
	}
	out := []string{}
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func intParam(values url.Values, name string, def int) (int, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be an integer", name, raw)
	}
	return n, nil
}

func optionalIntParam(values url.Values, name string) (*int, error) {
	if strings.TrimSpace(values.Get(name)) == "" {
		return nil, nil
	}
	n, err := intParam(values, name, 0)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
