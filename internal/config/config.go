package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// DatasetSource names a dataset and the file or directory it is loaded from.
type DatasetSource struct {
	Name string
	Path string
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Data sources.
	Datasets        []DatasetSource
	SitesFile       string
	BoundaryFile    string
	ColorsFile      string
	LoadConcurrency int

	QueryCacheSize int

	// Data refresh.
	WatchData     bool
	WatchDebounce time.Duration

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
	MapRegion       string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := parseDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	watchDebounce, err := parseDuration("WATCH_DEBOUNCE", "500ms")
	if err != nil {
		return nil, err
	}

	datasets, err := ParseDatasets(sharedcfg.EnvOrDefault("DATASETS", "annual=data/annual,monthly=data/monthly"))
	if err != nil {
		return nil, err
	}

	loadConcurrency, err := parsePositiveInt("LOAD_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}

	queryCacheSize, err := parsePositiveInt("QUERY_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Datasets:        datasets,
		SitesFile:       sharedcfg.EnvOrDefault("SITES_FILE", "data/minesites.csv"),
		BoundaryFile:    os.Getenv("BOUNDARY_FILE"),
		ColorsFile:      os.Getenv("COLORS_FILE"),
		LoadConcurrency: loadConcurrency,
		QueryCacheSize:  queryCacheSize,

		WatchData:     os.Getenv("WATCH_DATA") == "true",
		WatchDebounce: watchDebounce,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),
		MapRegion:       sharedcfg.EnvOrDefault("MAP_REGION", "Northwest Territories"),
	}

	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

// ParseDatasets parses "name=path,name=path". Names must be unique and non-empty.
func ParseDatasets(s string) ([]DatasetSource, error) {
	var out []DatasetSource
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, path, ok := strings.Cut(part, "=")
		name, path = strings.TrimSpace(name), strings.TrimSpace(path)
		if !ok || name == "" || path == "" {
			return nil, fmt.Errorf("invalid DATASETS entry %q: want name=path", part)
		}
		if seen[name] {
			return nil, fmt.Errorf("invalid DATASETS: duplicate name %q", name)
		}
		seen[name] = true
		out = append(out, DatasetSource{Name: name, Path: path})
	}
	if len(out) == 0 {
		return nil, errors.New("DATASETS is required")
	}
	return out, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
