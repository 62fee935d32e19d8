// Package geojson loads the region boundary drawn under the site markers.
package geojson

import (
	"errors"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/minesite-climate-service/internal/domain"
)

// ReadRegion loads a GeoJSON FeatureCollection from path.
func ReadRegion(path string) (*domain.Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrDataUnavailable, path, err)
	}
	region, err := ParseRegion(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrDataUnavailable, path, err)
	}
	return region, nil
}

// ParseRegion decodes a FeatureCollection and computes the bounding box over all of
// its geometries. The raw document is kept so it can be handed to the map as is.
func ParseRegion(data []byte) (*domain.Region, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}

	var (
		bound orb.Bound
		found bool
	)
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		b := f.Geometry.Bound()
		if !found {
			bound, found = b, true
			continue
		}
		bound = bound.Union(b)
	}
	if !found {
		return nil, errors.New("feature collection has no geometry")
	}

	return &domain.Region{
		GeoJSON: data,
		MinLat:  bound.Min.Lat(),
		MinLon:  bound.Min.Lon(),
		MaxLat:  bound.Max.Lat(),
		MaxLon:  bound.Max.Lon(),
	}, nil
}
