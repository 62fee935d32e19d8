package domain

import (
	"context"
	"log/slog"
)

// EnrichSite fills in a site's position or place name from a geocoder. If geocoder
// is nil or the lookup fails the site is returned with GeoSource set accordingly.
func EnrichSite(ctx context.Context, site Site, geocoder Geocoder, region string, logger *slog.Logger) Site {
	if geocoder == nil {
		return site
	}

	// Forward geocode: site name → coordinates (when coords are missing).
	if !site.HasCoordinates() {
		if site.Name == "" {
			site.GeoSource = "original"
			return site
		}
		result, err := geocoder.ForwardGeocode(ctx, site.Label, region)
		if err != nil {
			logger.Warn("forward geocoding failed",
				"site", site.Name,
				"region", region,
				"error", err,
			)
			site.GeoSource = "failed"
			return site
		}
		if result.Lat != 0 || result.Lon != 0 {
			site.Latitude = result.Lat
			site.Longitude = result.Lon
			site.PlaceName = result.PlaceName
			site.GeoSource = "forward"
			return site
		}
		site.GeoSource = "original"
		return site
	}

	// Reverse geocode: coordinates → nearest named place.
	result, err := geocoder.ReverseGeocode(ctx, site.Latitude, site.Longitude)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"site", site.Name,
			"lat", site.Latitude,
			"lon", site.Longitude,
			"error", err,
		)
		site.GeoSource = "failed"
		return site
	}
	if result.FormattedAddress != "" {
		site.PlaceName = result.FormattedAddress
		site.GeoSource = "reverse"
		return site
	}
	site.GeoSource = "original"
	return site
}

// EnrichSites applies EnrichSite to each site, stopping early if ctx is cancelled.
func EnrichSites(ctx context.Context, sites []Site, geocoder Geocoder, region string, logger *slog.Logger) []Site {
	out := make([]Site, len(sites))
	for i, s := range sites {
		if ctx.Err() != nil {
			copy(out[i:], sites[i:])
			break
		}
		out[i] = EnrichSite(ctx, s, geocoder, region, logger)
	}
	return out
}
