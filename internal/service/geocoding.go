package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/KARAMARAM/Khatchkars/internal/cache"
	"github.com/KARAMARAM/Khatchkars/internal/geocoding"
	"github.com/KARAMARAM/Khatchkars/internal/metrics"
	"github.com/KARAMARAM/Khatchkars/internal/models"
)

// countries is the fixed preference order for qualified geocoding queries.
// Historical Armenian place names sit across several modern borders; Armenia
// is tried first, then its neighbours in decreasing likelihood.
var countries = []string{"Armenia", "Turkey", "Georgia", "Iran", "Azerbaijan"}

// parenthetical matches a parenthesised qualifier and its leading whitespace,
// e.g. the " (Talin)" in "Talin Kamsarakan (Talin)".
var parenthetical = regexp.MustCompile(`\s*\([^)]*\)`)

// stripParens removes every parenthesised qualifier from a location string
// and trims the remainder.
func stripParens(text string) string {
	return strings.TrimSpace(parenthetical.ReplaceAllString(text, ""))
}

// Resolver maps raw location strings to coordinates by consulting the cache
// first and falling back to country-qualified live geocoding queries for
// anything still unresolved. It is the only component that issues live calls,
// and it issues them strictly sequentially.
type Resolver struct {
	log          *slog.Logger       // Logger for resolution activity
	cache        cache.Interface    // Resolved locations, consulted before any live call
	provider     geocoding.Provider // Geocoding provider for live lookups
	providerName string             // Name of the provider for metrics labeling
	metrics      *metrics.Metrics   // Metrics for tracking resolution outcomes
}

// NewResolver creates a new Resolver instance. It takes a logger, the
// location cache, a geocoding provider, the provider name for metrics
// labeling, and the metrics collection.
func NewResolver(
	log *slog.Logger,
	cache cache.Interface,
	provider geocoding.Provider,
	providerName string,
	metrics *metrics.Metrics,
) *Resolver {
	return &Resolver{
		log:          log,
		cache:        cache,
		provider:     provider,
		providerName: providerName,
		metrics:      metrics,
	}
}

// ResolveAll resolves the location of every record and returns the records
// that ended up with coordinates, in input order. Distinct location strings
// already in the cache cost no live calls; the rest go through the fallback
// query sequence once each. Records whose location stays unresolved are
// dropped from the result, which is a warning, not an error.
func (r *Resolver) ResolveAll(ctx context.Context, records []models.Khachkar) []models.GeocodedKhachkar {
	missing := r.missingLocations(records)

	r.log.InfoContext(ctx, "Resolving locations",
		"records", len(records), "to_geocode", len(missing), "provider", r.providerName)

	for _, raw := range missing {
		if ctx.Err() != nil {
			r.log.WarnContext(ctx, "Resolution interrupted, remaining locations left unresolved")
			break
		}

		coords, ok := r.resolve(ctx, raw)
		if !ok {
			r.log.WarnContext(ctx, "Could not geocode location", "location", raw)
			r.metrics.LocationsProcessed.WithLabelValues("failure").Inc()
			continue
		}

		r.cache.Insert(raw, *coords)
		r.metrics.LocationsProcessed.WithLabelValues("success").Inc()
	}

	r.metrics.CacheEntries.Set(float64(r.cache.Len()))

	geocoded := make([]models.GeocodedKhachkar, 0, len(records))
	for _, record := range records {
		coords, ok := r.cache.Lookup(record.Location)
		if !ok {
			continue
		}
		geocoded = append(geocoded, models.GeocodedKhachkar{Khachkar: record, Coords: coords})
	}

	r.log.InfoContext(ctx, "Resolution finished",
		"geocoded", len(geocoded), "dropped", len(records)-len(geocoded))

	return geocoded
}

// missingLocations returns the distinct location strings that are not in the
// cache yet, sorted so repeat runs attempt live calls in a stable order.
// Every distinct cached location counts as one cache hit.
func (r *Resolver) missingLocations(records []models.Khachkar) []string {
	seen := make(map[string]struct{})
	var missing []string

	for _, record := range records {
		if _, dup := seen[record.Location]; dup {
			continue
		}
		seen[record.Location] = struct{}{}

		if _, ok := r.cache.Lookup(record.Location); ok {
			r.metrics.CacheHits.Inc()
			continue
		}
		missing = append(missing, record.Location)
	}

	sort.Strings(missing)

	return missing
}

// resolve tries the fallback query sequence for one raw location string:
// the cleaned string qualified with each country in preference order, then
// the cleaned string alone. The first non-empty result wins. A provider
// error and a no-match response are treated alike; both advance to the next
// variant.
func (r *Resolver) resolve(ctx context.Context, raw string) (*models.Coordinates, bool) {
	cleaned := stripParens(raw)
	if cleaned == "" {
		return nil, false
	}

	queries := make([]string, 0, len(countries)+1)
	for _, country := range countries {
		queries = append(queries, fmt.Sprintf("%s, %s", cleaned, country))
	}
	queries = append(queries, cleaned)

	for _, query := range queries {
		startTime := time.Now()
		coords, err := r.provider.Geocode(ctx, query)
		duration := time.Since(startTime).Seconds()
		r.metrics.RequestSeconds.WithLabelValues(r.providerName).Observe(duration)

		if err != nil {
			r.log.DebugContext(ctx, "Geocoding attempt failed", "query", query, "error", err)
			r.metrics.ProviderErrors.Inc()
			continue
		}

		r.log.DebugContext(ctx, "Geocoding attempt succeeded",
			"query", query, "lat", coords.Latitude, "lon", coords.Longitude)

		return coords, true
	}

	return nil, false
}
