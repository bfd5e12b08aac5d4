package service_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/Flaque/filet"
	"github.com/KARAMARAM/Khatchkars/internal/cache"
	"github.com/KARAMARAM/Khatchkars/internal/loader"
	"github.com/KARAMARAM/Khatchkars/internal/metrics"
	"github.com/KARAMARAM/Khatchkars/internal/models"
	"github.com/KARAMARAM/Khatchkars/internal/render"
	"github.com/KARAMARAM/Khatchkars/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider fails every query and counts how many arrive.
type countingProvider struct {
	calls int
}

func (c *countingProvider) Geocode(_ context.Context, _ string) (*models.Coordinates, error) {
	c.calls++
	return nil, assert.AnError
}

// The whole batch, minus the live geocoder: one site file whose only
// location is covered by a manual override must produce a map without a
// single network call.
func TestPipeline_ManualOverrideOnly(t *testing.T) {
	defer filet.CleanUp(t)
	logger := slog.Default()
	ctx := context.Background()

	dataDir := filet.TmpDir(t, "")
	filet.File(t, filepath.Join(dataDir, "talin.json"), `{
		"Place": "Talin",
		"Site": "Kamsarakan Church",
		"Khachkars": [
			{
				"Name": "Cross Stone 1",
				"Location": "Talin Kamsarakan (Talin)",
				"ImageUrl": "http://x/img.jpg"
			}
		]
	}`)

	records, err := loader.NewLoader(logger).Load(dataDir)
	require.NoError(t, err)
	require.Len(t, records, 1)

	workDir := filet.TmpDir(t, "")
	locations, err := cache.Load(filepath.Join(workDir, "geocode_cache.csv"), logger)
	require.NoError(t, err)
	locations.SeedManual(cache.ManualOverrides())

	provider := &countingProvider{}
	resolver := service.NewResolver(logger, locations, provider, "fake", metrics.NewMetrics(prometheus.NewRegistry()))

	geocoded := resolver.ResolveAll(ctx, records)

	require.Len(t, geocoded, 1)
	assert.Equal(t, 0, provider.calls, "manually overridden locations must cost zero live calls")
	assert.InEpsilon(t, 40.3874, geocoded[0].Coords.Latitude, 0.0001)
	assert.InEpsilon(t, 43.8733, geocoded[0].Coords.Longitude, 0.0001)

	// Nothing was geocoded live, so the cache file must stay absent.
	require.NoError(t, locations.Persist())
	assert.False(t, filet.Exists(t, filepath.Join(workDir, "geocode_cache.csv")))

	mapPath := filepath.Join(workDir, "map.html")
	require.NoError(t, render.NewRenderer(logger).WriteMap(geocoded, mapPath))

	content, err := os.ReadFile(mapPath)
	require.NoError(t, err)
	html := string(content)

	assert.Contains(t, html, "Cross Stone 1 – Talin Kamsarakan (Talin)")
	assert.Contains(t, html, "L.markerClusterGroup()")
	assert.Regexp(t, `setView\(\[\s*40.3874\s*,\s*43.8733\s*\]`, html)
}

// An input whose location fails every variant yields no output records and
// no rendered map.
func TestPipeline_UnresolvableLocation(t *testing.T) {
	defer filet.CleanUp(t)
	logger := slog.Default()
	ctx := context.Background()

	dataDir := filet.TmpDir(t, "")
	filet.File(t, filepath.Join(dataDir, "lost.json"), `{
		"Place": "Unknown",
		"Khachkars": [{"Name": "Lost Stone", "Location": "Vanished Village", "ImageUrl": "http://x/l.jpg"}]
	}`)

	records, err := loader.NewLoader(logger).Load(dataDir)
	require.NoError(t, err)

	workDir := filet.TmpDir(t, "")
	locations, err := cache.Load(filepath.Join(workDir, "geocode_cache.csv"), logger)
	require.NoError(t, err)
	locations.SeedManual(cache.ManualOverrides())

	provider := &countingProvider{}
	resolver := service.NewResolver(logger, locations, provider, "fake", metrics.NewMetrics(prometheus.NewRegistry()))

	geocoded := resolver.ResolveAll(ctx, records)

	assert.Empty(t, geocoded)
	assert.Equal(t, 6, provider.calls, "five country variants plus the bare fallback")

	err = render.NewRenderer(logger).WriteMap(geocoded, filepath.Join(workDir, "map.html"))
	require.ErrorIs(t, err, render.ErrNoRecords)
}
