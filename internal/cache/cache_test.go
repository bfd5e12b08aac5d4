package cache_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/Flaque/filet"
	"github.com/KARAMARAM/Khatchkars/internal/cache"
	"github.com/KARAMARAM/Khatchkars/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	defer filet.CleanUp(t)
	logger := slog.Default()

	t.Run("missing file starts empty", func(t *testing.T) {
		dir := filet.TmpDir(t, "")

		c, err := cache.Load(filepath.Join(dir, "does-not-exist.csv"), logger)

		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("reads persisted rows", func(t *testing.T) {
		dir := filet.TmpDir(t, "")
		path := filepath.Join(dir, "geocode_cache.csv")
		filet.File(t, path, "query,lat,lon\nTalin (Talin),40.391,43.87\nDilijan,40.7417,44.8621\n")

		c, err := cache.Load(path, logger)

		require.NoError(t, err)
		assert.Equal(t, 2, c.Len())

		coords, ok := c.Lookup("Talin (Talin)")
		require.True(t, ok)
		assert.InEpsilon(t, 40.391, coords.Latitude, 0.0001)
		assert.InEpsilon(t, 43.87, coords.Longitude, 0.0001)

		_, ok = c.Lookup("Yerevan")
		assert.False(t, ok)
	})

	t.Run("malformed latitude fails", func(t *testing.T) {
		dir := filet.TmpDir(t, "")
		path := filepath.Join(dir, "geocode_cache.csv")
		filet.File(t, path, "query,lat,lon\nTalin,not-a-number,43.87\n")

		c, err := cache.Load(path, logger)

		require.Error(t, err)
		require.Nil(t, c)
		assert.ErrorIs(t, err, cache.ErrMalformedRow)
	})

	t.Run("duplicate query fails", func(t *testing.T) {
		dir := filet.TmpDir(t, "")
		path := filepath.Join(dir, "geocode_cache.csv")
		filet.File(t, path, "query,lat,lon\nTalin,40.391,43.87\nTalin,40.391,43.87\n")

		c, err := cache.Load(path, logger)

		require.Error(t, err)
		require.Nil(t, c)
		assert.ErrorIs(t, err, cache.ErrMalformedRow)
	})
}

func TestSeedManual(t *testing.T) {
	defer filet.CleanUp(t)
	logger := slog.Default()

	t.Run("manual overrides beat persisted rows", func(t *testing.T) {
		dir := filet.TmpDir(t, "")
		path := filepath.Join(dir, "geocode_cache.csv")
		filet.File(t, path, "query,lat,lon\nHaghartzin (Dilijan),1,1\n")

		c, err := cache.Load(path, logger)
		require.NoError(t, err)

		c.SeedManual(cache.ManualOverrides())

		coords, ok := c.Lookup("Haghartzin (Dilijan)")
		require.True(t, ok)
		assert.InEpsilon(t, 40.8016, coords.Latitude, 0.0001)
		assert.InEpsilon(t, 44.8909, coords.Longitude, 0.0001)
	})

	t.Run("manual entries are never persisted", func(t *testing.T) {
		dir := filet.TmpDir(t, "")
		path := filepath.Join(dir, "geocode_cache.csv")

		c, err := cache.Load(path, logger)
		require.NoError(t, err)

		c.SeedManual(cache.ManualOverrides())
		c.Insert("Noratus", models.Coordinates{Latitude: 40.3714, Longitude: 45.1818})

		require.NoError(t, c.Persist())

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "Noratus")
		assert.NotContains(t, string(content), "Haghartzin")
	})
}

func TestInsert(t *testing.T) {
	defer filet.CleanUp(t)
	logger := slog.Default()

	t.Run("does not overwrite existing entries", func(t *testing.T) {
		dir := filet.TmpDir(t, "")

		c, err := cache.Load(filepath.Join(dir, "geocode_cache.csv"), logger)
		require.NoError(t, err)

		c.SeedManual(cache.ManualOverrides())
		c.Insert("Haghartzin (Dilijan)", models.Coordinates{Latitude: 0, Longitude: 0})

		coords, ok := c.Lookup("Haghartzin (Dilijan)")
		require.True(t, ok)
		assert.InEpsilon(t, 40.8016, coords.Latitude, 0.0001)
		assert.Equal(t, 0, c.NewEntries())
	})
}

func TestPersist(t *testing.T) {
	defer filet.CleanUp(t)
	logger := slog.Default()

	t.Run("no new entries means no write", func(t *testing.T) {
		dir := filet.TmpDir(t, "")
		path := filepath.Join(dir, "geocode_cache.csv")

		c, err := cache.Load(path, logger)
		require.NoError(t, err)

		require.NoError(t, c.Persist())
		assert.False(t, filet.Exists(t, path), "persist without inserts must not create the file")
	})

	t.Run("rewrites prior rows plus the run delta", func(t *testing.T) {
		dir := filet.TmpDir(t, "")
		path := filepath.Join(dir, "geocode_cache.csv")
		filet.File(t, path, "query,lat,lon\nDilijan,40.7417,44.8621\n")

		c, err := cache.Load(path, logger)
		require.NoError(t, err)

		c.Insert("Noratus", models.Coordinates{Latitude: 40.3714, Longitude: 45.1818})
		require.NoError(t, c.Persist())

		reloaded, err := cache.Load(path, logger)
		require.NoError(t, err)
		assert.Equal(t, 2, reloaded.Len())

		_, ok := reloaded.Lookup("Dilijan")
		assert.True(t, ok)
		_, ok = reloaded.Lookup("Noratus")
		assert.True(t, ok)
	})

	t.Run("persisting twice yields no duplicate rows", func(t *testing.T) {
		dir := filet.TmpDir(t, "")
		path := filepath.Join(dir, "geocode_cache.csv")

		c, err := cache.Load(path, logger)
		require.NoError(t, err)

		c.Insert("Noratus", models.Coordinates{Latitude: 40.3714, Longitude: 45.1818})
		require.NoError(t, c.Persist())
		require.NoError(t, c.Persist())

		// Load rejects duplicate queries, so a clean reload proves dedup.
		reloaded, err := cache.Load(path, logger)
		require.NoError(t, err)
		assert.Equal(t, 1, reloaded.Len())
	})

	t.Run("round trip preserves coordinates exactly", func(t *testing.T) {
		dir := filet.TmpDir(t, "")
		path := filepath.Join(dir, "geocode_cache.csv")

		c, err := cache.Load(path, logger)
		require.NoError(t, err)

		want := models.Coordinates{Latitude: 40.3874, Longitude: 43.8733}
		c.Insert("Talin Kamsarakan", want)
		require.NoError(t, c.Persist())

		reloaded, err := cache.Load(path, logger)
		require.NoError(t, err)

		got, ok := reloaded.Lookup("Talin Kamsarakan")
		require.True(t, ok)
		assert.InDelta(t, want.Latitude, got.Latitude, 0)
		assert.InDelta(t, want.Longitude, got.Longitude, 0)
	})
}
