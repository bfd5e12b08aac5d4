package cache

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/KARAMARAM/Khatchkars/internal/models"
)

// Interface is the read/write surface the resolver needs. The concrete Cache
// additionally owns loading, manual seeding and persistence, which belong to
// the entry point.
type Interface interface {
	Lookup(key string) (models.Coordinates, bool)
	Insert(key string, coords models.Coordinates)
	Len() int
}

// ErrMalformedRow is returned when a persisted cache row cannot be parsed.
var ErrMalformedRow = errors.New("malformed cache row")

// expected column count of a persisted row: query, lat, lon.
const rowFields = 3

// entry is one persisted (query, coordinates) pair. Order is preserved so
// rewriting the file keeps prior rows exactly where they were.
type entry struct {
	query  string
	coords models.Coordinates
}

// Cache is the persistent mapping from raw location string to resolved
// coordinates. It is loaded once at startup, seeded with manual overrides,
// extended in memory while the batch resolves locations, and persisted at the
// end of the run. Only entries inserted during the current run are new in the
// rewritten file; manual overrides are supplied on every run and never
// written out.
type Cache struct {
	path    string
	log     *slog.Logger
	entries map[string]models.Coordinates
	manual  map[string]struct{}
	loaded  []entry // rows read from the file, in file order
	added   []entry // rows inserted during this run, in insertion order
}

// Load reads the persisted cache from path. A missing file is not an error;
// resolution simply starts with an empty cache. A present but unparsable file
// is an error, since silently dropping rows would re-trigger live geocoding
// calls for every previously resolved location.
func Load(path string, log *slog.Logger) (*Cache, error) {
	cache := &Cache{
		path:    path,
		log:     log,
		entries: make(map[string]models.Coordinates),
		manual:  make(map[string]struct{}),
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Debug("No cache file found, starting empty", "path", path)
			return cache, nil
		}
		return nil, fmt.Errorf("failed to open cache file: %w", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	for i, row := range rows {
		if i == 0 {
			// header row: query,lat,lon
			continue
		}
		if len(row) != rowFields {
			return nil, fmt.Errorf("%w: line %d has %d fields", ErrMalformedRow, i+1, len(row))
		}

		lat, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: invalid latitude %q", ErrMalformedRow, i+1, row[1])
		}
		lon, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: invalid longitude %q", ErrMalformedRow, i+1, row[2])
		}

		coords := models.Coordinates{Latitude: lat, Longitude: lon}
		if _, exists := cache.entries[row[0]]; exists {
			return nil, fmt.Errorf("%w: line %d: duplicate query %q", ErrMalformedRow, i+1, row[0])
		}
		cache.entries[row[0]] = coords
		cache.loaded = append(cache.loaded, entry{query: row[0], coords: coords})
	}

	log.Debug("Loaded geocode cache", "path", path, "entries", len(cache.loaded))

	return cache, nil
}

// SeedManual merges manual overrides into the cache. Manual entries are
// authoritative: they overwrite any persisted coordinates for the same key,
// are never passed to a live geocoding call, and are never written back to
// the file since they are supplied at every run.
func (c *Cache) SeedManual(overrides map[string]models.Coordinates) {
	for key, coords := range overrides {
		c.entries[key] = coords
		c.manual[key] = struct{}{}
	}
}

// Lookup returns the coordinates for a raw location string, if resolved.
func (c *Cache) Lookup(key string) (models.Coordinates, bool) {
	coords, ok := c.entries[key]
	return coords, ok
}

// Insert records a freshly resolved location. Keys already present (manual
// or persisted) are left untouched, so a key is recorded at most once per
// run and manual overrides can never be shadowed.
func (c *Cache) Insert(key string, coords models.Coordinates) {
	if _, exists := c.entries[key]; exists {
		return
	}
	c.entries[key] = coords
	c.added = append(c.added, entry{query: key, coords: coords})
}

// Persist rewrites the cache file as the previously loaded rows followed by
// the rows inserted during this run. When the run resolved nothing new, no
// write happens at all, so repeat runs over an unchanged input set leave the
// file byte-for-byte alone.
func (c *Cache) Persist() error {
	if len(c.added) == 0 {
		c.log.Debug("No new cache entries, skipping persist")
		return nil
	}

	file, err := os.Create(c.path)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err = writer.Write([]string{"query", "lat", "lon"}); err != nil {
		return fmt.Errorf("failed to write cache header: %w", err)
	}

	for _, ent := range append(c.loaded, c.added...) {
		row := []string{
			ent.query,
			strconv.FormatFloat(ent.coords.Latitude, 'f', -1, 64),
			strconv.FormatFloat(ent.coords.Longitude, 'f', -1, 64),
		}
		if err = writer.Write(row); err != nil {
			return fmt.Errorf("failed to write cache row for %q: %w", ent.query, err)
		}
	}

	writer.Flush()
	if err = writer.Error(); err != nil {
		return fmt.Errorf("failed to flush cache file: %w", err)
	}

	c.log.Debug("Persisted geocode cache", "path", c.path, "new_entries", len(c.added))

	return nil
}

// Len reports the number of resolved locations, manual overrides included.
func (c *Cache) Len() int {
	return len(c.entries)
}

// NewEntries reports how many locations this run resolved live.
func (c *Cache) NewEntries() int {
	return len(c.added)
}
