package loader

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KARAMARAM/Khatchkars/internal/models"
)

// siteDocument mirrors the shape of one per-site JSON file. Every field is
// optional; absent values decode to the empty string.
type siteDocument struct {
	Place     string `json:"Place"`
	Site      string `json:"Site"`
	Khachkars []struct {
		ImageURL    string `json:"ImageUrl"`
		Name        string `json:"Name"`
		Location    string `json:"Location"`
		Origin      string `json:"Origin"`
		Sculptor    string `json:"Sculptor"`
		Date        string `json:"Date"`
		Description string `json:"Description"`
		Source      string `json:"Source"`
	} `json:"Khachkars"`
}

// Loader flattens a directory of per-site JSON files into khachkar records.
type Loader struct {
	log *slog.Logger
}

// NewLoader creates a new Loader with the provided logger.
func NewLoader(log *slog.Logger) *Loader {
	return &Loader{log: log}
}

// Load reads every *.json file under dir, in lexical order, and emits one
// flat record per khachkar entry carrying the file's place and site. A
// directory with no JSON files yields an empty slice; an unreadable or
// malformed file is an error, since the input set is expected to be
// deterministic.
func (l *Loader) Load(dir string) ([]models.Khachkar, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob data directory: %w", err)
	}
	sort.Strings(paths)

	var records []models.Khachkar
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read site file %s: %w", path, err)
		}

		var doc siteDocument
		if err = json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse site file %s: %w", path, err)
		}

		place := strings.TrimSpace(doc.Place)
		site := strings.TrimSpace(doc.Site)

		for _, k := range doc.Khachkars {
			records = append(records, models.Khachkar{
				Place:       place,
				Site:        site,
				ImageURL:    strings.TrimSpace(k.ImageURL),
				Name:        strings.TrimSpace(k.Name),
				Location:    strings.TrimSpace(k.Location),
				Origin:      strings.TrimSpace(k.Origin),
				Sculptor:    strings.TrimSpace(k.Sculptor),
				Date:        strings.TrimSpace(k.Date),
				Description: strings.TrimSpace(k.Description),
				Source:      strings.TrimSpace(k.Source),
			})
		}

		l.log.Debug("Flattened site file", "path", path, "khachkars", len(doc.Khachkars))
	}

	l.log.Info("Loaded khachkar records", "files", len(paths), "records", len(records))

	return records, nil
}
