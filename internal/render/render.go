package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	htmlpkg "html"
	"html/template"
	"log/slog"
	"os"
	"strings"

	"github.com/KARAMARAM/Khatchkars/internal/models"
)

//go:embed map.html.tmpl
var content embed.FS

var page = template.Must(template.New("map.html.tmpl").ParseFS(content, "map.html.tmpl"))

// ErrNoRecords is returned when there are no geocoded records, since an
// empty set leaves the map with nothing to center on.
var ErrNoRecords = errors.New("no geocoded records to render")

const (
	defaultZoom   = 7
	popupMaxWidth = 260
	popupBodyWidth = 240
)

// marker is the per-stone payload handed to the Leaflet script. Popup HTML
// is escaped field by field while it is built, so the whole blob can be
// bound to the popup as-is.
type marker struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Tooltip string  `json:"tooltip"`
	Popup   string  `json:"popup"`
}

// pageData is the template payload for one rendered map.
type pageData struct {
	CenterLat     float64
	CenterLon     float64
	Zoom          int
	PopupMaxWidth int
	MarkersJSON   template.JS
}

// Renderer turns geocoded records into one static HTML map with clustered
// markers. It holds no resolution logic; records arrive fully geocoded.
type Renderer struct {
	log *slog.Logger
}

// NewRenderer creates a new Renderer with the provided logger.
func NewRenderer(log *slog.Logger) *Renderer {
	return &Renderer{log: log}
}

// WriteMap renders one marker per record with an image into a clustered
// Leaflet map centered on the arithmetic mean of all record coordinates,
// and writes the result to path as a single self-contained HTML file.
func (r *Renderer) WriteMap(records []models.GeocodedKhachkar, path string) error {
	if len(records) == 0 {
		return ErrNoRecords
	}

	var sumLat, sumLon float64
	markers := make([]marker, 0, len(records))
	for _, record := range records {
		sumLat += record.Coords.Latitude
		sumLon += record.Coords.Longitude

		// Stones without a photograph get no marker, matching the source data
		// where an image is what makes an entry worth pinning.
		if record.ImageURL == "" {
			continue
		}

		markers = append(markers, marker{
			Lat:     record.Coords.Latitude,
			Lon:     record.Coords.Longitude,
			Tooltip: buildTooltip(record),
			Popup:   buildPopup(record),
		})
	}

	markersJSON, err := json.Marshal(markers)
	if err != nil {
		return fmt.Errorf("failed to marshal markers: %w", err)
	}

	data := pageData{
		CenterLat:     sumLat / float64(len(records)),
		CenterLon:     sumLon / float64(len(records)),
		Zoom:          defaultZoom,
		PopupMaxWidth: popupMaxWidth,
		MarkersJSON:   template.JS(markersJSON),
	}

	var buf bytes.Buffer
	if err = page.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render map template: %w", err)
	}

	const filePerm = 0o644
	if err = os.WriteFile(path, buf.Bytes(), filePerm); err != nil {
		return fmt.Errorf("failed to write map file: %w", err)
	}

	r.log.Info("Map written", "path", path, "markers", len(markers))

	return nil
}

// buildTooltip renders the hover text: name (or "Khachkar"), en dash, raw
// location string.
func buildTooltip(record models.GeocodedKhachkar) string {
	name := record.Name
	if name == "" {
		name = "Khachkar"
	}
	return name + " – " + record.Location
}

// buildPopup renders the popup body for one stone. Every source field is
// HTML-escaped individually; the thumbnail URL is derived from the full
// image URL by filename-suffix substitution.
func buildPopup(record models.GeocodedKhachkar) string {
	name := record.Name
	if name == "" {
		name = "Khachkar"
	}
	location := record.Location
	if location == "" {
		location = record.Place
	}
	date := record.Date
	if date == "" {
		date = "—"
	}
	sculptor := record.Sculptor
	if sculptor == "" {
		sculptor = "—"
	}
	thumb := strings.ReplaceAll(record.ImageURL, ".jpg", "-thumb.jpg")

	var b strings.Builder
	b.WriteString(`<div style='width:`)
	fmt.Fprintf(&b, "%dpx", popupBodyWidth)
	b.WriteString(`'><a href="`)
	b.WriteString(htmlpkg.EscapeString(record.ImageURL))
	b.WriteString(`" target="_blank"><img src="`)
	b.WriteString(htmlpkg.EscapeString(thumb))
	b.WriteString(`" style="width:100%; border-radius:6px"></a><br><b>`)
	b.WriteString(htmlpkg.EscapeString(name))
	b.WriteString(`</b><br><i>`)
	b.WriteString(htmlpkg.EscapeString(location))
	b.WriteString(`</i><br>Date: `)
	b.WriteString(htmlpkg.EscapeString(date))
	b.WriteString(`<br>Sculptor: `)
	b.WriteString(htmlpkg.EscapeString(sculptor))
	b.WriteString(`<br>`)
	b.WriteString(htmlpkg.EscapeString(record.Description))
	b.WriteString(`</div>`)

	return b.String()
}
