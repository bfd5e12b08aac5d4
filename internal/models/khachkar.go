package models

// Khachkar is one flattened record describing a single carved memorial stone.
// Every field is a plain string and defaults to empty when the source JSON
// omits it; records are immutable once flattened.
type Khachkar struct {
	Place       string // Place is the settlement the source file describes.
	Site        string // Site is the monument or church the stone belongs to.
	ImageURL    string // ImageURL is the full-size photograph URL, possibly empty.
	Name        string // Name is the stone's own name, possibly empty.
	Location    string // Location is the free-text location used as the geocoding key.
	Origin      string
	Sculptor    string
	Date        string
	Description string
	Source      string
}

// GeocodedKhachkar pairs a flattened record with the coordinates its
// location string resolved to. Records that could not be resolved never
// become GeocodedKhachkar values.
type GeocodedKhachkar struct {
	Khachkar

	Coords Coordinates
}
