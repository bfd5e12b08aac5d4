package cache

import "github.com/KARAMARAM/Khatchkars/internal/models"

// ManualOverrides returns the fixed set of location strings the geocoder
// structurally cannot resolve, mapped to hand-checked coordinates. The map is
// rebuilt on every call so callers cannot mutate the seed data.
func ManualOverrides() map[string]models.Coordinates {
	return map[string]models.Coordinates{
		// Haghartsin Monastery, near Dilijan, Armenia
		"Haghartzin (Dilijan)": {Latitude: 40.8016, Longitude: 44.8909},
		// Kamsarakan S. Astvatsatsin Church, Talin, Armenia
		"Talin Kamsarakan (Talin)": {Latitude: 40.3874, Longitude: 43.8733},
	}
}
