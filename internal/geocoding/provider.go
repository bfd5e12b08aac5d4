package geocoding

import (
	"context"

	"github.com/KARAMARAM/Khatchkars/internal/models"
)

// Provider is an interface that defines a method for geocoding a free-text query.
// The Geocode method takes a context and a query string as input, performs one
// live lookup, and returns the corresponding coordinates and an error if any
// occurs. Fallback policy across query variants belongs to the caller.
type Provider interface {
	Geocode(ctx context.Context, query string) (*models.Coordinates, error)
}
