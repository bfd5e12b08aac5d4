package geocoding

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"googlemaps.github.io/maps"
)

// ProviderType represents the type of geocoding provider.
type ProviderType string

const (
	// ProviderTypeGoogle represents Google Maps geocoding provider.
	ProviderTypeGoogle ProviderType = "google"
	// ProviderTypeNominatim represents OpenStreetMap Nominatim geocoding provider.
	ProviderTypeNominatim ProviderType = "nominatim"
)

// defaultMinDelay is the spacing applied between live Nominatim calls when the
// configuration supplies none; it stays just above the public instance's
// 1 req/s fair-use ceiling.
const defaultMinDelay = 1100 * time.Millisecond

// ProviderConfig holds configuration for creating a geocoding provider.
type ProviderConfig struct {
	Type     ProviderType  // Type of provider to create
	APIKey   string        // API key (used by Google provider)
	MinDelay time.Duration // Minimum delay between live requests (used by Nominatim provider)
	Logger   *slog.Logger  // Logger for the provider
}

// NewProvider creates a geocoding provider based on the provided configuration.
// It applies the Factory pattern to decouple provider instantiation from business logic.
//
// Supported provider types:
// - "google": Google Maps Geocoding API (requires API key)
// - "nominatim": OpenStreetMap Nominatim API (free, no API key required)
//
// Returns an error if the provider type is unsupported or if provider creation fails.
func NewProvider(config ProviderConfig) (Provider, error) {
	switch config.Type {
	case ProviderTypeGoogle:
		return newGoogleProvider(config)
	case ProviderTypeNominatim:
		return newNominatimProvider(config)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", config.Type)
	}
}

// newGoogleProvider creates a Google Maps geocoding provider.
func newGoogleProvider(config ProviderConfig) (Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("API key is required for Google provider")
	}

	// The maps client takes requests-per-second; the batch issues one request
	// at a time, so a limit of 1 keeps it well inside quota.
	clientOpts := []maps.ClientOption{
		maps.WithAPIKey(config.APIKey),
		maps.WithRateLimit(1),
	}

	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}

	return NewGoogleProvider(client, config.Logger), nil
}

// newNominatimProvider creates a Nominatim geocoding provider.
func newNominatimProvider(config ProviderConfig) (Provider, error) {
	// Nominatim is free and doesn't require an API key.
	minDelay := config.MinDelay
	if minDelay <= 0 {
		minDelay = defaultMinDelay
		config.Logger.Warn("Minimum delay between geocoding calls not set, using default", "value", minDelay)
	}

	return NewNominatimProvider(minDelay, config.Logger), nil
}
