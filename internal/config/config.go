package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the configuration settings for the khachkar map generator.
// Values come from environment variables (a .env file is honored when
// present); the CLI may override the path fields afterwards.
//
// Fields:
// - Env: The current environment (e.g., local, dev, prod).
// - ProviderType: The type of geocoding provider to use (nominatim, google).
// - APIKey: The API key for accessing external services (required for Google).
// - MinDelay: The minimum delay enforced between consecutive live geocoding calls.
// - MetricsPort: The monitoring server port; 0 leaves the server disabled.
// - DataDir: The directory containing the per-site khachkar JSON files.
// - CacheFile: The CSV file persisting resolved locations across runs.
// - OutputFile: The HTML map artifact to write.
type Config struct {
	Env          string        // Env is the current environment: local, dev, prod.
	ProviderType string        // ProviderType specifies which geocoding provider to use.
	APIKey       string        // The API key for accessing external services.
	MinDelay     time.Duration // The minimum delay between consecutive geocoding requests.
	MetricsPort  int           // The monitoring server port, 0 means disabled.
	DataDir      string        // DataDir is the input directory with site JSON files.
	CacheFile    string        // CacheFile is the persisted geocode cache path.
	OutputFile   string        // OutputFile is the rendered map path.
}

// MustLoad loads the configuration from the environment and returns a Config struct.
func MustLoad() *Config {
	_ = godotenv.Load()

	minDelay, err := time.ParseDuration(setDeafultEnv("KHACHMAP_MIN_DELAY", "1.1s"))
	if err != nil {
		panic("failed to parse min delay from configuration")
	}

	metricsPort, err := strconv.Atoi(setDeafultEnv("KHACHMAP_METRICS_PORT", "0"))
	if err != nil {
		panic("failed to parse port for monitoring server from configuration")
	}

	return &Config{
		Env:          setDeafultEnv("KHACHMAP_ENV", "production"),
		ProviderType: setDeafultEnv("KHACHMAP_PROVIDER_TYPE", "nominatim"),
		APIKey:       os.Getenv("KHACHMAP_PROVIDER_KEY"),
		MinDelay:     minDelay,
		MetricsPort:  metricsPort,
		DataDir:      setDeafultEnv("KHACHMAP_DATA_DIR", "."),
		CacheFile:    setDeafultEnv("KHACHMAP_CACHE_FILE", "geocode_cache.csv"),
		OutputFile:   setDeafultEnv("KHACHMAP_OUTPUT", "khachkars_map.html"),
	}
}

func setDeafultEnv(key, override string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		value = override
	}

	return value
}
