package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KARAMARAM/Khatchkars/internal/cache"
	"github.com/KARAMARAM/Khatchkars/internal/config"
	"github.com/KARAMARAM/Khatchkars/internal/geocoding"
	"github.com/KARAMARAM/Khatchkars/internal/loader"
	"github.com/KARAMARAM/Khatchkars/internal/metrics"
	"github.com/KARAMARAM/Khatchkars/internal/render"
	"github.com/KARAMARAM/Khatchkars/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

var (
	flagEnv         string
	flagProvider    string
	flagOutput      string
	flagCacheFile   string
	flagMetricsPort int
)

var rootCmd = &cobra.Command{
	Use:   "khachkar-map [data-dir]",
	Short: "Render an interactive map of Armenian khachkars",
	Long: `Reads a directory of per-site khachkar JSON files, resolves each
record's free-text location to coordinates through a rate-limited geocoding
provider with a persistent local cache, and writes one static HTML file with
a clustered Leaflet map.`,
	Args: cobra.MaximumNArgs(1),
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&flagEnv, "env", "", "environment: local, development, production (overrides KHACHMAP_ENV)")
	rootCmd.Flags().StringVar(&flagProvider, "provider", "", "geocoding provider: nominatim, google (overrides KHACHMAP_PROVIDER_TYPE)")
	rootCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "path of the rendered HTML map (overrides KHACHMAP_OUTPUT)")
	rootCmd.Flags().StringVar(&flagCacheFile, "cache", "", "path of the geocode cache CSV (overrides KHACHMAP_CACHE_FILE)")
	rootCmd.Flags().IntVar(&flagMetricsPort, "metrics-port", 0, "serve Prometheus metrics on this port during the run (overrides KHACHMAP_METRICS_PORT)")
}

// main is the entry point of the application.
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// run executes the whole batch: load records, resolve locations through the
// cache and provider, persist the cache delta, render the map.
func run(cmd *cobra.Command, args []string) error {
	// Create a context that will be canceled when an interrupt signal is
	// received, so Ctrl+C aborts the batch mid-geocode cleanly.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load application configuration; flags take precedence over env vars.
	cfg := config.MustLoad()
	applyFlags(cmd, cfg, args)

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env)

	// Create a separate registry for application metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	// The monitoring server only matters for long geocoding runs; it stays
	// off unless a port is configured.
	if cfg.MetricsPort > 0 {
		go startMonitoringServer(ctx, logger, reg, cfg.MetricsPort)
	}

	records, err := loader.NewLoader(logger).Load(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to load khachkar records: %w", err)
	}

	locations, err := cache.Load(cfg.CacheFile, logger)
	if err != nil {
		return fmt.Errorf("failed to load geocode cache: %w", err)
	}
	locations.SeedManual(cache.ManualOverrides())

	// Create geocoding provider using factory pattern based on configuration.
	providerConfig := geocoding.ProviderConfig{
		Type:     geocoding.ProviderType(cfg.ProviderType),
		APIKey:   cfg.APIKey,
		MinDelay: cfg.MinDelay,
		Logger:   logger,
	}

	geoProvider, err := geocoding.NewProvider(providerConfig)
	if err != nil {
		return fmt.Errorf("failed to create geocoding provider: %w", err)
	}

	logger.InfoContext(ctx, "Geocoding provider initialized", "type", cfg.ProviderType)

	resolver := service.NewResolver(logger, locations, geoProvider, cfg.ProviderType, appMetrics)
	geocoded := resolver.ResolveAll(ctx, records)

	// Persist before rendering so resolved coordinates survive even when
	// the render step fails.
	if err = locations.Persist(); err != nil {
		return fmt.Errorf("failed to persist geocode cache: %w", err)
	}

	if err = render.NewRenderer(logger).WriteMap(geocoded, cfg.OutputFile); err != nil {
		if errors.Is(err, render.ErrNoRecords) {
			logger.WarnContext(ctx, "No geocoded records, nothing to render")
			return nil
		}
		return fmt.Errorf("failed to render map: %w", err)
	}

	cmd.Printf("Map with %d khachkars written to %s\n", len(geocoded), cfg.OutputFile)

	return nil
}

// applyFlags overlays explicitly set command-line flags and the positional
// data directory onto the environment-derived configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config, args []string) {
	if len(args) > 0 {
		cfg.DataDir = args[0]
	}
	if cmd.Flags().Changed("env") {
		cfg.Env = flagEnv
	}
	if cmd.Flags().Changed("provider") {
		cfg.ProviderType = flagProvider
	}
	if cmd.Flags().Changed("output") {
		cfg.OutputFile = flagOutput
	}
	if cmd.Flags().Changed("cache") {
		cfg.CacheFile = flagCacheFile
	}
	if cmd.Flags().Changed("metrics-port") {
		cfg.MetricsPort = flagMetricsPort
	}
}

// startMonitoringServer starts an HTTP server that provides health check and metrics endpoints.
// It listens on the specified port and logs the server's status and any errors encountered.
func startMonitoringServer(
	ctx context.Context,
	log *slog.Logger,
	reg *prometheus.Registry,
	port int,
) {
	http.HandleFunc("/healthz", func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		if _, err := writer.Write([]byte("OK")); err != nil {
			log.ErrorContext(ctx, "failed to write reply", "error", err)
		}
	})
	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	log.InfoContext(ctx, "Starting monitoring server", "port", port)
	readTimeout := 5
	writeTimeout := 10
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      http.DefaultServeMux,
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		log.ErrorContext(ctx, "Monitoring server failed", "error", err)
	}
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelInfo,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelWarn,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelError,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}
