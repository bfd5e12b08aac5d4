package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	LocationsProcessed *prometheus.CounterVec
	CacheHits          prometheus.Counter
	ProviderErrors     prometheus.Counter
	RequestSeconds     *prometheus.HistogramVec
	CacheEntries       prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		LocationsProcessed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "khachmap_locations_processed_total",
			Help: "Total number of distinct locations processed, by resolution status.",
		}, []string{"status"}),
		CacheHits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "khachmap_cache_hits_total",
			Help: "Total number of locations answered from the geocode cache.",
		}),
		ProviderErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "khachmap_provider_api_errors_total",
			Help: "Total number of errors received from the geocoding provider API.",
		}),
		RequestSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "khachmap_provider_request_duration_seconds",
			Help:    "Duration of requests to the geocoding provider API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		CacheEntries: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "khachmap_cache_entries",
			Help: "Current number of resolved locations held in the geocode cache.",
		}),
	}
}
