// Package metrics defines the Prometheus collectors of the analytics service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AnalysesSaved counts persisted analysis events.
	AnalysesSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anima_analyses_saved_total",
		Help: "Total number of analysis events persisted",
	})

	// AnalysesDuplicate counts submissions skipped by the dedup window.
	AnalysesDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anima_analyses_duplicate_total",
		Help: "Total number of analysis submissions skipped as duplicates",
	})

	// ContentLinks counts recommendation payloads by outcome: linked, existing, failed.
	ContentLinks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anima_content_links_total",
		Help: "Recommendation payloads processed during ingestion, by outcome",
	}, []string{"outcome"})

	// PlaylistsCreated counts playlists exported to Spotify.
	PlaylistsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anima_playlists_created_total",
		Help: "Total number of playlists created on Spotify",
	})

	// HTTPRequestDuration tracks handler latency by route pattern and status.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "anima_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Content link outcomes.
const (
	OutcomeLinked   = "linked"
	OutcomeExisting = "existing"
	OutcomeFailed   = "failed"
)

// ObserveRequest records one HTTP request.
func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, statusClass(status)).Observe(elapsed.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
