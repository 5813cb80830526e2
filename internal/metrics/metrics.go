// Package metrics defines the prometheus instrumentation for the resolver
// pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prima2g_resolutions_total",
		Help: "Resolution attempts by operation and outcome",
	}, []string{"operation", "outcome"}) // operation=catchup|live, outcome=success|<error kind>

	loginTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prima2g_login_total",
		Help: "Provider login attempts by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	tokenCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prima2g_token_cache_total",
		Help: "Token cache lookups by result",
	}, []string{"result"}) // result=hit|miss|expired

	epgDayFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prima2g_epg_day_fetches_total",
		Help: "Per-day EPG guide fetches by outcome",
	}, []string{"outcome"}) // outcome=success|empty|error

	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "prima2g_upstream_request_duration_seconds",
		Help:    "Latency of provider API requests by endpoint",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)

// RecordResolution counts one resolution attempt.
func RecordResolution(operation, outcome string) {
	resolutionsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordLogin counts one provider login attempt.
func RecordLogin(outcome string) {
	loginTotal.WithLabelValues(outcome).Inc()
}

// RecordTokenCache counts one token cache lookup.
func RecordTokenCache(result string) {
	tokenCacheTotal.WithLabelValues(result).Inc()
}

// RecordEPGDayFetch counts one per-day guide fetch.
func RecordEPGDayFetch(outcome string) {
	epgDayFetchesTotal.WithLabelValues(outcome).Inc()
}

// ObserveUpstream records the latency of one provider request.
func ObserveUpstream(endpoint string, d time.Duration) {
	upstreamDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}
