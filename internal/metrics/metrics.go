// Package metrics exposes Prometheus collectors for the match crawler.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	riotRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riot_requests_total",
			Help: "Total number of Riot API requests, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	riotRequestDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "riot_request_duration_seconds",
			Help:    "Histogram of Riot API request latencies.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	riotRateLimitHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "riot_rate_limit_hits_total",
			Help: "Total number of HTTP 429 responses received from the Riot API.",
		},
	)

	rateLimitWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ratelimit_wait_seconds",
			Help:    "Histogram of time spent waiting for a rate limiter grant.",
			Buckets: []float64{0.1, 0.5, 1, 1.5, 2, 5, 10, 30, 60},
		},
	)

	crawlerMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_matches_total",
			Help: "Total number of fetched matches, labeled by result.",
		},
		[]string{"result"},
	)

	crawlerPlayersCrawledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_players_crawled_total",
			Help: "Total number of players whose match history was crawled.",
		},
	)

	crawlerQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crawler_queue_depth",
			Help: "Number of players waiting in the in-memory discovery queue.",
		},
	)

	crawlerBatchFlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_batch_flushes_total",
			Help: "Total number of batch commits, labeled by status.",
		},
		[]string{"status"},
	)

	crawlerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crawler_state",
			Help: "Current orchestrator state; the active state is set to 1.",
		},
		[]string{"state"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

var states = []string{"idle", "running", "paused", "stopped"}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRiotRequest records one outbound API call.
func ObserveRiotRequest(outcome string, duration time.Duration) {
	riotRequestsTotal.WithLabelValues(outcome).Inc()
	riotRequestDurationSeconds.Observe(duration.Seconds())
}

// ObserveRateLimitHit increments the 429 counter.
func ObserveRateLimitHit() {
	riotRateLimitHitsTotal.Inc()
}

// ObserveRateLimitWait records the duration of a rate limiter wait.
func ObserveRateLimitWait(duration time.Duration) {
	rateLimitWaitSeconds.Observe(duration.Seconds())
}

// ObserveMatch counts a fetched match by result (stored, duplicate or a filter reason).
func ObserveMatch(result string) {
	crawlerMatchesTotal.WithLabelValues(result).Inc()
}

// ObserveMatches adds n fetched matches under result.
func ObserveMatches(result string, n int) {
	if n <= 0 {
		return
	}
	crawlerMatchesTotal.WithLabelValues(result).Add(float64(n))
}

// ObservePlayerCrawled increments the crawled players counter.
func ObservePlayerCrawled() {
	crawlerPlayersCrawledTotal.Inc()
}

// SetQueueDepth sets the discovery queue gauge.
func SetQueueDepth(n int) {
	crawlerQueueDepth.Set(float64(n))
}

// ObserveBatchFlush counts a batch commit.
func ObserveBatchFlush(ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	crawlerBatchFlushesTotal.WithLabelValues(status).Inc()
}

// SetState marks state as the active orchestrator state.
func SetState(state string) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		crawlerState.WithLabelValues(s).Set(v)
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
