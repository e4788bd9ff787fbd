// Package stats holds the Prometheus collectors exported on /metrics.
package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "podmerge"

var (
	requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Feed requests by output format and terminal state.",
	}, []string{"format", "state"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_fetch_duration_seconds",
		Help:      "Duration of upstream feed requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source", "result"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Public feed cache lookups by result.",
	}, []string{"result"})
)

// Request counts a finished feed request.
func Request(format, state string) {
	requests.WithLabelValues(format, state).Inc()
}

// Fetch records an upstream request.
func Fetch(source string, started time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	fetchDuration.WithLabelValues(source, result).Observe(time.Since(started).Seconds())
}

func CacheHit() {
	cacheLookups.WithLabelValues("hit").Inc()
}

func CacheMiss() {
	cacheLookups.WithLabelValues("miss").Inc()
}

func CacheError() {
	cacheLookups.WithLabelValues("error").Inc()
}
