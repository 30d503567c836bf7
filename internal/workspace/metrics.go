package workspace

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gspace",
			Name:      "api_requests_total",
			Help:      "Google API calls by service, operation and outcome",
		},
		[]string{"service", "operation", "outcome"},
	)

	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gspace",
			Name:      "api_request_duration_seconds",
			Help:      "Google API call latency including retries",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "operation"},
	)

	apiRateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gspace",
			Name:      "api_rate_limited_total",
			Help:      "Google API calls answered with 429",
		},
		[]string{"service"},
	)
)

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsRateLimited(err):
		return "rate_limited"
	case IsUnauthorized(err):
		return "unauthorized"
	case IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}
