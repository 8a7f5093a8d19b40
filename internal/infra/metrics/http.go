package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(httpRequestsTotal, httpRequestSeconds) }

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "API requests by route pattern, status and error code.",
		},
		[]string{"route", "status", "code"},
	)

	httpRequestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request latency by route pattern.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"route"},
	)
)

// ObserveAPIRequest records one served request. route is the router pattern,
// never the raw path, so usernames stay out of the label set.
func ObserveAPIRequest(route string, status int, code string, d time.Duration) {
	httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status), norm(code)).Inc()
	httpRequestSeconds.WithLabelValues(route).Observe(d.Seconds())
}
