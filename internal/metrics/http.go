package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socdetect_http_requests_total",
			Help: "HTTP requests served, by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "socdetect_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds, by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)
