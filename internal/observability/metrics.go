package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotelweb_requests_total",
			Help: "Total number of front-end requests",
		},
		[]string{"route", "code", "method"},
	)

	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotelweb_api_requests_total",
			Help: "Total number of calls made to the hotel API",
		},
		[]string{"operation", "outcome"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hotelweb_api_request_seconds",
			Help:    "Duration of calls made to the hotel API",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	SupersededLoads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hotelweb_superseded_loads_total",
			Help: "Booking list loads discarded because a newer load replaced them",
		},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotelweb_notifications_total",
			Help: "Notifications emitted by views",
		},
		[]string{"kind"},
	)

	RateLimitExceeded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hotelweb_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)

var registerOnce sync.Once

// InitMetrics registers the collectors with the default registry. Safe to call more than once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestsTotal, APIRequestsTotal, APIRequestDuration, SupersededLoads, NotificationsTotal, RateLimitExceeded)
	})
}
