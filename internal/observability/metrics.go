package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "creatorhub"

var (
	registerOnce sync.Once

	apiRequestsTotal    *prometheus.CounterVec
	apiLatencySeconds   *prometheus.HistogramVec
	apiErrorsTotal      *prometheus.CounterVec
	evaluationsTotal    *prometheus.CounterVec
	settlementEffects   *prometheus.CounterVec
	notificationsTotal  *prometheus.CounterVec
	notificationDrops   prometheus.Counter
	videoUploadsTotal   *prometheus.CounterVec
	videoUploadsLatency prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_latency_seconds",
			Help:      "Latency distribution for API requests.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 30, 60},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_errors_total",
			Help:      "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		evaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Evaluation requests by outcome code.",
		}, []string{"outcome"})

		settlementEffects = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_effects_total",
			Help:      "Settlement side effects executed, by effect and outcome.",
		}, []string{"effect", "outcome"})

		notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_published_total",
			Help:      "Notifications delivered, by type and origin.",
		}, []string{"type", "origin"})

		notificationDrops = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_stream_drops_total",
			Help:      "Notifications not delivered to a live stream because its buffer was full.",
		})

		videoUploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "video_uploads_total",
			Help:      "Submission video uploads by outcome.",
		}, []string{"outcome"})

		videoUploadsLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "video_upload_duration_seconds",
			Help:      "Time spent validating and storing submission videos.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			evaluationsTotal,
			settlementEffects,
			notificationsTotal,
			notificationDrops,
			videoUploadsTotal,
			videoUploadsLatency,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// Evaluations exposes the evaluation outcome counter.
func Evaluations() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationsTotal
}

// SettlementEffects exposes the settlement side effect counter.
func SettlementEffects() *prometheus.CounterVec {
	RegisterMetrics()
	return settlementEffects
}

// NotificationsPublished exposes the notification delivery counter.
func NotificationsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsTotal
}

// NotificationStreamDrops exposes the counter of events dropped for slow streams.
func NotificationStreamDrops() prometheus.Counter {
	RegisterMetrics()
	return notificationDrops
}

// VideoUploads exposes the video upload outcome counter.
func VideoUploads() *prometheus.CounterVec {
	RegisterMetrics()
	return videoUploadsTotal
}

// VideoUploadLatency exposes the video upload duration histogram.
func VideoUploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return videoUploadsLatency
}
