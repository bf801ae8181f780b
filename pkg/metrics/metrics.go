package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	BrandMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brand_messages_total",
			Help: "Total number of brand messages consumed, by outcome (count)",
		},
		[]string{"outcome"},
	)

	BrandProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brand_processing_duration_ms",
			Help:    "End-to-end processing duration per brand message in milliseconds",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
		[]string{"outcome"},
	)

	VehiclesPersistedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vehicles_persisted_total",
			Help: "Total number of vehicles inserted into storage (count)",
		},
	)

	VehiclesSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vehicles_skipped_total",
			Help: "Total number of vehicles skipped because they already existed (count)",
		},
	)

	BrandsLoadedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brands_loaded_total",
			Help: "Total number of brands loaded from the upstream catalog (count)",
		},
		[]string{"status"},
	)

	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total number of requests to the upstream pricing API (count)",
		},
		[]string{"endpoint", "status"},
	)

	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_ms",
			Help:    "Duration of upstream pricing API requests in milliseconds",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"endpoint"},
	)

	UpstreamQuotaUsed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "upstream_quota_used",
			Help: "Requests consumed from the upstream daily quota in the current window (count)",
		},
	)

	UpstreamQuotaRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "upstream_quota_rejected_total",
			Help: "Total number of calls rejected by the daily quota limiter (count)",
		},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaCommitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_commits_total",
			Help: "Total number of offset commits (count)",
		},
		[]string{"service", "topic", "status"},
	)

	CacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Total number of cache lookups by result (count)",
		},
		[]string{"resource", "result"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of HTTP requests checked against rate limit (count)",
		},
		[]string{"status"},
	)
)

func RegisterConsumerMetrics() {
	prometheus.MustRegister(
		BrandMessagesTotal,
		BrandProcessingDuration,
		VehiclesPersistedTotal,
		VehiclesSkippedTotal,
		RetryAttemptsTotal,
		DLQMessagesTotal,
	)
}

func RegisterUpstreamMetrics() {
	prometheus.MustRegister(
		UpstreamRequestsTotal,
		UpstreamRequestDuration,
		UpstreamQuotaUsed,
		UpstreamQuotaRejectedTotal,
	)
}

func RegisterLoaderMetrics() {
	prometheus.MustRegister(BrandsLoadedTotal)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(
		KafkaMessagesReadTotal,
		KafkaMessagesWrittenTotal,
		KafkaCommitsTotal,
	)
}

func RegisterCacheMetrics() {
	prometheus.MustRegister(CacheRequestsTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(
		CircuitBreakerState,
		CircuitBreakerRequests,
		CircuitBreakerFailures,
	)
}

func RegisterAPIMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func ObserveBrandProcessing(d time.Duration, outcome string) {
	BrandProcessingDuration.WithLabelValues(outcome).Observe(float64(d.Milliseconds()))
}

func ObserveUpstreamRequest(endpoint string, d time.Duration) {
	UpstreamRequestDuration.WithLabelValues(endpoint).Observe(float64(d.Milliseconds()))
}
