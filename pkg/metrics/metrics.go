package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	IngestRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_requests_total",
			Help: "Total number of notification ingest requests (count)",
		},
		[]string{"status"},
	)

	IngestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_duration_ms",
			Help:    "Duration of the synchronous ingest path in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"status"},
	)

	StoredMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stored_messages_total",
			Help: "Total number of per-recipient message store attempts (count)",
		},
		[]string{"result"},
	)

	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_total",
			Help: "Total number of dispatched notifications by outcome (count)",
		},
		[]string{"status"},
	)

	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_duration_ms",
			Help:    "Duration of notification dispatch in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"status"},
	)

	ChannelSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_sends_total",
			Help: "Total number of per-recipient channel send attempts (count)",
		},
		[]string{"channel", "result"},
	)

	ChannelSendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "channel_send_duration_ms",
			Help:    "Duration of individual channel sends in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"channel"},
	)

	StoreOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Total number of TTL store operations (count)",
		},
		[]string{"operation", "result"},
	)

	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_ms",
			Help:    "Duration of TTL store operations in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"operation"},
	)

	BrokerPublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_publish_total",
			Help: "Total number of envelopes published to the broker (count)",
		},
		[]string{"topic", "result"},
	)

	BrokerMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_messages_read_total",
			Help: "Total number of messages read from the broker (count)",
		},
		[]string{"service", "topic"},
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
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)
)

func RegisterIngestMetrics() {
	prometheus.MustRegister(IngestRequestsTotal)
	prometheus.MustRegister(IngestDuration)
	prometheus.MustRegister(StoredMessagesTotal)
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func RegisterDispatchMetrics() {
	prometheus.MustRegister(DispatchTotal)
	prometheus.MustRegister(DispatchDuration)
	prometheus.MustRegister(ChannelSendsTotal)
	prometheus.MustRegister(ChannelSendDuration)
}

func RegisterStoreMetrics() {
	prometheus.MustRegister(StoreOperationsTotal)
	prometheus.MustRegister(StoreOperationDuration)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(BrokerPublishTotal)
	prometheus.MustRegister(BrokerMessagesReadTotal)
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(DLQMessagesTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func ObserveIngestDuration(duration time.Duration, status string) {
	IngestDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func ObserveDispatchDuration(duration time.Duration, status string) {
	DispatchDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func ObserveChannelSendDuration(duration time.Duration, channel string) {
	ChannelSendDuration.WithLabelValues(channel).Observe(float64(duration.Milliseconds()))
}

func ObserveChannelSend(duration time.Duration, channel string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	ChannelSendsTotal.WithLabelValues(channel, result).Inc()
	ObserveChannelSendDuration(duration, channel)
}

func ObserveStoreOperation(duration time.Duration, operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	StoreOperationsTotal.WithLabelValues(operation, result).Inc()
	StoreOperationDuration.WithLabelValues(operation).Observe(float64(duration.Milliseconds()))
}
