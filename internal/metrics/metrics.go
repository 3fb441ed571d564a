package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks quote requests served, by winning source and outcome.
	QuotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quoter_quotes_total",
			Help: "Total number of quote requests served (by winning source and status).",
		},
		[]string{"source", "status"},
	)

	// Measures the full duration of a quote request, including the
	// market-maker collection window.
	QuoteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quoter_quote_duration_seconds",
			Help:    "Duration of quote requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"pair"},
	)

	// Counts market-maker responses per auction outcome.
	MarketMakerResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quoter_mm_responses_total",
			Help: "Market-maker quote responses (by disposition).",
		},
		[]string{"disposition"},
	)

	// Gauge of currently connected market makers.
	ConnectedMarketMakers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quoter_connected_market_makers",
			Help: "Number of currently connected market-maker sessions.",
		},
	)

	// Counts handshake rejections by fixed reason text.
	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quoter_auth_failures_total",
			Help: "Market-maker handshake rejections (by reason).",
		},
		[]string{"reason"},
	)

	// Counts node RPC calls by method and status.
	NodeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quoter_node_requests_total",
			Help: "Total number of node RPC requests (by method and status).",
		},
		[]string{"method", "status"},
	)

	NATSPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_publish_errors_total",
			Help: "Number of NATS publish failures",
		},
		[]string{"subject"},
	)

	NATSPublishLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nats_publish_latency_seconds",
			Help:    "Latency of NATS JetStream publishes in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subject"},
	)

	// Deposit channels opened, marked deposited or expired.
	ChannelEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quoter_channel_events_total",
			Help: "Deposit channel lifecycle events (by kind).",
		},
		[]string{"kind"},
	)
)

// ObserveDuration records the time taken for a function and updates the given histogram.
func ObserveDuration(v any, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()

	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	default:
		// silently ignore counters; they're not meant for duration tracking
	}
}

func IncQuote(source, status string) {
	QuotesTotal.WithLabelValues(source, status).Inc()
}

func IncAuthFailure(reason string) {
	AuthFailures.WithLabelValues(reason).Inc()
}

func IncMarketMakerResponse(disposition string) {
	MarketMakerResponses.WithLabelValues(disposition).Inc()
}

func IncNodeRequest(method, status string) {
	NodeRequestsTotal.WithLabelValues(method, status).Inc()
}

func IncChannelEvent(kind string) {
	ChannelEvents.WithLabelValues(kind).Inc()
}

func IncNATSPublishError(subject string) {
	NATSPublishErrors.WithLabelValues(subject).Inc()
}
