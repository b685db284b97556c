// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application. Create it
// once at startup; promauto registers against the default registry.
type Metrics struct {
	// Feed metrics
	EntriesReceived      prometheus.Counter
	TransactionsDecoded  prometheus.Counter
	EntryDecodeErrors    prometheus.Counter
	FeedReconnects       prometheus.Counter
	HighestSlotSeen      prometheus.Gauge

	// Filter metrics
	FeeFiltered       prometheus.Counter
	LaunchesDetected  prometheus.Counter
	DuplicatesSkipped prometheus.Counter
	DedupErrors       prometheus.Counter
	PolicyRejections  *prometheus.CounterVec

	// Trade metrics
	PositionsOpened   prometheus.Counter
	PositionsClosed   prometheus.Counter
	PositionsFailed   prometheus.Counter
	PositionsInFlight prometheus.Gauge
	DetectToSubmit    prometheus.Histogram
}

// NewMetrics creates a Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "shred_sniper"
	}

	return &Metrics{
		EntriesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "entries_received_total",
			Help:      "Total number of entry payloads received from the relay",
		}),
		TransactionsDecoded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "transactions_decoded_total",
			Help:      "Total number of transactions decoded from entries",
		}),
		EntryDecodeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "entry_decode_errors_total",
			Help:      "Total number of entry payloads that failed to decode",
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of relay reconnections",
		}),
		HighestSlotSeen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "highest_slot_seen",
			Help:      "Highest slot observed on the feed",
		}),

		FeeFiltered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "fee_filtered_total",
			Help:      "Total number of transactions dropped by the tip ceiling",
		}),
		LaunchesDetected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "launches_detected_total",
			Help:      "Total number of token launches detected",
		}),
		DuplicatesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "duplicates_skipped_total",
			Help:      "Total number of candidates dropped as duplicate mints",
		}),
		DedupErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "dedup_errors_total",
			Help:      "Total number of dedup store errors, each treated as a failed claim",
		}),
		PolicyRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "policy_rejections_total",
			Help:      "Total number of candidates rejected by the price policy",
		}, []string{"reason"}),

		PositionsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "positions_opened_total",
			Help:      "Total number of positions whose buy was submitted",
		}),
		PositionsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "positions_closed_total",
			Help:      "Total number of positions whose sell was submitted",
		}),
		PositionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "positions_failed_total",
			Help:      "Total number of positions that ended in failure",
		}),
		PositionsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "positions_in_flight",
			Help:      "Number of positions currently between buy and terminal state",
		}),
		DetectToSubmit: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "detect_to_submit_seconds",
			Help:      "Latency from launch detection to buy submission",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
