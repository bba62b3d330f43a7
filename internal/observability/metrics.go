package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus metric the house exports. Each group is
// owned by one component: the engine, the channel monitor, the persistence
// worker, the snapshotter, the projection worker, the beacon feed, and the
// HTTP surface.
type Metrics struct {
	// --- Engine ---
	EngineEventsApplied  *prometheus.CounterVec
	EngineEventsRejected *prometheus.CounterVec
	EngineEventDuration  *prometheus.HistogramVec
	EngineSequence       prometheus.Gauge
	BankrollBalance      prometheus.Gauge
	CommittedExposure    prometheus.Gauge

	// --- Channels & backpressure ---
	ChannelSize         *prometheus.GaugeVec
	ChannelCapacity     *prometheus.GaugeVec
	ChannelUtilization  *prometheus.GaugeVec
	ProjectionDrops     prometheus.Counter
	PublishDrops        prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Request dedup ---
	DedupLRUSize      prometheus.Gauge
	DedupLRUEvictions prometheus.Gauge

	// --- Persistence ---
	PersistEventsWritten   prometheus.Counter
	PersistJournalsWritten prometheus.Counter
	PersistBatchSize       prometheus.Histogram
	PersistBatchDur        prometheus.Histogram
	PersistErrors          *prometheus.CounterVec
	PersistRetry           prometheus.Counter
	PersistLastSequence    prometheus.Gauge

	// --- Snapshot & replay ---
	SnapshotTaken     prometheus.Counter
	SnapshotDuration  prometheus.Histogram
	SnapshotSizeBytes prometheus.Gauge
	SnapshotLastSeq   prometheus.Gauge
	ReplayEventsTotal prometheus.Counter
	ReplayDuration    prometheus.Gauge

	// --- Projections ---
	ProjectionUpdateDur    *prometheus.HistogramVec
	ProjectionLastSequence prometheus.Gauge

	// --- Beacon feed ---
	BeaconRoundsReceived prometheus.Counter
	BeaconRoundsDropped  *prometheus.CounterVec
	EventsPublished      prometheus.Counter

	// --- HTTP & query ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		// Engine
		EngineEventsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_engine_events_applied_total",
			Help: "Events successfully applied by the engine",
		}, []string{"event_type"}),

		EngineEventsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_engine_events_rejected_total",
			Help: "Commands rejected before applying (validation, capacity, state, proof, duplicate)",
		}, []string{"op", "reason"}),

		EngineEventDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wager_engine_event_apply_duration_seconds",
			Help:    "Time to apply a single event in the engine",
			Buckets: latencyBuckets,
		}, []string{"event_type"}),

		EngineSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "wager_engine_sequence",
			Help: "Next event sequence the engine will assign",
		}),

		BankrollBalance: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "wager_bankroll_balance",
			Help: "Pooled house bankroll",
		}),

		CommittedExposure: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "wager_committed_exposure",
			Help: "Worst-case liability reserved across live games",
		}),

		// Channels & backpressure
		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wager_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wager_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wager_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		ProjectionDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wager_projection_drops_total",
			Help: "Outputs dropped due to full projection channel",
		}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wager_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wager_persist_backpressure_total",
			Help: "Times the engine blocked on the persist channel",
		}),

		// Request dedup
		DedupLRUSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "wager_dedup_lru_size",
			Help: "Current dedup LRU occupancy",
		}),

		DedupLRUEvictions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "wager_dedup_lru_evictions",
			Help: "Dedup LRU evictions since start",
		}),

		// Persistence
		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wager_persist_events_written_total",
			Help: "Events written to Postgres",
		}),

		PersistJournalsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wager_persist_journals_written_total",
			Help: "Journal entries written to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "wager_persist_batch_size",
			Help:    "Events per write batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "wager_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wager_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "wager_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		// Snapshot & replay
		SnapshotTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wager_snapshot_taken_total",
			Help: "Snapshots created",
		}),

		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "wager_snapshot_duration_seconds",
			Help:    "Snapshot creation time",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
		}),

		SnapshotSizeBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "wager_snapshot_size_bytes",
			Help: "Last snapshot size after compression",
		}),

		SnapshotLastSeq: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "wager_snapshot_last_sequence",
			Help: "Sequence of last snapshot",
		}),

		ReplayEventsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wager_replay_events_total",
			Help: "Events replayed on startup",
		}),

		ReplayDuration: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "wager_replay_duration_seconds",
			Help: "Total startup replay time",
		}),

		// Projections
		ProjectionUpdateDur: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wager_projection_update_duration_seconds",
			Help:    "Projection table update duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}, []string{"projection"}),

		ProjectionLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "wager_projection_last_sequence",
			Help: "Projection watermark sequence",
		}),

		// Beacon feed
		BeaconRoundsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wager_beacon_rounds_received_total",
			Help: "Beacon rounds received from the feed",
		}),

		BeaconRoundsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_beacon_rounds_dropped_total",
			Help: "Beacon rounds dropped (stale, duplicate, malformed)",
		}, []string{"reason"}),

		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wager_events_published_total",
			Help: "Events published to the outbound stream",
		}),

		// HTTP & query
		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_http_requests_total",
			Help: "HTTP requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wager_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
