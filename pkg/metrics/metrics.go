// Package metrics exposes Prometheus collectors for the repository, WAL,
// ingestion, extraction, query, and community-analytics subsystems.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Repository metrics
	RepositoryNodesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "graphrag_repository_nodes_total",
			Help: "Total number of nodes currently held in the repository",
		},
	)

	RepositoryEdgesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "graphrag_repository_edges_total",
			Help: "Total number of edges currently held in the repository",
		},
	)

	RepositorySnapshotLSN = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "graphrag_repository_snapshot_lsn",
			Help: "Log sequence number of the most recently applied mutation",
		},
	)

	// WAL metrics
	WALAppendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphrag_wal_appends_total",
			Help: "Total number of WAL record appends by outcome",
		},
		[]string{"outcome"},
	)

	WALFlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graphrag_wal_flush_seconds",
			Help:    "Time taken to fsync a WAL append in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	WALReplayDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graphrag_wal_replay_seconds",
			Help:    "Time taken to replay the WAL on open in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Ingestion metrics
	IngestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graphrag_ingest_duration_seconds",
			Help:    "Time taken to run the ingestion pipeline by outcome",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	IngestDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphrag_ingest_documents_total",
			Help: "Total number of documents ingested by outcome",
		},
		[]string{"outcome"},
	)

	IngestChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "graphrag_ingest_chunks_total",
			Help: "Total number of chunks produced during ingestion",
		},
	)

	// Extraction metrics
	ExtractionJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphrag_extraction_jobs_total",
			Help: "Total number of entity extraction jobs processed by outcome",
		},
		[]string{"outcome"},
	)

	ExtractionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graphrag_extraction_duration_seconds",
			Help:    "Time taken to extract and persist entities for one chunk",
			Buckets: prometheus.DefBuckets,
		},
	)

	ExtractionQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "graphrag_extraction_queue_depth",
			Help: "Current number of buffered entity extraction jobs",
		},
	)

	// Query metrics
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graphrag_query_duration_seconds",
			Help:    "Time taken to execute a query by search mode",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"search_mode"},
	)

	QueryEvidenceNodes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graphrag_query_evidence_nodes",
			Help:    "Number of evidence nodes returned per query by search mode",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"search_mode"},
	)

	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphrag_queries_total",
			Help: "Total number of queries executed by search mode and outcome",
		},
		[]string{"search_mode", "outcome"},
	)

	// Community analytics metrics
	CommunityLevels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "graphrag_community_levels",
			Help: "Number of hierarchy levels produced by the most recent community build",
		},
	)

	CommunityBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graphrag_community_build_duration_seconds",
			Help:    "Time taken to run the community detection pipeline",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Governance and audit metrics
	AuditEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphrag_audit_events_total",
			Help: "Total number of audit events emitted by outcome",
		},
		[]string{"outcome"},
	)

	AuthzDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphrag_authz_decisions_total",
			Help: "Total number of authorization decisions by outcome",
		},
		[]string{"decision"},
	)
)

func init() {
	prometheus.MustRegister(RepositoryNodesTotal)
	prometheus.MustRegister(RepositoryEdgesTotal)
	prometheus.MustRegister(RepositorySnapshotLSN)

	prometheus.MustRegister(WALAppendsTotal)
	prometheus.MustRegister(WALFlushDuration)
	prometheus.MustRegister(WALReplayDuration)

	prometheus.MustRegister(IngestDuration)
	prometheus.MustRegister(IngestDocumentsTotal)
	prometheus.MustRegister(IngestChunksTotal)

	prometheus.MustRegister(ExtractionJobsTotal)
	prometheus.MustRegister(ExtractionDuration)
	prometheus.MustRegister(ExtractionQueueDepth)

	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryEvidenceNodes)
	prometheus.MustRegister(QueriesTotal)

	prometheus.MustRegister(CommunityLevels)
	prometheus.MustRegister(CommunityBuildDuration)

	prometheus.MustRegister(AuditEventsTotal)
	prometheus.MustRegister(AuthzDecisionsTotal)
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer times an in-flight operation for later recording against a
// histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time against a plain histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time against a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
