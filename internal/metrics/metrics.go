package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Detection engine metrics
	LinesScannedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "socdetect_lines_scanned_total",
			Help: "Total number of non-blank log lines scanned",
		},
	)

	DetectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socdetect_detections_total",
			Help: "Total number of detections produced, by rule and severity",
		},
		[]string{"rule", "severity"},
	)

	ParseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "socdetect_parse_duration_seconds",
			Help:    "Duration of log parsing in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Ingestion metrics
	AlertsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socdetect_alerts_ingested_total",
			Help: "Detections handled by the ingestion adapter, by outcome",
		},
		[]string{"outcome"}, // created, duplicate, failed
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socdetect_store_errors_total",
			Help: "Total number of alert store errors, by operation",
		},
		[]string{"operation"},
	)

	// Risk scoring metrics
	RiskScoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "socdetect_risk_scoring_duration_seconds",
			Help:    "Duration of alert risk scoring in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RiskAdjustmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socdetect_risk_adjustments_total",
			Help: "Total number of risk adjustments applied, by pattern",
		},
		[]string{"pattern"},
	)

	EscalationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "socdetect_escalations_total",
			Help: "Total number of alerts flagged for escalation",
		},
	)

	// Messaging metrics
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socdetect_events_published_total",
			Help: "Total number of events published, by subject and status",
		},
		[]string{"subject", "status"},
	)

	// Cache metrics
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socdetect_cache_requests_total",
			Help: "Statistics cache lookups, by result",
		},
		[]string{"result"}, // hit, miss, error
	)

	// Archive metrics
	ArchivedDocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socdetect_archived_documents_total",
			Help: "Detection match documents sent to the search index, by status",
		},
		[]string{"status"}, // indexed, failed
	)

	EvidenceUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socdetect_evidence_uploads_total",
			Help: "Raw log uploads to object storage, by status",
		},
		[]string{"status"}, // success, failure
	)
)

// Outcome labels for AlertsIngestedTotal
const (
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)
