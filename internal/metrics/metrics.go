package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	NotificationsReceived prometheus.Counter
	NotificationsSkipped  prometheus.Counter
	NotificationsAdmitted prometheus.Counter
	SyncSuccesses         prometheus.Counter
	SyncFailures          prometheus.Counter
	DocumentsCompleted    prometheus.Counter
	DocumentsFailed       prometheus.Counter
	TransactionsCreated   prometheus.Counter
	ProcessingTime        prometheus.Histogram
}

// NewMetrics creates new Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		NotificationsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgerlens_notifications_received",
			Help: "Total number of mailbox push notifications received",
		}),
		NotificationsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgerlens_notifications_skipped",
			Help: "Total number of notifications skipped as stale or already running",
		}),
		NotificationsAdmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgerlens_notifications_admitted",
			Help: "Total number of notifications that triggered a mailbox sync",
		}),
		SyncSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgerlens_sync_successes",
			Help: "Total number of mailbox sync batches that completed",
		}),
		SyncFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgerlens_sync_failures",
			Help: "Total number of mailbox sync batches that aborted",
		}),
		DocumentsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgerlens_documents_completed",
			Help: "Total number of documents processed to COMPLETED",
		}),
		DocumentsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgerlens_documents_failed",
			Help: "Total number of documents that ended FAILED",
		}),
		TransactionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgerlens_transactions_created",
			Help: "Total number of transactions materialized from documents",
		}),
		ProcessingTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledgerlens_document_processing_duration_seconds",
			Help:    "Time spent processing a single document",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
