package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bazap_events_created_total",
		Help: "Total number of events created",
	})

	EventsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bazap_events_submitted_total",
		Help: "Total number of events submitted for inspection",
	})

	EventsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bazap_events_completed_total",
		Help: "Total number of events completed",
	})

	InspectionDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bazap_inspection_decisions_total",
		Help: "Total number of inspection decisions recorded",
	}, []string{"decision"})

	ReceiptsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bazap_receipts_created_total",
		Help: "Total number of receipts created",
	})

	ReceiptsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bazap_receipts_cancelled_total",
		Help: "Total number of receipts cancelled",
	})

	ReceiptsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bazap_receipts_failed_total",
		Help: "Total number of failed receipt creations",
	}, []string{"reason"})

	StockMovementLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bazap_stock_movement_latency_seconds",
		Help:    "Latency of transactional stock movements",
		Buckets: prometheus.DefBuckets,
	})

	LabelsRenderedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bazap_labels_rendered_total",
		Help: "Total number of labels rendered",
	}, []string{"mode"})

	LabelsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bazap_labels_skipped_total",
		Help: "Total number of batch label entries skipped",
	})

	SuggestionsServedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bazap_reason_suggestions_served_total",
		Help: "Total number of reason suggestion lookups served",
	})

	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bazap_login_attempts_total",
		Help: "Total number of login attempts",
	}, []string{"outcome"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
