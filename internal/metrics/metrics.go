// Package metrics holds the Prometheus instruments shared by the bot,
// API and worker binaries. Collectors are registered once via promauto;
// the /metrics endpoint is mounted by each service's router.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "line_secretary",
			Subsystem: "bot",
			Name:      "webhook_events_total",
			Help:      "Webhook events processed, by type and outcome.",
		},
		[]string{"event_type", "status"},
	)

	webhookEventDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "line_secretary",
			Subsystem: "bot",
			Name:      "webhook_event_duration_seconds",
			Help:      "Per-event processing latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"event_type"},
	)

	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "line_secretary",
			Subsystem: "bot",
			Name:      "commands_total",
			Help:      "Parsed bot commands, by intent.",
		},
		[]string{"intent"},
	)

	pushMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "line_secretary",
			Subsystem: "bot",
			Name:      "push_messages_total",
			Help:      "Outbound LINE messages, by kind and outcome.",
		},
		[]string{"kind", "status"},
	)

	ocrRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "line_secretary",
			Subsystem: "ocr",
			Name:      "requests_total",
			Help:      "OCR extractions, by provider and cache outcome.",
		},
		[]string{"provider", "cache"},
	)

	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "line_secretary",
			Subsystem: "ai",
			Name:      "requests_total",
			Help:      "Model calls, by operation and outcome.",
		},
		[]string{"operation", "status"},
	)

	workerJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "line_secretary",
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Scheduled job runs, by job and outcome.",
		},
		[]string{"job", "status"},
	)

	workerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "line_secretary",
			Subsystem: "worker",
			Name:      "job_duration_seconds",
			Help:      "Scheduled job run time.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"job"},
	)
)

func RecordWebhookEvent(eventType, status string, d time.Duration) {
	webhookEventsTotal.WithLabelValues(eventType, status).Inc()
	webhookEventDuration.WithLabelValues(eventType).Observe(d.Seconds())
}

func RecordCommand(intent string) {
	commandsTotal.WithLabelValues(intent).Inc()
}

func RecordPushMessage(kind, status string) {
	pushMessagesTotal.WithLabelValues(kind, status).Inc()
}

func RecordOCRRequest(provider string, fromCache bool) {
	cache := "miss"
	if fromCache {
		cache = "hit"
	}
	ocrRequestsTotal.WithLabelValues(provider, cache).Inc()
}

func RecordAIRequest(operation, status string) {
	aiRequestsTotal.WithLabelValues(operation, status).Inc()
}

func RecordWorkerJob(job, status string, d time.Duration) {
	workerJobsTotal.WithLabelValues(job, status).Inc()
	workerJobDuration.WithLabelValues(job).Observe(d.Seconds())
}
