package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ consume latency (ms)
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// Mail provider call latency (ms)
	MailSendLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mail_send_latency_ms",
			Help:    "Mail provider call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(50, 2, 10), // 50ms to ~50s
		},
		[]string{"provider", "status"},
	)

	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"sql"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	StageToggleCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stage_toggle_count",
			Help: "Total number of stage completion toggles",
		},
		[]string{"stage", "completed"},
	)

	ReminderQueuedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_queued_count",
			Help: "Total number of deadline reminders queued",
		},
		[]string{"stage"},
	)

	MailProcessedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail_processed_count",
			Help: "Total number of emails handed to a provider",
		},
		[]string{"status"}, // status: sent, failed
	)

	OTDRPercentage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "otdr_percentage",
			Help: "Current on-time delivery rate per stage",
		},
		[]string{"stage"},
	)
)

func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

func RecordMailSendLatency(provider, status string, duration time.Duration) {
	MailSendLatency.WithLabelValues(provider, status).Observe(float64(duration.Milliseconds()))
}

func IncrementSlowQuery(sql string, duration time.Duration) {
	SlowQueryCount.WithLabelValues(sql).Inc()
	DBQueryDuration.WithLabelValues("slow", "").Observe(duration.Seconds())
}

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func IncrementStageToggle(stage string, completed bool) {
	label := "false"
	if completed {
		label = "true"
	}
	StageToggleCount.WithLabelValues(stage, label).Inc()
}

func IncrementReminderQueued(stage string) {
	ReminderQueuedCount.WithLabelValues(stage).Inc()
}

func IncrementMailProcessed(status string) {
	MailProcessedCount.WithLabelValues(status).Inc()
}

func SetOTDR(stage string, value float64) {
	OTDRPercentage.WithLabelValues(stage).Set(value)
}
