package businessflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "followup_messages_sent_total",
		Help: "Follow-up messages queued or sent, by job and channel",
	}, []string{"job", "channel"})

	recordsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "followup_records_skipped_total",
		Help: "Records skipped by the follow-up runners, by job and reason",
	}, []string{"job", "reason"})

	sendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "followup_send_errors_total",
		Help: "Per-record send failures counted in the errors tally",
	}, []string{"job"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "followup_run_duration_seconds",
		Help:    "Duration of follow-up runs",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"job"})
)

func recordSent(job, channel string) {
	messagesSent.WithLabelValues(job, channel).Inc()
}

func recordSkip(job, reason string) {
	recordsSkipped.WithLabelValues(job, reason).Inc()
}

func recordSendError(job string) {
	sendErrors.WithLabelValues(job).Inc()
}

func observeRun(job string, d time.Duration) {
	runDuration.WithLabelValues(job).Observe(d.Seconds())
}
