package email

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "newsletter"

const (
	statusSent   = "sent"
	statusFailed = "failed"
)

var (
	emailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "email",
			Name:      "sent_total",
			Help:      "Total email delivery attempts by outcome",
		},
		[]string{"status"},
	)

	emailSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "email",
			Name:      "send_duration_seconds",
			Help:      "Time spent on a single delivery API call",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)

func recordSent(status string) {
	emailsSent.WithLabelValues(status).Inc()
}

func recordSendDuration(d time.Duration) {
	emailSendDuration.Observe(d.Seconds())
}
