package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// sendsTotal counts individual delivery attempts by channel type and
	// outcome ("sent", "failed", "rate_limited").
	sendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comms_sends_total",
			Help: "Total number of channel delivery attempts.",
		},
		[]string{"channel_type", "outcome"},
	)

	// sendDuration records per-attempt delivery latency by channel type.
	sendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "comms_send_duration_seconds",
			Help:    "Duration of channel delivery attempts in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel_type"},
	)

	// messagesTotal counts finished messages by terminal status.
	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comms_messages_total",
			Help: "Total number of messages reaching a terminal status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(sendsTotal, sendDuration, messagesTotal)
}
