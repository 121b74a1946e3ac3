package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	SessionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_session_transitions_total",
			Help: "Total number of session state transitions by target status",
		},
		[]string{"status"},
	)
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "whatsapp_sessions_active",
			Help: "Number of sessions currently in a non-disconnected state",
		},
	)
	SendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "whatsapp_send_duration_seconds",
			Help:    "Duration of outbound message sends in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	AuthFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "whatsapp_auth_failures_total",
			Help: "Total number of terminal pairing/credential failures",
		},
	)
)

func InitMetrics() {
	for _, c := range []prometheus.Collector{SessionTransitions, ActiveSessions, SendDuration, AuthFailures} {
		if err := prometheus.Register(c); err != nil {
			log.Error().Err(err).Msg("Failed to register metric")
		}
	}
}
