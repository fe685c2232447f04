package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels submissions that produced a result.
	OutcomeSuccess = "success"
	// OutcomeValidation labels submissions rejected before dispatch.
	OutcomeValidation = "validation"
	// OutcomeTransport labels submissions that failed on the wire.
	OutcomeTransport = "transport"
	// OutcomeStale labels completions dropped because a newer submission superseded them.
	OutcomeStale = "stale"
)

var (
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "analysis_console",
			Name:      "submissions_total",
			Help:      "Submissions resolved per screen, partitioned by outcome.",
		},
		[]string{"screen", "outcome"},
	)

	roundTripSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "analysis_console",
			Name:      "round_trip_seconds",
			Help:      "Time from submit to resolution of a current (non-stale) request.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"screen"},
	)

	normalizationFaultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "analysis_console",
			Name:      "normalization_faults_total",
			Help:      "Payload fields that had to be defaulted or repaired.",
		},
		[]string{"kind", "field"},
	)

	activeSessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "analysis_console",
			Name:      "active_sessions",
			Help:      "Mounted screens per screen type.",
		},
		[]string{"screen"},
	)
)

// Register attaches analysis-console collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		submissionsTotal,
		roundTripSeconds,
		normalizationFaultsTotal,
		activeSessions,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveSubmission records how a submission resolved. Stale completions are
// counted but do not feed the latency histogram.
func ObserveSubmission(screen, outcome string, duration time.Duration) {
	submissionsTotal.WithLabelValues(screen, outcome).Inc()
	if outcome == OutcomeStale || outcome == OutcomeValidation {
		return
	}
	if duration < 0 {
		duration = 0
	}
	roundTripSeconds.WithLabelValues(screen).Observe(duration.Seconds())
}

// NormalizationFault counts a repaired payload field.
func NormalizationFault(kind, field string) {
	normalizationFaultsTotal.WithLabelValues(kind, field).Inc()
}

// SessionMounted adjusts the active session gauge by delta.
func SessionMounted(screen string, delta int) {
	activeSessions.WithLabelValues(screen).Add(float64(delta))
}
