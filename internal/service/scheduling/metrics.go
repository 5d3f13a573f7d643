package scheduling

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records admission outcomes and availability query latency.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	admissions    *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		admissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agenda_admissions_total",
				Help: "Booking and schedule block admission attempts by outcome",
			},
			[]string{"record", "operation", "outcome"},
		),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agenda_availability_query_duration_seconds",
				Help:    "Duration of availability and suggestion queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0},
			},
			[]string{"query"},
		),
	}
	reg.MustRegister(m.admissions, m.queryDuration)
	return m
}

func (m *Metrics) recordAdmission(record, operation string, err error) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(record, operation, outcome(err)).Inc()
}

func (m *Metrics) observeQuery(query string, started time.Time) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(query).Observe(time.Since(started).Seconds())
}

func outcome(err error) string {
	var vErr *ValidationError
	switch {
	case err == nil:
		return "admitted"
	case errors.Is(err, ErrSchedulingConflict):
		return "conflict"
	case errors.As(err, &vErr):
		return "invalid"
	case errors.Is(err, ErrDoctorNotFound):
		return "doctor_not_found"
	default:
		return "error"
	}
}
