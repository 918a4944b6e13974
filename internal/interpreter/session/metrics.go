package session

import (
	"time"

	"drawing-interpreter/internal/interpreter/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the interpreter's Prometheus collectors. A nil *Metrics
// records nothing.
//
//   - interpreter_sessions_total{outcome}
//   - interpreter_session_duration_seconds
//   - interpreter_elements_recognized_total{type}
//   - interpreter_correlations_total{kind}
//   - interpreter_merged_elements_total{standalone}
//   - interpreter_warnings_total
//   - interpreter_pattern_failures_total{element_type}
type Metrics struct {
	SessionsTotal     *prometheus.CounterVec
	SessionDuration   prometheus.Histogram
	ElementsTotal     *prometheus.CounterVec
	CorrelationsTotal *prometheus.CounterVec
	MergedTotal       *prometheus.CounterVec
	WarningsTotal     prometheus.Counter
	PatternFailures   *prometheus.CounterVec
}

const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCancelled = "cancelled"
)

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interpreter_sessions_total",
				Help: "Total number of interpretation sessions by outcome",
			},
			[]string{"outcome"},
		),
		SessionDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "interpreter_session_duration_seconds",
				Help:    "Duration of interpretation sessions in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
			},
		),
		ElementsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interpreter_elements_recognized_total",
				Help: "Total number of recognized elements by type",
			},
			[]string{"type"},
		),
		CorrelationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interpreter_correlations_total",
				Help: "Total number of cross-view correlations by kind",
			},
			[]string{"kind"},
		),
		MergedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interpreter_merged_elements_total",
				Help: "Total number of merged elements",
			},
			[]string{"standalone"},
		),
		WarningsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "interpreter_warnings_total",
				Help: "Total number of validation warnings",
			},
		),
		PatternFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interpreter_pattern_failures_total",
				Help: "Total number of failed element categories during pattern matching",
			},
			[]string{"element_type"},
		),
	}
}

func (m *Metrics) recordSession(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.SessionsTotal.WithLabelValues(outcome).Inc()
	m.SessionDuration.Observe(d.Seconds())
}

func (m *Metrics) recordResult(r *models.DrawingInterpretationResult) {
	if m == nil {
		return
	}
	for _, e := range r.RecognizedElements {
		m.ElementsTotal.WithLabelValues(string(e.Type)).Inc()
	}
	for _, c := range r.ViewCorrelations {
		m.CorrelationsTotal.WithLabelValues(string(c.Kind)).Inc()
	}
	for _, e := range r.MergedElements {
		if e.Standalone {
			m.MergedTotal.WithLabelValues("true").Inc()
		} else {
			m.MergedTotal.WithLabelValues("false").Inc()
		}
	}
	m.WarningsTotal.Add(float64(len(r.Warnings)))
}

func (m *Metrics) recordPatternFailure(et models.ElementType) {
	if m == nil {
		return
	}
	m.PatternFailures.WithLabelValues(string(et)).Inc()
}
