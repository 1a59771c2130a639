// Package metrics exposes Prometheus collectors for the content loop.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "autosocial"

// Metrics groups every collector. A nil *Metrics is a valid no-op.
type Metrics struct {
	validations        *prometheus.CounterVec
	validationScore    prometheus.Histogram
	generationAttempts *prometheus.CounterVec
	publishes          *prometheus.CounterVec
	collaboratorErrors *prometheus.CounterVec
	jobDuration        *prometheus.HistogramVec
}

// MustNew registers the collectors with reg, reusing any that already exist.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Metrics{
		validations: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "results_total",
			Help:      "Validation verdicts by resulting status.",
		}, []string{"status"})),
		validationScore: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "score",
			Help:      "Overall validation scores.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		})),
		generationAttempts: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "attempts_total",
			Help:      "Generation attempts by outcome.",
		}, []string{"outcome"})),
		publishes: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publish",
			Name:      "results_total",
			Help:      "Platform publish results.",
		}, []string{"platform", "result"})),
		collaboratorErrors: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "errors_total",
			Help:      "Collaborator failures by service and kind.",
		}, []string{"service", "kind"})),
		jobDuration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "job_duration_seconds",
			Help:      "Duration of background jobs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"job"})),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveValidation records a verdict and its score.
func (m *Metrics) ObserveValidation(status string, score int) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(status).Inc()
	m.validationScore.Observe(float64(score))
}

// IncGenerationAttempt counts one generation attempt.
func (m *Metrics) IncGenerationAttempt(outcome string) {
	if m == nil {
		return
	}
	m.generationAttempts.WithLabelValues(outcome).Inc()
}

// IncPublish counts one platform publish.
func (m *Metrics) IncPublish(platform, result string) {
	if m == nil {
		return
	}
	m.publishes.WithLabelValues(platform, result).Inc()
}

// IncCollaboratorError counts a failed collaborator call.
func (m *Metrics) IncCollaboratorError(service, kind string) {
	if m == nil {
		return
	}
	m.collaboratorErrors.WithLabelValues(service, kind).Inc()
}

// ObserveJob records how long a background job took.
func (m *Metrics) ObserveJob(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}
