// Package metrics exposes Prometheus counters for the inspection pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry

	RoundsStarted     *prometheus.CounterVec   // idempotent=true|false
	ImagesStored      prometheus.Counter
	ImagesSkipped     prometheus.Counter
	AnalysisRuns      *prometheus.CounterVec   // outcome
	Findings          *prometheus.CounterVec   // nutrient, severity
	UnknownLabels     prometheus.Counter
	ClassifierLatency prometheus.Histogram
	StatusChanges     *prometheus.CounterVec   // status
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		RoundsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cropcheck_rounds_started_total",
			Help: "Inspection round start calls partitioned by whether an open round was reused.",
		}, []string{"idempotent"}),
		ImagesStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cropcheck_images_stored_total",
			Help: "Images accepted into inspection rounds.",
		}),
		ImagesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cropcheck_images_skipped_total",
			Help: "Images dropped from upload batches because the round quota was reached.",
		}),
		AnalysisRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cropcheck_analysis_runs_total",
			Help: "Analysis runs partitioned by outcome.",
		}, []string{"outcome"}),
		Findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cropcheck_findings_total",
			Help: "Findings written, by nutrient code and severity.",
		}, []string{"nutrient", "severity"}),
		UnknownLabels: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cropcheck_unknown_labels_total",
			Help: "Classifier labels that could not be mapped to a nutrient code.",
		}),
		ClassifierLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cropcheck_classifier_seconds",
			Help:    "Latency of classifier calls.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		StatusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cropcheck_recommendation_status_total",
			Help: "Operator recommendation status updates.",
		}, []string{"status"}),
	}
	m.reg.MustRegister(
		m.RoundsStarted, m.ImagesStored, m.ImagesSkipped, m.AnalysisRuns,
		m.Findings, m.UnknownLabels, m.ClassifierLatency, m.StatusChanges,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
