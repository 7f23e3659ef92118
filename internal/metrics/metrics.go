// Package metrics counts assessments and credential checks. A CLI process is
// short lived, so instead of serving /metrics the registry can be flushed to
// a node_exporter textfile on exit.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const namespace = "cukai"

// Result labels.
const (
	ResultSuccess    = "success"
	ResultStoreError = "store_error"
	ResultError      = "error"
	OutcomeAccepted  = "accepted"
	OutcomeRejected  = "rejected"
)

type Metrics struct {
	registry *prometheus.Registry

	Assessments      *prometheus.CounterVec
	CredentialChecks *prometheus.CounterVec
	EventsPublished  *prometheus.CounterVec
	TaxPayable       prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Assessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      "Tax assessments computed, by persistence result.",
		}, []string{"result"}),
		CredentialChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_checks_total",
			Help:      "IC/password checks, by outcome.",
		}, []string{"outcome"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Assessment events sent to the broker, by result.",
		}, []string{"result"}),
		TaxPayable: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tax_payable_ringgit",
			Help:      "Distribution of computed tax payable.",
			Buckets:   []float64{0, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		}),
	}
	m.registry.MustRegister(m.Assessments, m.CredentialChecks, m.EventsPublished, m.TaxPayable)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveAssessment records one computed assessment.
func (m *Metrics) ObserveAssessment(result string, payable decimal.Decimal) {
	m.Assessments.WithLabelValues(result).Inc()
	m.TaxPayable.Observe(payable.InexactFloat64())
}

func (m *Metrics) ObserveCredential(ok bool) {
	outcome := OutcomeRejected
	if ok {
		outcome = OutcomeAccepted
	}
	m.CredentialChecks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObservePublish(err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	m.EventsPublished.WithLabelValues(result).Inc()
}

// WriteTextfile atomically writes the registry in text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
