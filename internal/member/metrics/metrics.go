package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the membership lifecycle.
type Metrics struct {
	applicationsSubmitted prometheus.Counter
	statusTransitions     *prometheus.CounterVec
	importRuns            prometheus.Counter
	importRows            *prometheus.CounterVec
}

// New creates and registers the metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		applicationsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "astro_join_applications_submitted_total",
			Help: "Total membership applications accepted by the intake endpoint",
		}),
		statusTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "astro_join_status_transitions_total",
			Help: "Total member status transitions, labeled by target status",
		}, []string{"to_status"}),
		importRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "astro_join_imports_total",
			Help: "Total CSV import runs",
		}),
		importRows: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "astro_join_import_rows_total",
			Help: "Total CSV import rows, labeled by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncApplicationsSubmitted() {
	if m == nil {
		return
	}
	m.applicationsSubmitted.Inc()
}

func (m *Metrics) IncStatusTransition(toStatus string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(toStatus).Inc()
}

func (m *Metrics) ObserveImport(imported, updated, skipped int) {
	if m == nil {
		return
	}
	m.importRuns.Inc()
	m.importRows.WithLabelValues("imported").Add(float64(imported))
	m.importRows.WithLabelValues("updated").Add(float64(updated))
	m.importRows.WithLabelValues("skipped").Add(float64(skipped))
}
