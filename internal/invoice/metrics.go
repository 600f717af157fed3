package invoice

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics for invoice processing
type Metrics struct {
	registry *prometheus.Registry

	Uploads            *prometheus.CounterVec
	Extractions        *prometheus.CounterVec
	ExtractionDuration prometheus.Histogram
	OrphanedFiles      prometheus.Counter
}

// NewMetrics creates the metrics on their own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "invoice_uploads_total",
			Help: "Invoice uploads by outcome (ok or error)",
		}, []string{"outcome"}),
		Extractions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "invoice_extractions_total",
			Help: "Invoice extractions by status (ok or failure kind)",
		}, []string{"status"}),
		ExtractionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "invoice_extraction_duration_seconds",
			Help:    "Time spent in the extraction module, including the provider call",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}),
		OrphanedFiles: factory.NewCounter(prometheus.CounterOpts{
			Name: "invoice_orphaned_files_total",
			Help: "Uploaded files left on disk without a database row",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
