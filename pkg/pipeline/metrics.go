package pipeline

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the pipeline's throughput and error counters.
type Metrics struct {
	LinesReceived  prometheus.Counter
	ParseFailures  prometheus.Counter
	BatchesSealed  prometheus.Counter
	RecordsEmitted prometheus.Counter
}

// NewMetrics builds the counter set and registers it when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LinesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "grokql",
			Name:      "lines_received_total",
			Help:      "Raw lines accepted from all sources.",
		}),
		ParseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "grokql",
			Name:      "parse_failures_total",
			Help:      "Lines that failed pattern matching or conversion.",
		}),
		BatchesSealed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "grokql",
			Name:      "batches_sealed_total",
			Help:      "Line batches sealed by size or age.",
		}),
		RecordsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "grokql",
			Name:      "records_emitted_total",
			Help:      "Records written to the sink after query execution.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.LinesReceived, m.ParseFailures, m.BatchesSealed, m.RecordsEmitted)
	}
	return m
}
