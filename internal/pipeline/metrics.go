package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"

	"sales-pipeline/internal/model"
)

// Metrics holds the ingestion counters. A nil *Metrics records nothing.
type Metrics struct {
	files        *prometheus.CounterVec
	rows         prometheus.Counter
	validations  prometheus.Counter
	retries      prometheus.Counter
	fileDuration prometheus.Histogram
	runs         *prometheus.CounterVec
}

// NewMetrics registers the ingestion metrics on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sales",
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Ingested files by terminal status.",
		}, []string{"status"}),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sales",
			Subsystem: "ingest",
			Name:      "rows_total",
			Help:      "Rows contributed to consolidated output.",
		}),
		validations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sales",
			Subsystem: "ingest",
			Name:      "schema_violations_total",
			Help:      "Files whose output sample failed schema validation.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sales",
			Subsystem: "ingest",
			Name:      "load_retries_total",
			Help:      "Extra load attempts made after transient failures.",
		}),
		fileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sales",
			Subsystem: "ingest",
			Name:      "file_duration_seconds",
			Help:      "Time to load, transform and relocate one file.",
			Buckets:   prometheus.DefBuckets,
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sales",
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Ingestion runs by result.",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{m.files, m.rows, m.validations, m.retries, m.fileDuration, m.runs} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeFile(o model.FileOutcome) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(string(o.Status)).Inc()
	m.fileDuration.Observe(o.Duration.Seconds())
	if o.Status == model.FileProcessed {
		m.rows.Add(float64(o.Rows))
	}
	if o.Validation != "" {
		m.validations.Inc()
	}
	if o.Attempts > 1 {
		m.retries.Add(float64(o.Attempts - 1))
	}
}

func (m *Metrics) observeRun(result string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(result).Inc()
}
