// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// A batch run is too short-lived to be scraped, so collected metrics are
// pushed to a Pushgateway on Flush. The Pushgateway job name groups the run;
// the run id, when set, is added as a grouping label so concurrent runs do
// not overwrite each other.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/afonsolelis/etl-completa-airflow/internal/metrics"
)

// Config selects the gateway and grouping of pushed metrics.
type Config struct {
	// GatewayURL is the Pushgateway base URL, e.g. http://pushgateway:9091.
	GatewayURL string
	// Job is the Pushgateway job name; defaults to "etl".
	Job string
	// RunID, when set, becomes the run_id grouping label.
	RunID string
}

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	cfg Config
	reg *prometheus.Registry

	stepCounter   *prometheus.CounterVec // step, status
	stepDuration  *prometheus.SummaryVec // step, status
	recordCounter *prometheus.CounterVec // kind
	batchCounter  prometheus.Counter
	nullRatio     *prometheus.GaugeVec   // dataset
	duplicates    *prometheus.CounterVec // dataset
}

// NewBackend registers the pipeline collectors on a private registry.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.GatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if cfg.Job == "" {
		cfg.Job = "etl"
	}

	b := &Backend{
		cfg: cfg,
		reg: prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline and loader step executions by step and status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Step duration in seconds by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		recordCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Records by kind (extracted, cleaned, dropped, inserted, unresolved).",
		}, []string{"kind"}),
		batchCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Bulk-insert batches written to the warehouse.",
		}),
		nullRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metrics.NullRatio,
			Help: "Share of null cells per cleaned dataset.",
		}, []string{"dataset"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.DuplicateRecords,
			Help: "Fully duplicated rows per cleaned dataset.",
		}, []string{"dataset"}),
	}
	for name, c := range map[string]prometheus.Collector{
		"step counter":      b.stepCounter,
		"step summary":      b.stepDuration,
		"record counter":    b.recordCounter,
		"batch counter":     b.batchCounter,
		"null ratio gauge":  b.nullRatio,
		"duplicate counter": b.duplicates,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter != nil {
			b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
		}
	case metrics.RecordsTotal:
		if b.recordCounter != nil {
			b.recordCounter.WithLabelValues(labels["kind"]).Add(delta)
		}
	case metrics.BatchesTotal:
		if b.batchCounter != nil {
			b.batchCounter.Add(delta)
		}
	case metrics.DuplicateRecords:
		if b.duplicates != nil {
			b.duplicates.WithLabelValues(labels["dataset"]).Add(delta)
		}
	}
}

// ObserveHistogram feeds step durations into the summary. The null ratio is
// a point-in-time measure and is exported as a gauge.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case metrics.StepDuration:
		if b.stepDuration != nil {
			b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
		}
	case metrics.NullRatio:
		if b.nullRatio != nil {
			b.nullRatio.WithLabelValues(labels["dataset"]).Set(value)
		}
	}
}

// Flush pushes the registry to the Pushgateway, replacing the group.
func (b *Backend) Flush() error {
	p := push.New(b.cfg.GatewayURL, b.cfg.Job).Gatherer(b.reg)
	if b.cfg.RunID != "" {
		p = p.Grouping("run_id", b.cfg.RunID)
	}
	if err := p.Push(); err != nil {
		return fmt.Errorf("prompush: push to %s: %w", b.cfg.GatewayURL, err)
	}
	return nil
}
