// Package metrics records operational metrics for the warehouse pipeline
// without tying the pipeline to a metrics system.
//
// A single global Backend receives every observation. It defaults to a no-op,
// so instrumented code never has to check whether metrics are configured.
// Concrete systems live in subpackages (prompush, datadog) and are installed
// once at startup with SetBackend.
//
// Metric names:
//
//	etl_step_total              counter   job, step, status
//	etl_step_duration_seconds   histogram job, step, status
//	etl_records_total           counter   job, kind
//	etl_batches_total           counter   job
//	etl_null_ratio              histogram job, dataset
//	etl_duplicate_records_total counter   job, dataset
package metrics

import (
	"sync"
	"time"
)

// Metric names shared with the backends.
const (
	StepTotal        = "etl_step_total"
	StepDuration     = "etl_step_duration_seconds"
	RecordsTotal     = "etl_records_total"
	BatchesTotal     = "etl_batches_total"
	NullRatio        = "etl_null_ratio"
	DuplicateRecords = "etl_duplicate_records_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a distribution style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes buffered metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing one.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep counts one execution of step and records its duration. The
// status label is "success" or "failure" depending on err.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// Track starts timing step and returns the function that records it.
//
//	done := metrics.Track("etl", "transform")
//	err := transform()
//	done(err)
func Track(job, step string) func(error) {
	began := time.Now()
	return func(err error) { RecordStep(job, step, err, time.Since(began)) }
}

// RecordRow adds delta to the record counter for kind. Kinds used by the
// pipeline: extracted, cleaned, dropped, inserted, unresolved.
// Non-positive deltas are ignored.
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordBatches counts bulk-insert batches sent to the warehouse.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(BatchesTotal, float64(delta), Labels{"job": job})
}

// RecordQuality records the null ratio and duplicate count measured for one
// dataset.
func RecordQuality(job, dataset string, nullRatio float64, duplicates int64) {
	lbls := Labels{"job": job, "dataset": dataset}
	b := current()
	b.ObserveHistogram(NullRatio, nullRatio, lbls)
	if duplicates > 0 {
		b.IncCounter(DuplicateRecords, float64(duplicates), lbls)
	}
}
