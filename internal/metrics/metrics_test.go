package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeBackend is an in-memory Backend for tests.
type fakeBackend struct {
	mu sync.Mutex

	counters   []call
	histograms []call
	flushCount int
}

type call struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, call{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histograms = append(f.histograms, call{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCount++
	return nil
}

// install swaps in a fake backend for the duration of the test. Tests using
// it must not run in parallel.
func install(t *testing.T) *fakeBackend {
	t.Helper()
	orig := current()
	fb := &fakeBackend{}
	SetBackend(fb)
	t.Cleanup(func() { SetBackend(orig) })
	return fb
}

func TestRecordStep_SuccessAndFailure(t *testing.T) {
	fb := install(t)

	RecordStep("etl", "transform", nil, 2*time.Second)
	RecordStep("warehouse", "load_fact_sales", errors.New("boom"), 1500*time.Millisecond)

	if len(fb.counters) != 2 || len(fb.histograms) != 2 {
		t.Fatalf("calls: counters=%d histograms=%d; want 2 each", len(fb.counters), len(fb.histograms))
	}
	c0 := fb.counters[0]
	if c0.name != StepTotal || c0.value != 1 {
		t.Fatalf("counter[0]=%#v; want %s delta 1", c0, StepTotal)
	}
	if c0.labels["job"] != "etl" || c0.labels["step"] != "transform" || c0.labels["status"] != "success" {
		t.Fatalf("counter[0].labels=%v", c0.labels)
	}
	if h := fb.histograms[0]; h.name != StepDuration || h.value < 1.999 || h.value > 2.001 {
		t.Fatalf("hist[0]=%#v; want ~2s", h)
	}
	if got := fb.counters[1].labels["status"]; got != "failure" {
		t.Fatalf("counter[1] status=%q; want failure", got)
	}
	if h := fb.histograms[1]; h.value < 1.499 || h.value > 1.501 {
		t.Fatalf("hist[1].value=%v; want ~1.5", h.value)
	}
}

func TestTrack_RecordsOnce(t *testing.T) {
	fb := install(t)

	done := Track("etl", "extract")
	done(nil)

	if len(fb.counters) != 1 || fb.counters[0].labels["step"] != "extract" {
		t.Fatalf("counters=%#v; want one extract step", fb.counters)
	}
	if fb.histograms[0].value < 0 {
		t.Fatalf("negative duration %v", fb.histograms[0].value)
	}
}

func TestRecordRowAndBatches(t *testing.T) {
	fb := install(t)

	RecordRow("etl", "cleaned", 3)
	RecordRow("etl", "dropped", 0)
	RecordRow("warehouse", "inserted", 5)
	RecordBatches("warehouse", 2)
	RecordBatches("warehouse", -1)

	want := []call{
		{RecordsTotal, 3, Labels{"job": "etl", "kind": "cleaned"}},
		{RecordsTotal, 5, Labels{"job": "warehouse", "kind": "inserted"}},
		{BatchesTotal, 2, Labels{"job": "warehouse"}},
	}
	if len(fb.counters) != len(want) {
		t.Fatalf("counters=%d; want %d (%#v)", len(fb.counters), len(want), fb.counters)
	}
	for i, w := range want {
		got := fb.counters[i]
		if got.name != w.name || got.value != w.value {
			t.Fatalf("counter[%d]=%#v; want %#v", i, got, w)
		}
		for k, v := range w.labels {
			if got.labels[k] != v {
				t.Fatalf("counter[%d].labels[%s]=%q; want %q", i, k, got.labels[k], v)
			}
		}
	}
}

func TestRecordQuality(t *testing.T) {
	fb := install(t)

	RecordQuality("etl", "sales", 0.25, 0)
	RecordQuality("etl", "customers", 0, 4)

	if len(fb.histograms) != 2 || fb.histograms[0].name != NullRatio || fb.histograms[0].value != 0.25 {
		t.Fatalf("histograms=%#v", fb.histograms)
	}
	if len(fb.counters) != 1 || fb.counters[0].name != DuplicateRecords || fb.counters[0].labels["dataset"] != "customers" {
		t.Fatalf("counters=%#v; want one duplicate counter for customers", fb.counters)
	}
}

func TestSetBackendAndFlush(t *testing.T) {
	fb := install(t)

	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if fb.flushCount != 1 {
		t.Fatalf("flushCount=%d; want 1", fb.flushCount)
	}
	SetBackend(nil)
	if current() != Backend(fb) {
		t.Fatal("SetBackend(nil) replaced the backend")
	}
}
