// Package rejects records rows excluded by validity filters to
// <dir>/<dataset>_rejects.csv, one file per dataset.
package rejects

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/afonsolelis/etl-completa-airflow/internal/records"
	"github.com/afonsolelis/etl-completa-airflow/internal/transformer"
)

type datasetFile struct {
	f       *os.File
	w       *csv.Writer
	columns []string
	reasons map[string]int
}

// Sink is safe for concurrent use. Files are created on the first reject
// of a dataset; datasets without rejects leave no file behind.
type Sink struct {
	dir string

	mu    sync.Mutex
	files map[string]*datasetFile
	err   error
}

// New returns a sink writing under dir.
func New(dir string) *Sink {
	return &Sink{dir: dir, files: map[string]*datasetFile{}}
}

// Path returns the reject file of dataset.
func (s *Sink) Path(dataset string) string {
	return filepath.Join(s.dir, dataset+"_rejects.csv")
}

// Reject appends one row. The header is "reason" followed by the sorted
// column names of the first rejected row. Write errors are kept and
// returned by Close.
func (s *Sink) Reject(dataset string, r transformer.Rejected) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	df, ok := s.files[dataset]
	if !ok {
		var err error
		if df, err = s.open(dataset, r.Record); err != nil {
			s.err = err
			return
		}
		s.files[dataset] = df
	}
	df.reasons[r.Reason]++

	row := make([]string, 0, len(df.columns)+1)
	row = append(row, r.Reason)
	for _, c := range df.columns {
		row = append(row, records.FormatValue(r.Record[c]))
	}
	if err := df.w.Write(row); err != nil {
		s.err = fmt.Errorf("rejects: write %s: %w", dataset, err)
	}
}

func (s *Sink) open(dataset string, first records.Record) (*datasetFile, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("rejects: create dir %s: %w", s.dir, err)
	}
	path := s.Path(dataset)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("rejects: open %s: %w", path, err)
	}
	cols := make([]string, 0, len(first))
	for c := range first {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	w := csv.NewWriter(f)
	if err := w.Write(append([]string{"reason"}, cols...)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rejects: header %s: %w", path, err)
	}
	return &datasetFile{f: f, w: w, columns: cols, reasons: map[string]int{}}, nil
}

// Counts returns a copy of the per-reason counters of dataset.
func (s *Sink) Counts(dataset string) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]int{}
	if df, ok := s.files[dataset]; ok {
		for k, v := range df.reasons {
			out[k] = v
		}
	}
	return out
}

// Close flushes and closes every file and reports the first write error.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	errs := []error{s.err}
	for _, df := range s.files {
		df.w.Flush()
		errs = append(errs, df.w.Error(), df.f.Close())
	}
	s.files = map[string]*datasetFile{}
	return errors.Join(errs...)
}
