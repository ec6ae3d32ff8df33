// Package warehouse loads cleaned and summarized tables into the sales star
// schema: dim_time, dim_customer, dim_product, fact_sales, the two aggregate
// tables and etl_audit_log.
//
// Every table is replaced inside its own transaction (clear + insert), so a
// failed stage leaves the previous contents of that table in place. The
// dimension, fact and aggregation stages each write one audit entry per call,
// after their transactions have finished.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/afonsolelis/etl-completa-airflow/internal/metrics"
	"github.com/afonsolelis/etl-completa-airflow/internal/storage"
)

// Audited stage names.
const (
	StageDimensions   = "load_dimensions"
	StageFact         = "load_fact_sales"
	StageAggregations = "load_aggregations"
)

// Status of a loader stage.
type Status string

const (
	Pending Status = "PENDING"
	Running Status = "RUNNING"
	Success Status = "SUCCESS"
	Failed  Status = "FAILED"
)

// StageError reports a failed audited stage. Err joins the stage failure with
// any failure to write its audit entry.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// Options tune a Loader. Zero values select defaults.
type Options struct {
	// RunID is stamped on every audit entry.
	RunID string
	// Job labels metrics; defaults to "warehouse".
	Job       string
	BatchSize int
	// Now is the clock used for audit timestamps.
	Now func() time.Time
}

// Loader writes to one warehouse database.
type Loader struct {
	db   storage.DB
	d    dialect
	opts Options

	mu     sync.Mutex
	stages map[string]Status
}

// New returns a Loader for db. The dialect is taken from db.Dialect().
func New(db storage.DB, opts Options) (*Loader, error) {
	if db == nil {
		return nil, errors.New("warehouse: nil db")
	}
	d, err := dialectFor(db.Dialect())
	if err != nil {
		return nil, err
	}
	if opts.Job == "" {
		opts.Job = "warehouse"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = storage.DefaultBatchSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	l := &Loader{db: db, d: d, opts: opts, stages: map[string]Status{}}
	for _, s := range []string{StageDimensions, StageFact, StageAggregations} {
		l.stages[s] = Pending
	}
	return l, nil
}

// CreateSchema creates every warehouse table that does not exist yet.
func (l *Loader) CreateSchema(ctx context.Context) error {
	began := l.now()
	var err error
	for _, stmt := range l.d.ddl {
		if err = l.db.Exec(ctx, stmt); err != nil {
			err = fmt.Errorf("create schema (%s): %w", l.d.name, err)
			break
		}
	}
	l.observe("create_schema", err, began, 0)
	return err
}

// Stages returns a snapshot of the audited stage states.
func (l *Loader) Stages() map[string]Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]Status, len(l.stages))
	for k, v := range l.stages {
		out[k] = v
	}
	return out
}

func (l *Loader) setStage(name string, s Status) {
	l.mu.Lock()
	l.stages[name] = s
	l.mu.Unlock()
}

// runStage drives one audited stage: RUNNING, fn, audit entry, then SUCCESS
// or FAILED. The audit entry is written whatever fn returned.
func (l *Loader) runStage(ctx context.Context, name string, fn func() (int64, error)) error {
	l.setStage(name, Running)
	began := l.now()
	n, err := fn()
	ended := l.now()

	status, msg := Success, ""
	if err != nil {
		status, msg, n = Failed, err.Error(), 0
	}
	if aerr := l.audit(ctx, name, began, ended, status, n, msg); aerr != nil {
		log.Printf("loader: audit write failed stage=%s err=%v", name, aerr)
		err = errors.Join(err, fmt.Errorf("audit: %w", aerr))
		status = Failed
	}
	l.setStage(name, status)
	l.observe(name, err, began, n)
	if err != nil {
		return &StageError{Stage: name, Err: err}
	}
	return nil
}

var auditColumns = []string{"run_id", "process_name", "start_time", "end_time", "status", "records_processed", "error_message"}

func (l *Loader) audit(ctx context.Context, process string, start, end time.Time, status Status, n int64, msg string) error {
	var errMsg any
	if msg != "" {
		errMsg = msg
	}
	row := []any{l.opts.RunID, process, start.UTC(), end.UTC(), string(status), n, errMsg}
	return storage.WithTx(ctx, l.db, func(tx storage.Tx) error {
		_, err := tx.CopyInto(ctx, TableAuditLog, auditColumns, [][]any{row})
		return err
	})
}

// replace clears table and inserts rows in tx. Dependent fact rows are removed
// first when the table is referenced by fact_sales.
func (l *Loader) replace(ctx context.Context, tx storage.Tx, table string, columns []string, rows [][]any) (int64, error) {
	if table != TableFactSales && referencedByFact(table) {
		if err := tx.Exec(ctx, "DELETE FROM "+TableFactSales); err != nil {
			return 0, fmt.Errorf("clear dependent facts: %w", err)
		}
	}
	for _, stmt := range l.d.clear(table, hasIdentity(table)) {
		if err := tx.Exec(ctx, stmt); err != nil {
			return 0, fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return l.copy(ctx, tx, table, columns, rows)
}

func (l *Loader) copy(ctx context.Context, tx storage.Tx, table string, columns []string, rows [][]any) (int64, error) {
	var batches int64
	n, err := storage.CopyBatches(ctx, table, columns, rows, l.opts.BatchSize,
		func(ctx context.Context, cols []string, batch [][]any) (int64, error) {
			batches++
			return tx.CopyInto(ctx, table, cols, batch)
		})
	metrics.RecordBatches(l.opts.Job, batches)
	if err != nil {
		return n, fmt.Errorf("insert %s: %w", table, err)
	}
	return n, nil
}

func (l *Loader) now() time.Time { return l.opts.Now() }

func (l *Loader) observe(step string, err error, began time.Time, n int64) {
	d := l.now().Sub(began)
	metrics.RecordStep(l.opts.Job, step, err, d)
	if err != nil {
		log.Printf("loader: step=%s run_id=%s failed after %s: %v", step, l.opts.RunID, d, err)
		return
	}
	metrics.RecordRow(l.opts.Job, "inserted", n)
	log.Printf("loader: step=%s run_id=%s rows=%d elapsed=%s", step, l.opts.RunID, n, d)
}

func referencedByFact(table string) bool {
	switch table {
	case TableCustomer, TableProduct, TableTime:
		return true
	}
	return false
}

func hasIdentity(table string) bool {
	switch table {
	case TableCustomer, TableProduct, TableFactSales, TableAuditLog:
		return true
	}
	return false
}
