package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/afonsolelis/etl-completa-airflow/internal/cleaner"
	"github.com/afonsolelis/etl-completa-airflow/internal/config"
	"github.com/afonsolelis/etl-completa-airflow/internal/extract"
	"github.com/afonsolelis/etl-completa-airflow/internal/metrics"
	"github.com/afonsolelis/etl-completa-airflow/internal/quality"
	"github.com/afonsolelis/etl-completa-airflow/internal/records"
	"github.com/afonsolelis/etl-completa-airflow/internal/rejects"
	"github.com/afonsolelis/etl-completa-airflow/internal/storage"
	"github.com/afonsolelis/etl-completa-airflow/internal/summary"
	"github.com/afonsolelis/etl-completa-airflow/internal/transformer/builtin"
	"github.com/afonsolelis/etl-completa-airflow/internal/warehouse"
)

// Stage names accepted by -stage.
const (
	StageExtract   = "extract"
	StageTransform = "transform"
	StageLoad      = "load"
	StageValidate  = "validate"
	StageAll       = "all"
)

var stageOrder = []string{StageExtract, StageTransform, StageLoad, StageValidate}

// Processed artifact file names.
const (
	SalesCleanFile     = "sales_clean.csv"
	CustomersCleanFile = "customers_clean.csv"
	ProductsCleanFile  = "products_clean.csv"
	ReportFile         = "data_quality_report.json"
	RejectsDir         = "rejects"
)

// sourceDB is the operational database as the extract stage sees it.
type sourceDB interface {
	extract.SalesSource
	Close()
}

// Function variables used to introduce test seams.
// In production these point to real implementations; tests can override them.
var (
	openSourceFn = func(ctx context.Context, dsn string) (sourceDB, error) {
		return extract.OpenDB(ctx, dsn)
	}

	openWarehouseFn = storage.Open
)

// stagesFor expands a -stage value into the ordered stage list.
func stagesFor(name string) ([]string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == StageAll {
		return append([]string(nil), stageOrder...), nil
	}
	for _, s := range stageOrder {
		if s == name {
			return []string{s}, nil
		}
	}
	return nil, fmt.Errorf("unknown stage %q; want one of %s, %s", name, strings.Join(stageOrder, ", "), StageAll)
}

// runner executes stages of one pipeline run.
type runner struct {
	p     config.Pipeline
	runID string
	asOf  time.Time
	now   func() time.Time
}

func newRunner(p config.Pipeline, runID string, asOf time.Time) *runner {
	return &runner{p: p, runID: runID, asOf: asOf, now: time.Now}
}

// Run executes stages in order and stops at the first failure.
func (r *runner) Run(ctx context.Context, stages []string) error {
	for _, s := range stages {
		began := time.Now()
		log.Printf("pipeline: stage=%s start run_id=%s", s, r.runID)
		done := metrics.Track(r.p.Job, "stage_"+s)
		err := r.stage(ctx, s)
		done(err)
		if err != nil {
			return fmt.Errorf("stage %s: %w", s, err)
		}
		log.Printf("pipeline: stage=%s ok elapsed=%s", s, time.Since(began).Truncate(time.Millisecond))
	}
	return nil
}

func (r *runner) stage(ctx context.Context, name string) error {
	switch name {
	case StageExtract:
		return r.extract(ctx)
	case StageTransform:
		return r.transform(ctx)
	case StageLoad:
		return r.load(ctx)
	case StageValidate:
		return r.validate(ctx)
	default:
		return fmt.Errorf("unknown stage %q", name)
	}
}

func (r *runner) raw(file string) string       { return filepath.Join(r.p.Paths.RawDir, file) }
func (r *runner) processed(file string) string { return filepath.Join(r.p.Paths.ProcessedDir, file) }

func (r *runner) extract(ctx context.Context) error {
	if r.p.Source.DSN == "" {
		return errors.New("source dsn is empty")
	}
	db, err := openSourceFn(ctx, r.p.Source.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	var feeds extract.FeedSource
	if !r.p.API.Disabled {
		feeds = extract.NewAPI(r.p.API.BaseURL, r.p.API.Key, time.Duration(r.p.API.TimeoutSeconds)*time.Second)
	}
	res, err := extract.Run(ctx, db, feeds, extract.Options{
		RawDir: r.p.Paths.RawDir,
		From:   r.p.Source.SalesFrom.Time,
		To:     r.p.Source.SalesTo.Time,
		Now:    r.now,
		Job:    r.p.Job,
	})
	if err != nil {
		return err
	}
	for file, n := range res {
		log.Printf("extract: wrote %s rows=%d", r.raw(file), n)
	}
	return nil
}

// transform cleans the raw extracts, summarizes sales and writes the
// processed artifacts plus the quality report.
func (r *runner) transform(ctx context.Context) (err error) {
	rawSales, err := records.ReadCSVFile(ctx, r.raw(extract.SalesFile), cleaner.Sales)
	if err != nil {
		return err
	}
	rawCustomers, err := records.ReadCSVFile(ctx, r.raw(extract.CustomersFile), cleaner.Customers)
	if err != nil {
		return err
	}
	rawProducts, err := records.ReadCSVFile(ctx, r.raw(extract.ProductsFile), cleaner.Products)
	if err != nil {
		return err
	}

	sink := rejects.New(r.processed(RejectsDir))
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("rejects: %w", cerr))
		}
	}()
	c := cleaner.Cleaner{Reject: sink.Reject}

	sales, sst, err := c.Sales(rawSales)
	if err != nil {
		return err
	}
	customers, cst, err := c.Customers(rawCustomers, r.asOf)
	if err != nil {
		return err
	}
	products, pst, err := c.Products(rawProducts)
	if err != nil {
		return err
	}
	for _, st := range []cleaner.Stats{sst, cst, pst} {
		metrics.RecordRow(r.p.Job, "cleaned", int64(st.Output))
		metrics.RecordRow(r.p.Job, "dropped", int64(st.DroppedTotal()))
	}

	sums, err := summary.Summarize(sales)
	if err != nil {
		return err
	}

	var reports []quality.Report
	for _, t := range []records.Table{sales, customers, products} {
		rep := quality.Validate(t, t.Name, r.asOf)
		metrics.RecordQuality(r.p.Job, rep.Dataset, nullRatio(rep), int64(rep.DuplicateRecords))
		reports = append(reports, rep)
	}

	artifacts := []struct {
		file string
		t    records.Table
	}{
		{SalesCleanFile, sales},
		{CustomersCleanFile, customers},
		{ProductsCleanFile, products},
		{summary.ProductTable + ".csv", sums.Product},
		{summary.CustomerTable + ".csv", sums.Customer},
		{summary.DailyTable + ".csv", sums.Daily},
	}
	for _, a := range artifacts {
		if err := records.WriteCSVFile(r.processed(a.file), a.t); err != nil {
			return err
		}
		log.Printf("transform: wrote %s rows=%d", r.processed(a.file), a.t.Len())
	}
	return quality.WriteReports(r.processed(ReportFile), reports)
}

// nullRatio is null_values over total_records, the quantity the gate bounds.
func nullRatio(rep quality.Report) float64 {
	if rep.TotalRecords == 0 {
		return 0
	}
	return float64(rep.NullValues) / float64(rep.TotalRecords)
}

// readTyped reads a processed artifact and types its cells with types.
func (r *runner) readTyped(ctx context.Context, file, name string, types map[string]string) (records.Table, error) {
	t, err := records.ReadCSVFile(ctx, r.processed(file), name)
	if err != nil {
		return records.Table{}, err
	}
	t.Rows = builtin.Coerce{Types: types, OnError: builtin.OnErrorNull}.Apply(t.Rows)
	return t, nil
}

// load reads the processed artifacts back and loads the warehouse.
func (r *runner) load(ctx context.Context) error {
	in := warehouse.Input{
		Start: r.p.Warehouse.TimeRange.Start.Time,
		End:   r.p.Warehouse.TimeRange.End.Time,
	}
	reads := []struct {
		dst   *records.Table
		file  string
		name  string
		types map[string]string
	}{
		{&in.Sales, SalesCleanFile, cleaner.Sales, cleaner.SalesTypes},
		{&in.Customers, CustomersCleanFile, cleaner.Customers, cleaner.CustomerTypes},
		{&in.Products, ProductsCleanFile, cleaner.Products, cleaner.ProductTypes},
		{&in.Daily, summary.DailyTable + ".csv", summary.DailyTable, summary.DailyTypes},
		{&in.ProductSummary, summary.ProductTable + ".csv", summary.ProductTable, summary.ProductTypes},
	}
	for _, rd := range reads {
		t, err := r.readTyped(ctx, rd.file, rd.name, rd.types)
		if err != nil {
			return err
		}
		*rd.dst = t
	}

	db, err := openWarehouseFn(ctx, storage.Config{Kind: r.p.Warehouse.Kind, DSN: r.p.Warehouse.DSN})
	if err != nil {
		return err
	}
	defer db.Close()

	l, err := warehouse.New(db, warehouse.Options{
		RunID:     r.runID,
		Job:       r.p.Job,
		BatchSize: r.p.Warehouse.BatchSize,
		Now:       r.now,
	})
	if err != nil {
		return err
	}
	res, err := l.Load(ctx, in)
	if err != nil {
		return err
	}
	log.Printf("load: run_id=%s %s", r.runID, res)
	return nil
}

// validate is the pipeline gate: every processed artifact must exist and no
// dataset may exceed the null threshold.
func (r *runner) validate(ctx context.Context) error {
	paths := []string{
		r.processed(SalesCleanFile),
		r.processed(CustomersCleanFile),
		r.processed(ProductsCleanFile),
		r.processed(ReportFile),
	}
	if err := quality.CheckArtifacts(ctx, paths...); err != nil {
		return err
	}
	reports, err := quality.ReadReports(ctx, r.processed(ReportFile))
	if err != nil {
		return err
	}
	return quality.Gate(reports, r.p.Quality.MaxNullRatio)
}
