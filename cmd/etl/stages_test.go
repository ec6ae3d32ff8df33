package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/afonsolelis/etl-completa-airflow/internal/config"
	"github.com/afonsolelis/etl-completa-airflow/internal/extract"
	"github.com/afonsolelis/etl-completa-airflow/internal/quality"
	"github.com/afonsolelis/etl-completa-airflow/internal/records"
	"github.com/afonsolelis/etl-completa-airflow/internal/storage"
)

const (
	rawSalesCSV = `sale_id,customer_id,product_id,quantity,unit_price,total_amount,sale_date,customer_name,product_name,category
1,1,10,2,20.00,40.00,2024-06-01,Ana Silva,Mouse,Peripherals
2,2,11,1,300,280,2024-06-01,Bruno Costa,Desk,Furniture
3,1,10,1,20,20,2024-06-03,Ana Silva,Mouse,Peripherals
4,1,10,0,20,0,2024-06-03,Ana Silva,Mouse,Peripherals
`
	rawCustomersCSV = `customer_id,customer_name,email,phone,city,country,registration_date,last_purchase_date
1,ana silva,ANA@X.COM,(11) 9999-0000,lisboa,portugal,2023-01-05,2024-06-03
2,bruno costa,bad-email,912 345 678,porto,portugal,2023-03-01,2024-01-10
`
	rawProductsCSV = `product_id,product_name,category,brand,unit_price,cost_price
10,mouse,peripherals,acme,20,12
11,desk,furniture,oak,300,180
`
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// newTestRunner returns a runner over a temp workspace with a SQLite
// warehouse file and the raw extracts already in place.
func newTestRunner(t *testing.T) *runner {
	t.Helper()
	dir := t.TempDir()
	p := config.Default()
	p.Paths = config.Paths{RawDir: filepath.Join(dir, "raw"), ProcessedDir: filepath.Join(dir, "processed")}
	p.Warehouse.Kind = storage.SQLite
	p.Warehouse.DSN = filepath.Join(dir, "warehouse.db")
	p.Warehouse.BatchSize = 2
	start, _ := config.ParseDate("2024-06-01")
	end, _ := config.ParseDate("2024-06-30")
	p.Warehouse.TimeRange = config.TimeRange{Start: start, End: end}

	writeFile(t, filepath.Join(p.Paths.RawDir, extract.SalesFile), rawSalesCSV)
	writeFile(t, filepath.Join(p.Paths.RawDir, extract.CustomersFile), rawCustomersCSV)
	writeFile(t, filepath.Join(p.Paths.RawDir, extract.ProductsFile), rawProductsCSV)

	asOf := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	r := newRunner(p, "run-e2e", asOf)
	r.now = func() time.Time { return asOf.Add(12 * time.Hour) }
	return r
}

func count(t *testing.T, dsn, query string) int64 {
	t.Helper()
	ctx := context.Background()
	db, err := storage.Open(ctx, storage.Config{Kind: storage.SQLite, DSN: dsn})
	if err != nil {
		t.Fatalf("open warehouse: %v", err)
	}
	defer db.Close()
	rows, err := db.Query(ctx, query)
	if err != nil {
		t.Fatalf("%s: %v", query, err)
	}
	n, ok := records.Int(rows[0][0])
	if !ok {
		t.Fatalf("%s: got %#v", query, rows[0][0])
	}
	return n
}

func TestStagesFor(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{"all", stageOrder, false},
		{"", stageOrder, false},
		{" Load ", []string{StageLoad}, false},
		{"validate", []string{StageValidate}, false},
		{"deploy", nil, true},
	}
	for _, c := range cases {
		got, err := stagesFor(c.in)
		if (err != nil) != c.wantErr {
			t.Fatalf("stagesFor(%q) err=%v, wantErr=%v", c.in, err, c.wantErr)
		}
		if !c.wantErr && !reflect.DeepEqual(got, c.want) {
			t.Fatalf("stagesFor(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

/*
TestRun_TransformLoadValidate drives the three local stages end to end over
a SQLite warehouse file, then reruns the load to check that it replaces
rather than appends.
*/
func TestRun_TransformLoadValidate(t *testing.T) {
	r := newTestRunner(t)
	ctx := context.Background()

	if err := r.Run(ctx, []string{StageTransform, StageLoad, StageValidate}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, f := range []string{SalesCleanFile, CustomersCleanFile, ProductsCleanFile, "product_summary.csv", "customer_summary.csv", "daily_summary.csv", ReportFile} {
		if _, err := os.Stat(r.processed(f)); err != nil {
			t.Fatalf("missing artifact %s: %v", f, err)
		}
	}
	rejected, err := records.ReadCSVFile(ctx, r.processed(filepath.Join(RejectsDir, "sales_rejects.csv")), "rejects")
	if err != nil || rejected.Len() != 1 || rejected.Rows[0]["reason"] == nil {
		t.Fatalf("rejects=%+v err=%v", rejected, err)
	}

	reports, err := quality.ReadReports(ctx, r.processed(ReportFile))
	if err != nil || len(reports) != 3 {
		t.Fatalf("reports=%+v err=%v", reports, err)
	}
	if reports[0].Dataset != "sales" || reports[0].TotalRecords != 3 {
		t.Fatalf("sales report=%+v", reports[0])
	}

	dsn := r.p.Warehouse.DSN
	checks := []struct {
		query string
		want  int64
	}{
		{"SELECT COUNT(*) FROM dim_time", 30},
		{"SELECT COUNT(*) FROM dim_customer", 2},
		{"SELECT COUNT(*) FROM dim_product", 2},
		{"SELECT COUNT(*) FROM fact_sales", 3},
		{"SELECT COUNT(*) FROM agg_daily_sales", 2},
		{"SELECT COUNT(*) FROM etl_audit_log WHERE status = 'SUCCESS' AND run_id = 'run-e2e'", 3},
	}
	for _, c := range checks {
		if got := count(t, dsn, c.query); got != c.want {
			t.Fatalf("%s = %d, want %d", c.query, got, c.want)
		}
	}

	if err := r.Run(ctx, []string{StageLoad}); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if got := count(t, dsn, "SELECT COUNT(*) FROM fact_sales"); got != 3 {
		t.Fatalf("fact_sales after rerun = %d, want 3", got)
	}
	if got := count(t, dsn, "SELECT COUNT(*) FROM etl_audit_log"); got != 6 {
		t.Fatalf("audit entries after rerun = %d, want 6", got)
	}
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	r := newTestRunner(t)
	if err := os.Remove(filepath.Join(r.p.Paths.RawDir, extract.CustomersFile)); err != nil {
		t.Fatalf("remove: %v", err)
	}
	err := r.Run(context.Background(), []string{StageTransform, StageLoad})
	if err == nil || !strings.HasPrefix(err.Error(), "stage transform:") {
		t.Fatalf("err=%v; want transform failure", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v; want os.ErrNotExist in chain", err)
	}
	if _, statErr := os.Stat(r.p.Warehouse.DSN); !os.IsNotExist(statErr) {
		t.Fatalf("load ran after transform failure: stat=%v", statErr)
	}
}

func TestValidate_GateFailures(t *testing.T) {
	r := newTestRunner(t)
	ctx := context.Background()

	var ge *quality.GateError
	err := r.validate(ctx)
	if !errors.As(err, &ge) || len(ge.Missing) != 4 {
		t.Fatalf("missing artifacts: err=%v", err)
	}

	for _, f := range []string{SalesCleanFile, CustomersCleanFile, ProductsCleanFile} {
		writeFile(t, r.processed(f), "id\n1\n")
	}
	reports := []quality.Report{
		{Dataset: "sales", TotalRecords: 100, NullValues: 10},
		{Dataset: "customers", TotalRecords: 100, NullValues: 11},
	}
	if err := quality.WriteReports(r.processed(ReportFile), reports); err != nil {
		t.Fatalf("WriteReports: %v", err)
	}
	err = r.validate(ctx)
	if !errors.As(err, &ge) || len(ge.Violations) != 1 || ge.Violations[0].Dataset != "customers" {
		t.Fatalf("null gate: err=%v", err)
	}

	r.p.Quality.MaxNullRatio = 0.2
	if err := r.validate(ctx); err != nil {
		t.Fatalf("relaxed gate: %v", err)
	}
}

type fakeSource struct {
	closed bool
}

func (f *fakeSource) Sales(_ context.Context, from, _ time.Time) (records.Table, error) {
	t := records.New("sales_data", "sale_id", "sale_date")
	t.Rows = []records.Record{{"sale_id": int64(1), "sale_date": from}}
	return t, nil
}

func (f *fakeSource) Customers(context.Context) (records.Table, error) {
	return records.New("customers_data", "customer_id"), nil
}

func (f *fakeSource) Products(context.Context) (records.Table, error) {
	return records.New("products_data", "product_id"), nil
}

func (f *fakeSource) Close() { f.closed = true }

func TestExtract_UsesSourceAndSkipsDisabledAPI(t *testing.T) {
	r := newTestRunner(t)
	r.p.Source.DSN = "postgresql://fake"
	r.p.API.Disabled = true

	src := &fakeSource{}
	var gotDSN string
	prev := openSourceFn
	openSourceFn = func(_ context.Context, dsn string) (sourceDB, error) {
		gotDSN = dsn
		return src, nil
	}
	t.Cleanup(func() { openSourceFn = prev })

	if err := r.Run(context.Background(), []string{StageExtract}); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if gotDSN != "postgresql://fake" || !src.closed {
		t.Fatalf("dsn=%q closed=%v", gotDSN, src.closed)
	}
	sales, err := records.ReadCSVFile(context.Background(), r.raw(extract.SalesFile), "sales")
	if err != nil || sales.Len() != 1 || sales.Rows[0]["sale_date"] != "2024-06-29" {
		t.Fatalf("sales=%+v err=%v", sales, err)
	}
	if _, err := os.Stat(r.raw(extract.UsersFile)); !os.IsNotExist(err) {
		t.Fatalf("users feed written with api disabled: %v", err)
	}
}

func TestExtract_RequiresDSN(t *testing.T) {
	t.Parallel()
	r := newRunner(config.Default(), "r", time.Now())
	if err := r.extract(context.Background()); err == nil {
		t.Fatalf("expected error for empty source dsn")
	}
}
