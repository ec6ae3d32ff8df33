package quality

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/afonsolelis/etl-completa-airflow/internal/records"
)

var asOf = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

// tableWithNulls builds n rows of three columns with nulls null cells in
// column "b".
func tableWithNulls(n, nulls int) records.Table {
	t := records.New("sales", "a", "b", "c")
	for i := 0; i < n; i++ {
		var b any = "x"
		if i < nulls {
			b = nil
		}
		t.Rows = append(t.Rows, records.Record{"a": int64(i), "b": b, "c": 1.5})
	}
	return t
}

func TestValidate_Counts(t *testing.T) {
	t.Parallel()
	tb := records.New("customers", "id", "name", "amount")
	tb.Rows = []records.Record{
		{"id": int64(1), "name": "Ana", "amount": 10.0},
		{"id": int64(2), "name": nil, "amount": 5.0},
		{"id": int64(1), "name": "Ana", "amount": 10.0},
		{"id": int64(2), "name": nil, "amount": 5.0},
		{"id": "1", "name": "Ana", "amount": 10.0},
		{"id": int64(3), "amount": nil},
	}
	rep := Validate(tb, "customers", asOf)
	if rep.Dataset != "customers" || rep.TotalRecords != 6 || rep.TotalColumns != 3 {
		t.Fatalf("header fields: %+v", rep)
	}
	if rep.NullValues != 4 {
		t.Fatalf("null_values=%d; want 4", rep.NullValues)
	}
	if rep.DuplicateRecords != 2 {
		t.Fatalf("duplicate_records=%d; want 2", rep.DuplicateRecords)
	}
	want := map[string]float64{"id": 100, "name": 50, "amount": 83.33}
	for k, v := range want {
		if rep.ColumnCompleteness[k] != v {
			t.Fatalf("completeness[%s]=%v; want %v", k, rep.ColumnCompleteness[k], v)
		}
	}
	if !rep.ValidationTimestamp.Equal(asOf) {
		t.Fatalf("timestamp=%v; want %v", rep.ValidationTimestamp, asOf)
	}
}

func TestValidate_DuplicateTimesAcrossZones(t *testing.T) {
	t.Parallel()
	tb := records.New("d", "at")
	tb.Rows = []records.Record{
		{"at": asOf},
		{"at": asOf.In(time.FixedZone("BRT", -3*3600))},
		{"at": asOf.Add(time.Second)},
	}
	if got := Validate(tb, "d", asOf).DuplicateRecords; got != 1 {
		t.Fatalf("duplicates=%d; want 1 (same instant in another zone)", got)
	}
}

func TestValidate_EmptyDataset(t *testing.T) {
	t.Parallel()
	rep := Validate(records.New("empty", "a", "b"), "empty", asOf)
	if rep.TotalRecords != 0 || rep.NullValues != 0 || rep.DuplicateRecords != 0 {
		t.Fatalf("got %+v", rep)
	}
	if len(rep.ColumnCompleteness) != 2 || rep.ColumnCompleteness["a"] != 0 || rep.ColumnCompleteness["b"] != 0 {
		t.Fatalf("completeness=%v; want zeros", rep.ColumnCompleteness)
	}
	if err := Gate([]Report{rep}, 0); err != nil {
		t.Fatalf("empty dataset should pass the gate: %v", err)
	}
}

/*
TestGate_NullThreshold is the 100-row scenario: 15 nulls in one column fail
the gate, 9 pass, and exactly 10 sits on the limit and passes.
*/
func TestGate_NullThreshold(t *testing.T) {
	t.Parallel()
	tests := []struct {
		nulls   int
		wantErr bool
	}{
		{15, true},
		{9, false},
		{10, false},
		{11, true},
	}
	for _, tc := range tests {
		rep := Validate(tableWithNulls(100, tc.nulls), "sales", asOf)
		if rep.NullValues != tc.nulls || rep.TotalRecords != 100 {
			t.Fatalf("report=%+v", rep)
		}
		err := Gate([]Report{rep}, DefaultMaxNullRatio)
		if (err != nil) != tc.wantErr {
			t.Fatalf("nulls=%d err=%v; wantErr=%v", tc.nulls, err, tc.wantErr)
		}
		if err == nil {
			continue
		}
		var ge *GateError
		if !errors.As(err, &ge) || len(ge.Violations) != 1 || ge.Violations[0].Dataset != "sales" {
			t.Fatalf("err=%#v; want one sales violation", err)
		}
	}
}

func TestGate_CustomRatio(t *testing.T) {
	t.Parallel()
	rep := Validate(tableWithNulls(100, 15), "sales", asOf)
	if err := Gate([]Report{rep}, 0.2); err != nil {
		t.Fatalf("ratio 0.2 should pass 15/100: %v", err)
	}
}

func TestCheckArtifacts(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	present := filepath.Join(dir, "sales_clean.csv")
	if err := os.WriteFile(present, []byte("a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	absent := filepath.Join(dir, "customers_clean.csv")

	if err := CheckArtifacts(context.Background(), present); err != nil {
		t.Fatalf("present artifact: %v", err)
	}
	err := CheckArtifacts(context.Background(), present, absent)
	var ge *GateError
	if !errors.As(err, &ge) || len(ge.Missing) != 1 || ge.Missing[0] != absent {
		t.Fatalf("err=%v; want missing %s", err, absent)
	}
}

func TestReportsRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "processed", "data_quality_report.json")
	reps := []Report{
		Validate(tableWithNulls(10, 1), "sales", asOf),
		Validate(records.New("products", "x"), "products", asOf),
	}
	if err := WriteReports(path, reps); err != nil {
		t.Fatalf("WriteReports: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"dataset"`, `"total_records"`, `"total_columns"`, `"null_values"`, `"duplicate_records"`, `"column_completeness"`, `"validation_timestamp"`} {
		if !bytes.Contains(raw, []byte(key)) {
			t.Fatalf("report json missing %s:\n%s", key, raw)
		}
	}
	got, err := ReadReports(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadReports: %v", err)
	}
	if len(got) != 2 || got[0].NullValues != 1 || got[1].Dataset != "products" || !got[0].ValidationTimestamp.Equal(asOf) {
		t.Fatalf("decoded=%+v", got)
	}
}
