package warehouse

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/afonsolelis/etl-completa-airflow/internal/records"
)

// Input carries everything one load run writes.
type Input struct {
	Customers      records.Table
	Products       records.Table
	Sales          records.Table
	Daily          records.Table
	ProductSummary records.Table
	// Start and End bound the time dimension. The range is widened to cover
	// every sale date so facts always resolve their date.
	Start, End time.Time
}

// Result summarizes a completed Load.
type Result struct {
	TimeRows int64
	Fact     FactResult
}

// Load creates the schema and runs the time dimension, dimension, fact and
// aggregation loads in order, stopping at the first failure.
func (l *Loader) Load(ctx context.Context, in Input) (Result, error) {
	var res Result
	if err := l.CreateSchema(ctx); err != nil {
		return res, err
	}
	var err error
	if start, end := TimeRange(in.Start, in.End, in.Sales); start.IsZero() || end.IsZero() {
		log.Printf("loader: no time range configured and no sales; dim_time left unchanged")
	} else if res.TimeRows, err = l.LoadTimeDimension(ctx, start, end); err != nil {
		return res, err
	}
	if err := l.LoadDimensions(ctx, in.Customers, in.Products); err != nil {
		return res, err
	}
	if res.Fact, err = l.LoadFact(ctx, in.Sales); err != nil {
		return res, err
	}
	if err := l.LoadAggregations(ctx, in.Daily, in.ProductSummary); err != nil {
		return res, err
	}
	return res, nil
}

// TimeRange returns [start, end] widened to include every sale_date in
// sales. Zero bounds are replaced by the sales span.
func TimeRange(start, end time.Time, sales records.Table) (time.Time, time.Time) {
	for _, r := range sales.Rows {
		d, ok := records.Time(r["sale_date"])
		if !ok {
			continue
		}
		d = dateOnly(d)
		if start.IsZero() || d.Before(start) {
			start = d
		}
		if end.IsZero() || d.After(end) {
			end = d
		}
	}
	return start, end
}

// String renders a Result for logs.
func (r Result) String() string {
	return fmt.Sprintf("time_rows=%d facts=%d unresolved=%d", r.TimeRows, r.Fact.Inserted, r.Fact.Unresolved)
}
