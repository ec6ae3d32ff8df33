package warehouse

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/afonsolelis/etl-completa-airflow/internal/records"
	"github.com/afonsolelis/etl-completa-airflow/internal/storage"
)

var timeColumns = []string{"date_key", "full_date", "year", "month", "day", "quarter", "day_of_week", "month_name", "day_name", "is_weekend"}

// TimeRows returns one dim_time row per calendar day in [start, end],
// aligned to timeColumns. Names are English; day_of_week counts from
// Monday=0.
func TimeRows(start, end time.Time) [][]any {
	start = dateOnly(start)
	end = dateOnly(end)
	var out [][]any
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		wd := d.Weekday()
		out = append(out, []any{
			records.DateKey(d),
			d,
			int64(d.Year()),
			int64(d.Month()),
			int64(d.Day()),
			records.Quarter(d),
			records.DayOfWeek(d),
			d.Month().String(),
			wd.String(),
			wd == time.Saturday || wd == time.Sunday,
		})
	}
	return out
}

// LoadTimeDimension (re)writes dim_time for every day in [start, end]. Only
// keys inside the range are deleted, so overlapping reruns never duplicate
// rows and days outside the range are kept. Keys still referenced by
// fact_sales are left in place (their attributes are a pure function of the
// date) and only the missing days are inserted.
func (l *Loader) LoadTimeDimension(ctx context.Context, start, end time.Time) (int64, error) {
	if end.Before(start) {
		return 0, fmt.Errorf("time dimension: end %s before start %s", end.Format(records.DateLayout), start.Format(records.DateLayout))
	}
	began := l.now()
	lo, hi := records.DateKey(dateOnly(start)), records.DateKey(dateOnly(end))
	var n int64
	err := storage.WithTx(ctx, l.db, func(tx storage.Tx) error {
		del := fmt.Sprintf("DELETE FROM %s WHERE date_key BETWEEN %d AND %d AND date_key NOT IN (SELECT date_key FROM %s)",
			TableTime, lo, hi, TableFactSales)
		if err := tx.Exec(ctx, del); err != nil {
			return fmt.Errorf("delete range: %w", err)
		}
		kept, err := tx.Query(ctx, fmt.Sprintf("SELECT date_key FROM %s WHERE date_key BETWEEN %d AND %d", TableTime, lo, hi))
		if err != nil {
			return fmt.Errorf("read kept keys: %w", err)
		}
		present := make(map[int64]bool, len(kept))
		for _, r := range kept {
			if k, ok := records.Int(r[0]); ok {
				present[k] = true
			}
		}
		var rows [][]any
		for _, r := range TimeRows(start, end) {
			if !present[r[0].(int64)] {
				rows = append(rows, r)
			}
		}
		n, err = l.copy(ctx, tx, TableTime, timeColumns, rows)
		if len(present) > 0 {
			log.Printf("loader: dim_time kept=%d referenced days in range", len(present))
		}
		return err
	})
	l.observe("load_time_dimension", err, began, n)
	if err != nil {
		return 0, fmt.Errorf("load time dimension: %w", err)
	}
	return n, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
