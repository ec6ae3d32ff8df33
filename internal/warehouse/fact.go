package warehouse

import (
	"context"
	"fmt"
	"log"

	"github.com/afonsolelis/etl-completa-airflow/internal/metrics"
	"github.com/afonsolelis/etl-completa-airflow/internal/records"
	"github.com/afonsolelis/etl-completa-airflow/internal/storage"
)

var factColumns = []string{"sale_id", "customer_key", "product_key", "date_key", "quantity", "unit_price", "total_amount", "is_discounted", "sale_category"}

// FactResult counts the outcome of LoadFact.
type FactResult struct {
	Inserted int64
	// Unresolved sales had a customer, product or date with no dimension row.
	Unresolved int64
}

// LoadFact replaces fact_sales with the cleaned sales. Natural keys are
// resolved against the dimension rows currently loaded; when a natural key
// maps to several rows the highest surrogate key wins. Sales that cannot be
// resolved are skipped and counted.
func (l *Loader) LoadFact(ctx context.Context, sales records.Table) (FactResult, error) {
	var res FactResult
	err := l.runStage(ctx, StageFact, func() (int64, error) {
		if missing := sales.Missing("sale_id", "customer_id", "product_id", "sale_date", "quantity", "unit_price", "total_amount", "is_discounted", "sale_category"); len(missing) > 0 {
			return 0, fmt.Errorf("source %q missing columns %v", sales.Name, missing)
		}
		err := storage.WithTx(ctx, l.db, func(tx storage.Tx) error {
			customers, err := keyMap(ctx, tx, "SELECT customer_id, MAX(customer_key) FROM "+TableCustomer+" GROUP BY customer_id")
			if err != nil {
				return fmt.Errorf("resolve customers: %w", err)
			}
			products, err := keyMap(ctx, tx, "SELECT product_id, MAX(product_key) FROM "+TableProduct+" GROUP BY product_id")
			if err != nil {
				return fmt.Errorf("resolve products: %w", err)
			}
			dates, err := keyMap(ctx, tx, "SELECT date_key, date_key FROM "+TableTime)
			if err != nil {
				return fmt.Errorf("resolve dates: %w", err)
			}

			rows, unresolved := resolveFacts(sales.Rows, customers, products, dates)
			res.Unresolved = unresolved
			res.Inserted, err = l.replace(ctx, tx, TableFactSales, factColumns, rows)
			return err
		})
		if err != nil {
			return 0, err
		}
		return res.Inserted, nil
	})
	if res.Unresolved > 0 {
		log.Printf("loader: fact_sales skipped unresolved=%d", res.Unresolved)
		metrics.RecordRow(l.opts.Job, "unresolved", res.Unresolved)
	}
	if err != nil {
		return FactResult{Unresolved: res.Unresolved}, err
	}
	return res, nil
}

func resolveFacts(sales []records.Record, customers, products, dates map[int64]int64) ([][]any, int64) {
	out := make([][]any, 0, len(sales))
	var unresolved int64
	for _, r := range sales {
		ck, ok1 := lookup(customers, r["customer_id"])
		pk, ok2 := lookup(products, r["product_id"])
		var dk int64
		ok3 := false
		if d, ok := records.Time(r["sale_date"]); ok {
			dk, ok3 = dates[records.DateKey(d)]
		}
		if !ok1 || !ok2 || !ok3 {
			unresolved++
			continue
		}
		row := []any{r["sale_id"], ck, pk, dk, r["quantity"], r["unit_price"], r["total_amount"], r["is_discounted"], r["sale_category"]}
		for i, v := range row {
			if records.IsNull(v) {
				row[i] = nil
			}
		}
		out = append(out, row)
	}
	return out, unresolved
}

func lookup(m map[int64]int64, v any) (int64, bool) {
	id, ok := records.Int(v)
	if !ok {
		return 0, false
	}
	k, ok := m[id]
	return k, ok
}

// keyMap runs a two-column query and maps the first column to the second.
// Rows with a null or non-integer cell are ignored.
func keyMap(ctx context.Context, tx storage.Tx, sql string) (map[int64]int64, error) {
	rows, err := tx.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]int64, len(rows))
	for _, r := range rows {
		if len(r) < 2 {
			return nil, fmt.Errorf("key query returned %d columns", len(r))
		}
		k, ok1 := records.Int(r[0])
		v, ok2 := records.Int(r[1])
		if ok1 && ok2 {
			out[k] = v
		}
	}
	return out, nil
}
