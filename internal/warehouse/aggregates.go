package warehouse

import (
	"cmp"
	"context"
	"fmt"
	"log"
	"slices"
	"time"

	"github.com/afonsolelis/etl-completa-airflow/internal/records"
	"github.com/afonsolelis/etl-completa-airflow/internal/storage"
)

var (
	dailyColumns          = []string{"date_key", "total_revenue", "total_orders", "avg_order_value", "unique_customers"}
	productMetricsColumns = []string{"product_key", "period_start", "period_end", "total_quantity", "total_revenue", "total_sales", "avg_sale_value"}
)

// LoadAggregations replaces agg_daily_sales from the daily summary and
// agg_product_metrics from the product summary, one transaction per table.
//
// unique_customers is filled with the order count; the daily summary does not
// carry distinct customers.
func (l *Loader) LoadAggregations(ctx context.Context, daily, products records.Table) error {
	return l.runStage(ctx, StageAggregations, func() (int64, error) {
		if missing := daily.Missing("sale_date", "daily_revenue", "daily_orders"); len(missing) > 0 {
			return 0, fmt.Errorf("source %q missing columns %v", daily.Name, missing)
		}
		if missing := products.Missing("product_id", "total_quantity", "total_revenue", "total_sales", "first_sale", "last_sale"); len(missing) > 0 {
			return 0, fmt.Errorf("source %q missing columns %v", products.Name, missing)
		}

		var nd int64
		err := storage.WithTx(ctx, l.db, func(tx storage.Tx) error {
			var err error
			nd, err = l.replace(ctx, tx, TableDailySales, dailyColumns, DailyRows(daily))
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("load %s: %w", TableDailySales, err)
		}

		var np int64
		err = storage.WithTx(ctx, l.db, func(tx storage.Tx) error {
			keys, err := keyMap(ctx, tx, "SELECT product_id, MAX(product_key) FROM "+TableProduct+" GROUP BY product_id")
			if err != nil {
				return fmt.Errorf("resolve products: %w", err)
			}
			rows, skipped := ProductMetricRows(products, keys)
			if skipped > 0 {
				log.Printf("loader: %s skipped unresolved=%d", TableProductMetrics, skipped)
			}
			np, err = l.replace(ctx, tx, TableProductMetrics, productMetricsColumns, rows)
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("load %s: %w", TableProductMetrics, err)
		}
		return nd + np, nil
	})
}

// DailyRows maps daily summary rows to agg_daily_sales rows. Rows without a
// sale date are skipped; avg_order_value is 0 when there are no orders.
func DailyRows(daily records.Table) [][]any {
	out := make([][]any, 0, daily.Len())
	for _, r := range daily.Rows {
		d, ok := records.Time(r["sale_date"])
		if !ok {
			continue
		}
		revenue, _ := records.Float(r["daily_revenue"])
		orders, _ := records.Int(r["daily_orders"])
		avg := 0.0
		if orders > 0 {
			avg = records.Round2(revenue / float64(orders))
		}
		out = append(out, []any{records.DateKey(d), records.Round2(revenue), orders, avg, orders})
	}
	return out
}

type productMetric struct {
	key        int64
	start, end time.Time
	quantity   int64
	revenue    float64
	sales      int64
}

// ProductMetricRows maps product summary rows to agg_product_metrics rows
// keyed by (product_key, first sale date). Summary rows sharing a key are
// merged. The second result counts rows whose product or dates could not be
// resolved.
func ProductMetricRows(products records.Table, keys map[int64]int64) ([][]any, int64) {
	type pk struct {
		key   int64
		start int64
	}
	merged := map[pk]*productMetric{}
	var order []pk
	var skipped int64
	for _, r := range products.Rows {
		key, ok := lookup(keys, r["product_id"])
		first, ok1 := records.Time(r["first_sale"])
		last, ok2 := records.Time(r["last_sale"])
		if !ok || !ok1 || !ok2 {
			skipped++
			continue
		}
		first, last = dateOnly(first), dateOnly(last)
		id := pk{key, records.DateKey(first)}
		m, seen := merged[id]
		if !seen {
			m = &productMetric{key: key, start: first, end: last}
			merged[id] = m
			order = append(order, id)
		}
		if last.After(m.end) {
			m.end = last
		}
		q, _ := records.Int(r["total_quantity"])
		rev, _ := records.Float(r["total_revenue"])
		n, _ := records.Int(r["total_sales"])
		m.quantity += q
		m.revenue += rev
		m.sales += n
	}

	slices.SortFunc(order, func(a, b pk) int {
		if c := cmp.Compare(a.key, b.key); c != 0 {
			return c
		}
		return cmp.Compare(a.start, b.start)
	})
	out := make([][]any, 0, len(order))
	for _, id := range order {
		m := merged[id]
		avg := 0.0
		if m.sales > 0 {
			avg = records.Round2(m.revenue / float64(m.sales))
		}
		out = append(out, []any{m.key, m.start, m.end, m.quantity, records.Round2(m.revenue), m.sales, avg})
	}
	return out, skipped
}
