// Package summary rolls cleaned sales up by product, customer and day.
package summary

import (
	"slices"
	"strings"
	"time"

	"github.com/afonsolelis/etl-completa-airflow/internal/cleaner"
	"github.com/afonsolelis/etl-completa-airflow/internal/records"
)

// Table names, also used as artifact base names.
const (
	ProductTable  = "product_summary"
	CustomerTable = "customer_summary"
	DailyTable    = "daily_summary"
)

var (
	ProductColumns  = []string{"product_id", "product_name", "category", "total_quantity", "total_revenue", "avg_sale_value", "total_sales", "first_sale", "last_sale"}
	CustomerColumns = []string{"customer_id", "customer_name", "total_spent", "avg_order_value", "total_orders", "first_purchase", "last_purchase"}
	DailyColumns    = []string{"sale_date", "daily_revenue", "daily_orders"}
)

// Column types of each summary artifact.
var (
	ProductTypes = map[string]string{
		"product_id": "int", "total_quantity": "int", "total_revenue": "float", "avg_sale_value": "float",
		"total_sales": "int", "first_sale": "date", "last_sale": "date",
	}
	CustomerTypes = map[string]string{
		"customer_id": "int", "total_spent": "float", "avg_order_value": "float",
		"total_orders": "int", "first_purchase": "date", "last_purchase": "date",
	}
	DailyTypes = map[string]string{"sale_date": "date", "daily_revenue": "float", "daily_orders": "int"}
)

// Summaries holds the three rollups of one sales dataset.
type Summaries struct {
	Product  records.Table
	Customer records.Table
	Daily    records.Table
}

// Summarize aggregates cleaned sales. A missing column is a
// *cleaner.SchemaError. Rows whose grouping key has a null
// part are left out of that rollup. Each table is ordered by its key.
func Summarize(sales records.Table) (Summaries, error) {
	if missing := sales.Missing("sale_id", "product_id", "product_name", "category", "customer_id", "customer_name", "quantity", "total_amount", "sale_date"); len(missing) > 0 {
		return Summaries{}, &cleaner.SchemaError{Dataset: cleaner.Sales, Missing: missing}
	}
	return Summaries{
		Product:  productSummary(sales.Rows),
		Customer: customerSummary(sales.Rows),
		Daily:    dailySummary(sales.Rows),
	}, nil
}

// group accumulates the measures shared by every rollup.
type group struct {
	key      []any
	quantity int64
	revenue  float64
	count    int64
	first    any
	last     any
}

func (g *group) add(r records.Record) {
	if q, ok := records.Int(r["quantity"]); ok {
		g.quantity += q
	}
	if amt, ok := records.Float(r["total_amount"]); ok {
		g.revenue += amt
	}
	g.count++
	d, ok := records.Time(r["sale_date"])
	if !ok {
		return
	}
	if f, ok := g.first.(time.Time); !ok || d.Before(f) {
		g.first = d
	}
	if l, ok := g.last.(time.Time); !ok || d.After(l) {
		g.last = d
	}
}

func (g *group) mean() float64 {
	if g.count == 0 {
		return 0
	}
	return records.Round2(g.revenue / float64(g.count))
}

// groupBy buckets rows by keyFn, skipping rows whose key has a null part,
// and returns the groups ordered by key.
func groupBy(rows []records.Record, keyFn func(records.Record) []any) []*group {
	idx := map[string]*group{}
	for _, r := range rows {
		key := keyFn(r)
		if slices.ContainsFunc(key, records.IsNull) {
			continue
		}
		parts := make([]string, len(key))
		for i, k := range key {
			parts[i] = records.FormatValue(k)
		}
		id := strings.Join(parts, "\x1f")
		g, ok := idx[id]
		if !ok {
			g = &group{key: key}
			idx[id] = g
		}
		g.add(r)
	}
	out := make([]*group, 0, len(idx))
	for _, g := range idx {
		out = append(out, g)
	}
	slices.SortFunc(out, func(a, b *group) int {
		for i := range a.key {
			if c := records.Compare(a.key[i], b.key[i]); c != 0 {
				return c
			}
		}
		return 0
	})
	return out
}

func productSummary(rows []records.Record) records.Table {
	t := records.New(ProductTable, ProductColumns...)
	for _, g := range groupBy(rows, func(r records.Record) []any {
		return []any{r["product_id"], r["product_name"], r["category"]}
	}) {
		t.Rows = append(t.Rows, records.Record{
			"product_id":     g.key[0],
			"product_name":   g.key[1],
			"category":       g.key[2],
			"total_quantity": g.quantity,
			"total_revenue":  records.Round2(g.revenue),
			"avg_sale_value": g.mean(),
			"total_sales":    g.count,
			"first_sale":     g.first,
			"last_sale":      g.last,
		})
	}
	return t
}

func customerSummary(rows []records.Record) records.Table {
	t := records.New(CustomerTable, CustomerColumns...)
	for _, g := range groupBy(rows, func(r records.Record) []any {
		return []any{r["customer_id"], r["customer_name"]}
	}) {
		t.Rows = append(t.Rows, records.Record{
			"customer_id":     g.key[0],
			"customer_name":   g.key[1],
			"total_spent":     records.Round2(g.revenue),
			"avg_order_value": g.mean(),
			"total_orders":    g.count,
			"first_purchase":  g.first,
			"last_purchase":   g.last,
		})
	}
	return t
}

func dailySummary(rows []records.Record) records.Table {
	t := records.New(DailyTable, DailyColumns...)
	for _, g := range groupBy(rows, func(r records.Record) []any {
		d, ok := records.Time(r["sale_date"])
		if !ok {
			return []any{nil}
		}
		return []any{records.Day(d)}
	}) {
		t.Rows = append(t.Rows, records.Record{
			"sale_date":     g.key[0],
			"daily_revenue": records.Round2(g.revenue),
			"daily_orders":  g.count,
		})
	}
	return t
}
