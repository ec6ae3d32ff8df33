package warehouse

import (
	"context"
	"fmt"

	"github.com/afonsolelis/etl-completa-airflow/internal/records"
	"github.com/afonsolelis/etl-completa-airflow/internal/storage"
)

var (
	customerColumns = []string{"customer_id", "customer_name", "email", "city", "country", "customer_segment", "registration_date", "is_valid_email"}
	productColumns  = []string{"product_id", "product_name", "category", "brand", "unit_price", "cost_price", "profit_margin", "margin_category", "price_category"}
)

// LoadDimensions replaces dim_customer and dim_product with the cleaned
// tables. Each table is cleared (with its identity restarted) and reloaded in
// its own transaction; fact rows referencing it are removed first. One audit
// entry is written for the stage.
func (l *Loader) LoadDimensions(ctx context.Context, customers, products records.Table) error {
	return l.runStage(ctx, StageDimensions, func() (int64, error) {
		nc, err := l.loadDimension(ctx, TableCustomer, customerColumns, customers)
		if err != nil {
			return 0, err
		}
		np, err := l.loadDimension(ctx, TableProduct, productColumns, products)
		if err != nil {
			return 0, err
		}
		return nc + np, nil
	})
}

func (l *Loader) loadDimension(ctx context.Context, table string, columns []string, t records.Table) (int64, error) {
	if missing := t.Missing(columns...); len(missing) > 0 {
		return 0, fmt.Errorf("%s: source %q missing columns %v", table, t.Name, missing)
	}
	rows := project(t, columns)
	var n int64
	err := storage.WithTx(ctx, l.db, func(tx storage.Tx) error {
		var err error
		n, err = l.replace(ctx, tx, table, columns, rows)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", table, err)
	}
	return n, nil
}

// project returns the cells of every row of t aligned to columns. NaN cells
// become nil.
func project(t records.Table, columns []string) [][]any {
	out := make([][]any, 0, len(t.Rows))
	for _, r := range t.Rows {
		row := make([]any, len(columns))
		for i, c := range columns {
			if v := r[c]; !records.IsNull(v) {
				row[i] = v
			}
		}
		out = append(out, row)
	}
	return out
}
