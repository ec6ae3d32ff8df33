package extract

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/afonsolelis/etl-completa-airflow/internal/records"
)

const (
	salesQuery = `SELECT
	s.sale_id, s.customer_id, s.product_id, s.quantity, s.unit_price, s.total_amount, s.sale_date,
	c.customer_name, c.email, c.city, c.country,
	p.product_name, p.category, p.brand
FROM sales s
JOIN customers c ON s.customer_id = c.customer_id
JOIN products p ON s.product_id = p.product_id
WHERE s.sale_date BETWEEN $1 AND $2
ORDER BY s.sale_date`

	customersQuery = `SELECT
	customer_id, customer_name, email, phone, address, city, country,
	registration_date, last_purchase_date, total_purchases, customer_status
FROM customers
WHERE customer_status = 'active'`

	productsQuery = `SELECT
	product_id, product_name, category, brand, unit_price, cost_price,
	stock_quantity, supplier_id, product_status, created_date, last_updated
FROM products
WHERE product_status = 'active'`
)

// Querier is the subset of *pgxpool.Pool the extractor uses.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// DB extracts sales, customers and products from the operational Postgres
// database.
type DB struct {
	q     Querier
	close func()
}

// NewDB wraps an existing querier.
func NewDB(q Querier) *DB { return &DB{q: q, close: func() {}} }

// OpenDB connects a pool to dsn and verifies it with a ping.
func OpenDB(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("extract: connect source: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("extract: ping source: %w", err)
	}
	return &DB{q: pool, close: pool.Close}, nil
}

// Close releases the pool.
func (d *DB) Close() { d.close() }

// Sales returns the sales made between from and to (inclusive dates), joined
// with their customer and product attributes, ordered by sale date.
func (d *DB) Sales(ctx context.Context, from, to time.Time) (records.Table, error) {
	t, err := d.query(ctx, "sales_data", salesQuery, from.Format(records.DateLayout), to.Format(records.DateLayout))
	if err != nil {
		return records.Table{}, fmt.Errorf("extract sales: %w", err)
	}
	log.Printf("extract: sales rows=%d from=%s to=%s", t.Len(), from.Format(records.DateLayout), to.Format(records.DateLayout))
	return t, nil
}

// Customers returns the active customers.
func (d *DB) Customers(ctx context.Context) (records.Table, error) {
	t, err := d.query(ctx, "customers_data", customersQuery)
	if err != nil {
		return records.Table{}, fmt.Errorf("extract customers: %w", err)
	}
	log.Printf("extract: customers rows=%d", t.Len())
	return t, nil
}

// Products returns the active products.
func (d *DB) Products(ctx context.Context) (records.Table, error) {
	t, err := d.query(ctx, "products_data", productsQuery)
	if err != nil {
		return records.Table{}, fmt.Errorf("extract products: %w", err)
	}
	log.Printf("extract: products rows=%d", t.Len())
	return t, nil
}

func (d *DB) query(ctx context.Context, name, sql string, args ...any) (records.Table, error) {
	rows, err := d.q.Query(ctx, sql, args...)
	if err != nil {
		return records.Table{}, err
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	cols := make([]string, len(fds))
	for i, fd := range fds {
		cols[i] = fd.Name
	}
	t := records.New(name, cols...)
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return records.Table{}, err
		}
		r := make(records.Record, len(cols))
		for i, c := range cols {
			r[c] = cell(vals[i])
		}
		t.Rows = append(t.Rows, r)
	}
	if err := rows.Err(); err != nil {
		return records.Table{}, err
	}
	return t, nil
}

// cell normalizes driver values to the record cell kinds. NUMERIC columns
// arrive as pgtype.Numeric and become float64; narrower integers widen.
func cell(v any) any {
	switch x := v.(type) {
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case pgtype.Numeric:
		if !x.Valid {
			return nil
		}
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	}
	return v
}
