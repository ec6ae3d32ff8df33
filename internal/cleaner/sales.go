package cleaner

import (
	"math"

	"github.com/afonsolelis/etl-completa-airflow/internal/records"
	"github.com/afonsolelis/etl-completa-airflow/internal/rules"
	"github.com/afonsolelis/etl-completa-airflow/internal/transformer"
	"github.com/afonsolelis/etl-completa-airflow/internal/transformer/builtin"
)

// SalesColumns are required in the raw sales table.
var SalesColumns = []string{"sale_id", "customer_id", "product_id", "quantity", "unit_price", "total_amount", "sale_date"}

// SalesDerived are appended by Sales, in this order.
var SalesDerived = []string{"calculated_total", "price_variance", "is_discounted", "sale_category", "year", "month", "day_of_week", "quarter"}

// SalesTypes is the cell type of every typed sales column, raw or derived.
// Columns not listed stay strings.
var SalesTypes = map[string]string{
	"sale_id":          "int",
	"customer_id":      "int",
	"product_id":       "int",
	"quantity":         "int",
	"unit_price":       "float",
	"total_amount":     "float",
	"sale_date":        "date",
	"calculated_total": "float",
	"price_variance":   "float",
	"is_discounted":    "bool",
	"year":             "int",
	"month":            "int",
	"day_of_week":      "int",
	"quarter":          "int",
}

// DiscountTolerance is the price variance above which a sale counts as
// discounted.
const DiscountTolerance = 0.01

// SaleCategories buckets total_amount.
var SaleCategories = rules.Buckets{Lower: 0, Buckets: []rules.Bucket{
	{Upper: 100, Label: "Low"},
	{Upper: 500, Label: "Medium"},
	{Upper: 1000, Label: "High"},
	{Upper: math.Inf(1), Label: "Premium"},
}}

// Sales cleans the raw sales table.
func (c Cleaner) Sales(t records.Table) (records.Table, Stats, error) {
	if err := requireColumns(t, Sales, SalesColumns...); err != nil {
		return records.Table{}, Stats{}, err
	}
	out, st := c.run(t, Sales, SalesDerived, func(reject transformer.RejectFunc) transformer.Chain {
		return transformer.Chain{
			builtin.Normalize{},
			builtin.Coerce{Types: SalesTypes, OnError: builtin.OnErrorNull},
			builtin.Require{Fields: []string{"sale_id", "customer_id", "product_id", "total_amount"}, Reject: reject},
			builtin.Positive("total_amount", reject),
			builtin.Positive("quantity", reject),
			builtin.Positive("unit_price", reject),
			transformer.Func(deriveSale),
		}
	})
	return out, st, nil
}

func deriveSale(in []records.Record) []records.Record {
	for _, r := range in {
		qty, _ := records.Float(r["quantity"])
		price, _ := records.Float(r["unit_price"])
		total, _ := records.Float(r["total_amount"])

		calc := qty * price
		variance := math.Abs(total - calc)
		r["calculated_total"] = calc
		r["price_variance"] = variance
		r["is_discounted"] = variance > DiscountTolerance
		if label, ok := SaleCategories.Label(total); ok {
			r["sale_category"] = label
		} else {
			r["sale_category"] = nil
		}

		d, ok := records.Time(r["sale_date"])
		if !ok {
			r["year"], r["month"], r["day_of_week"], r["quarter"] = nil, nil, nil, nil
			continue
		}
		r["year"] = int64(d.Year())
		r["month"] = int64(d.Month())
		r["day_of_week"] = records.DayOfWeek(d)
		r["quarter"] = records.Quarter(d)
	}
	return in
}
