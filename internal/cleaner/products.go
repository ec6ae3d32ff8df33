package cleaner

import (
	"math"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/afonsolelis/etl-completa-airflow/internal/records"
	"github.com/afonsolelis/etl-completa-airflow/internal/rules"
	"github.com/afonsolelis/etl-completa-airflow/internal/transformer"
	"github.com/afonsolelis/etl-completa-airflow/internal/transformer/builtin"
)

// ProductColumns are required in the raw products table.
var ProductColumns = []string{"product_id", "product_name", "category", "brand", "unit_price", "cost_price"}

// ProductDerived are appended by Products.
var ProductDerived = []string{"profit_margin", "margin_category", "price_category"}

// ProductTypes is the cell type of every typed product column.
var ProductTypes = map[string]string{
	"product_id":    "int",
	"unit_price":    "float",
	"cost_price":    "float",
	"profit_margin": "float",
}

// MarginCategories assigns margin_category from profit_margin.
var MarginCategories = rules.Ruleset[float64, string]{
	Default: "Low",
	Rules: []rules.Rule[float64, string]{
		{When: rules.AtLeast(20), Value: "Medium"},
		{When: rules.AtLeast(40), Value: "High"},
	},
}

// PriceCategories buckets unit_price.
var PriceCategories = rules.Buckets{Lower: 0, Buckets: []rules.Bucket{
	{Upper: 50, Label: "Budget"},
	{Upper: 200, Label: "Mid-Range"},
	{Upper: 500, Label: "Premium"},
	{Upper: math.Inf(1), Label: "Luxury"},
}}

// ProfitMargin returns round2((unit-cost)/unit*100). ok is false when either
// price is null or unit is not positive.
func ProfitMargin(unit, cost any) (float64, bool) {
	u, uok := records.Float(unit)
	c, cok := records.Float(cost)
	if !uok || !cok || u <= 0 {
		return 0, false
	}
	return records.Round2((u - c) / u * 100), true
}

// Products cleans the raw products table. Products without a positive
// unit_price are excluded since their margin is undefined.
func (c Cleaner) Products(t records.Table) (records.Table, Stats, error) {
	if err := requireColumns(t, Products, ProductColumns...); err != nil {
		return records.Table{}, Stats{}, err
	}
	title := cases.Title(language.Und)

	out, st := c.run(t, Products, ProductDerived, func(reject transformer.RejectFunc) transformer.Chain {
		return transformer.Chain{
			builtin.Normalize{},
			builtin.Coerce{Types: ProductTypes, OnError: builtin.OnErrorNull},
			builtin.Require{Fields: []string{"product_id"}, Reject: reject},
			builtin.Positive("unit_price", reject),
			transformer.Func(func(in []records.Record) []records.Record {
				for _, r := range in {
					for _, f := range []string{"product_name", "category", "brand"} {
						r[f] = mapString(r[f], title.String)
					}
					m, ok := ProfitMargin(r["unit_price"], r["cost_price"])
					if ok {
						r["profit_margin"] = m
						r["margin_category"] = MarginCategories.Eval(m)
					} else {
						r["profit_margin"] = nil
						r["margin_category"] = MarginCategories.Default
					}
					price, _ := records.Float(r["unit_price"])
					label, _ := PriceCategories.Label(price)
					r["price_category"] = label
				}
				return in
			}),
		}
	})
	return out, st, nil
}
