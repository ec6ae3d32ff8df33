package cleaner

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/afonsolelis/etl-completa-airflow/internal/records"
	"github.com/afonsolelis/etl-completa-airflow/internal/rules"
	"github.com/afonsolelis/etl-completa-airflow/internal/transformer"
	"github.com/afonsolelis/etl-completa-airflow/internal/transformer/builtin"
)

// CustomerColumns are required in the raw customers table.
var CustomerColumns = []string{"customer_id", "customer_name", "email", "phone", "city", "country", "registration_date", "last_purchase_date"}

// CustomerDerived are appended by Customers.
var CustomerDerived = []string{"is_valid_email", "days_since_registration", "days_since_last_purchase", "customer_segment"}

// CustomerTypes is the cell type of every typed customer column.
var CustomerTypes = map[string]string{
	"customer_id":              "int",
	"registration_date":        "date",
	"last_purchase_date":       "date",
	"is_valid_email":           "bool",
	"days_since_registration":  "int",
	"days_since_last_purchase": "int",
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool { return emailPattern.MatchString(s) }

// Customer segments.
const (
	SegmentInactive     = "Inactive"
	SegmentActive       = "Active"
	SegmentHighlyActive = "Highly Active"
	SegmentChurned      = "Churned"
)

// Segments assigns customer_segment from days_since_last_purchase.
var Segments = rules.Ruleset[float64, string]{
	Default: SegmentInactive,
	Rules: []rules.Rule[float64, string]{
		{When: rules.AtMost(30), Value: SegmentActive},
		{When: rules.AtMost(7), Value: SegmentHighlyActive},
		{When: rules.Above(365), Value: SegmentChurned},
	},
}

// Segment classifies a customer by recency. A customer with no known last
// purchase is Inactive.
func Segment(daysSinceLastPurchase any) string {
	d, ok := records.Float(daysSinceLastPurchase)
	if !ok {
		return Segments.Default
	}
	return Segments.Eval(d)
}

// DaysSince returns whole days from d to asOf, floored. The result is nil
// when d is not a time.
func DaysSince(asOf time.Time, d any) any {
	t, ok := records.Time(d)
	if !ok {
		return nil
	}
	return int64(math.Floor(asOf.Sub(t).Hours() / 24))
}

// Customers cleans the raw customers table. asOf anchors the recency
// columns.
func (c Cleaner) Customers(t records.Table, asOf time.Time) (records.Table, Stats, error) {
	if err := requireColumns(t, Customers, CustomerColumns...); err != nil {
		return records.Table{}, Stats{}, err
	}
	title := cases.Title(language.Und)
	upper := cases.Upper(language.Und)

	out, st := c.run(t, Customers, CustomerDerived, func(reject transformer.RejectFunc) transformer.Chain {
		return transformer.Chain{
			builtin.Normalize{},
			builtin.Coerce{Types: CustomerTypes, OnError: builtin.OnErrorNull},
			builtin.Require{Fields: []string{"customer_id"}, Reject: reject},
			transformer.Func(func(in []records.Record) []records.Record {
				for _, r := range in {
					email, ok := r["email"].(string)
					if ok {
						email = strings.ToLower(strings.TrimSpace(email))
						r["email"] = email
					}
					r["is_valid_email"] = ok && ValidEmail(email)
					r["phone"] = digitsOnly(r["phone"])
					r["customer_name"] = mapString(r["customer_name"], title.String)
					r["city"] = mapString(r["city"], title.String)
					r["country"] = mapString(r["country"], upper.String)

					r["days_since_registration"] = DaysSince(asOf, r["registration_date"])
					r["days_since_last_purchase"] = DaysSince(asOf, r["last_purchase_date"])
					r["customer_segment"] = Segment(r["days_since_last_purchase"])
				}
				return in
			}),
		}
	})
	return out, st, nil
}

// digitsOnly strips every non-digit. Numbers are formatted first; a value
// with no digits at all becomes nil.
func digitsOnly(v any) any {
	if records.IsNull(v) {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return nil
	}
	return b.String()
}

// mapString applies fn to string cells and trims the result.
func mapString(v any, fn func(string) string) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return strings.TrimSpace(fn(s))
}
