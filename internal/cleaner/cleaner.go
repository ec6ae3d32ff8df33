// Package cleaner turns raw extracted tables into cleaned datasets.
//
// Each entity (sales, customers, products) has its own rule set built from
// transformer steps: normalize text, coerce types (unparseable cells become
// null), drop rows failing the entity's validity predicates, then derive
// columns. Inputs are never mutated; every function works on a copy.
package cleaner

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/afonsolelis/etl-completa-airflow/internal/records"
	"github.com/afonsolelis/etl-completa-airflow/internal/transformer"
)

// Dataset names, shared with quality reports and artifact file names.
const (
	Sales     = "sales"
	Customers = "customers"
	Products  = "products"
)

// Stats summarizes a single cleaning pass.
type Stats struct {
	Dataset string
	Input   int
	Output  int
	// Dropped counts excluded rows by reason, e.g. "non_positive_quantity".
	Dropped map[string]int
}

// DroppedTotal sums Dropped.
func (s Stats) DroppedTotal() int {
	n := 0
	for _, v := range s.Dropped {
		n += v
	}
	return n
}

// String renders Stats for log lines with reasons in a stable order.
func (s Stats) String() string {
	reasons := make([]string, 0, len(s.Dropped))
	for k := range s.Dropped {
		reasons = append(reasons, k)
	}
	sort.Strings(reasons)
	parts := make([]string, len(reasons))
	for i, k := range reasons {
		parts[i] = fmt.Sprintf("%s=%d", k, s.Dropped[k])
	}
	return fmt.Sprintf("dataset=%s in=%d out=%d dropped=[%s]", s.Dataset, s.Input, s.Output, strings.Join(parts, ","))
}

// Cleaner holds the options shared by every entity rule set. The zero value
// is ready to use.
type Cleaner struct {
	// Reject, when set, receives every row excluded by a validity filter.
	Reject func(dataset string, r transformer.Rejected)
}

// CleanSales cleans sales with a zero Cleaner.
func CleanSales(t records.Table) (records.Table, Stats, error) {
	return Cleaner{}.Sales(t)
}

// CleanCustomers cleans customers with a zero Cleaner.
func CleanCustomers(t records.Table, asOf time.Time) (records.Table, Stats, error) {
	return Cleaner{}.Customers(t, asOf)
}

// CleanProducts cleans products with a zero Cleaner.
func CleanProducts(t records.Table) (records.Table, Stats, error) {
	return Cleaner{}.Products(t)
}

// run copies t, applies the chain built by steps and collects Stats.
func (c Cleaner) run(t records.Table, dataset string, derived []string, steps func(transformer.RejectFunc) transformer.Chain) (records.Table, Stats) {
	out := t.Clone()
	out.Name = dataset
	st := Stats{Dataset: dataset, Input: t.Len(), Dropped: map[string]int{}}

	reject := transformer.RejectFunc(func(r transformer.Rejected) {
		st.Dropped[r.Reason]++
		if c.Reject != nil {
			c.Reject(dataset, r)
		}
	})
	out.Rows = steps(reject).Apply(out.Rows)
	out.AddColumns(derived...)
	st.Output = out.Len()

	log.Printf("cleaner: %s", st)
	return out, st
}
