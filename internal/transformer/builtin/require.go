// Package builtin contains the reusable transforms the cleaner composes.
package builtin

import (
	"github.com/afonsolelis/etl-completa-airflow/internal/records"
	"github.com/afonsolelis/etl-completa-airflow/internal/transformer"
)

// Require removes any record missing a value for one of Fields. Dropped rows
// are reported to Reject with reason "missing_<field>".
type Require struct {
	Fields []string
	Reject transformer.RejectFunc
}

// Apply filters in place and returns the surviving prefix of in.
func (r Require) Apply(in []records.Record) []records.Record {
	out := in[:0]
	for _, rec := range in {
		missing := ""
		for _, f := range r.Fields {
			v, exists := rec[f]
			if !exists || records.IsNull(v) || v == "" {
				missing = f
				break
			}
		}
		if missing != "" {
			r.Reject.Emit(rec, "missing_"+missing)
			continue
		}
		out = append(out, rec)
	}
	return out
}
