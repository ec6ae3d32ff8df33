package builtin

import (
	"github.com/afonsolelis/etl-completa-airflow/internal/records"
	"github.com/afonsolelis/etl-completa-airflow/internal/transformer"
)

// Filter keeps records for which Keep returns true. Rejected rows are
// reported with Reason.
type Filter struct {
	Reason string
	Keep   func(records.Record) bool
	Reject transformer.RejectFunc
}

func (f Filter) Apply(in []records.Record) []records.Record {
	out := in[:0]
	for _, rec := range in {
		if f.Keep(rec) {
			out = append(out, rec)
			continue
		}
		f.Reject.Emit(rec, f.Reason)
	}
	return out
}

// Positive keeps records whose field is a number strictly greater than zero.
// Null and non-numeric cells fail the check.
func Positive(field string, reject transformer.RejectFunc) Filter {
	return Filter{
		Reason: "non_positive_" + field,
		Reject: reject,
		Keep: func(r records.Record) bool {
			f, ok := records.Float(r[field])
			return ok && f > 0
		},
	}
}

// Derive sets one column on every record from a pure function of the row.
type Derive struct {
	Field string
	Fn    func(records.Record) any
}

func (d Derive) Apply(in []records.Record) []records.Record {
	for _, r := range in {
		r[d.Field] = d.Fn(r)
	}
	return in
}
