// Package transformer defines the batch transform contract used by the
// cleaner: each step takes the current slice of records and returns the
// surviving (possibly mutated) slice.
package transformer

import "github.com/afonsolelis/etl-completa-airflow/internal/records"

// Transformer mutates and/or filters a batch of records.
type Transformer interface {
	Apply([]records.Record) []records.Record
}

// Func adapts a plain function to Transformer.
type Func func([]records.Record) []records.Record

// Apply calls f.
func (f Func) Apply(in []records.Record) []records.Record { return f(in) }

// Chain is an ordered list of transformers.
type Chain []Transformer

// Apply runs every step in order, feeding each the previous output.
func (c Chain) Apply(in []records.Record) []records.Record {
	out := in
	for _, t := range c {
		out = t.Apply(out)
	}
	return out
}

// Rejected describes a record dropped by a filtering step.
type Rejected struct {
	Record records.Record
	Reason string
}

// RejectFunc receives rows dropped by filtering steps. A nil RejectFunc
// discards them.
type RejectFunc func(Rejected)

// Emit calls f when it is non-nil.
func (f RejectFunc) Emit(r records.Record, reason string) {
	if f != nil {
		f(Rejected{Record: r, Reason: reason})
	}
}
