// Package records defines the tabular model shared by every pipeline stage.
//
// A Table is an ordered column schema plus a slice of Records. Records are
// keyed by column name; a nil value is a null cell. Cell values are one of
// int64, float64, bool, string, time.Time or nil. Raw extracts hold strings
// until the Coerce transformer types them.
package records

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"
)

// Record is a single row keyed by column name.
type Record map[string]any

// Clone returns a shallow copy of r. Cell values are immutable scalars, so a
// shallow copy is enough to keep callers from mutating each other's rows.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is an ordered collection of rows with a fixed column schema.
type Table struct {
	Name    string
	Columns []string
	Rows    []Record
}

// New returns an empty table with the given schema.
func New(name string, columns ...string) Table {
	return Table{Name: name, Columns: slices.Clone(columns)}
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// HasColumn reports whether c is part of the schema.
func (t Table) HasColumn(c string) bool { return slices.Contains(t.Columns, c) }

// Missing returns the subset of cols that are not in the schema, in the
// order given.
func (t Table) Missing(cols ...string) []string {
	var out []string
	for _, c := range cols {
		if !t.HasColumn(c) {
			out = append(out, c)
		}
	}
	return out
}

// AddColumns appends names that are not already in the schema.
func (t *Table) AddColumns(names ...string) {
	for _, n := range names {
		if !t.HasColumn(n) {
			t.Columns = append(t.Columns, n)
		}
	}
}

// Clone deep-copies the schema and rows so the result can be mutated without
// touching t.
func (t Table) Clone() Table {
	out := Table{Name: t.Name, Columns: slices.Clone(t.Columns), Rows: make([]Record, len(t.Rows))}
	for i, r := range t.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}

// Values returns the cells of r in column order.
func (t Table) Values(r Record) []any {
	out := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = r[c]
	}
	return out
}

// IsNull reports whether v is a null cell. NaN floats count as null.
func IsNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	}
	return false
}

// Float returns v as float64. Integers widen; anything else is (0, false).
// Database drivers may hand back int32 for INTEGER columns.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return 0, false
		}
		return x, true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case int:
		return float64(x), true
	}
	return 0, false
}

// Int returns v as int64. Floats are accepted only when integral.
func Int(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int32:
		return int64(x), true
	case int:
		return int64(x), true
	case float64:
		if math.IsNaN(x) || x != math.Trunc(x) {
			return 0, false
		}
		return int64(x), true
	}
	return 0, false
}

// Time returns v as time.Time.
func Time(v any) (time.Time, bool) {
	t, ok := v.(time.Time)
	return t, ok
}

// String returns v as string.
func String(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// Bool returns v as bool.
func Bool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// DateKey converts t to the integer YYYYMMDD form used by the time dimension.
func DateKey(t time.Time) int64 {
	return int64(t.Year()*10000 + int(t.Month())*100 + t.Day())
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayOfWeek returns the weekday of t with Monday=0 ... Sunday=6.
func DayOfWeek(t time.Time) int64 {
	return int64((int(t.Weekday()) + 6) % 7)
}

// Quarter returns the calendar quarter (1-4) of t.
func Quarter(t time.Time) int64 {
	return int64((int(t.Month())-1)/3 + 1)
}

// Compare orders two cells of the same kind. Nulls sort first; numbers
// compare numerically across int64/float64; mismatched kinds fall back to
// their string form.
func Compare(a, b any) int {
	an, bn := IsNull(a), IsNull(b)
	switch {
	case an && bn:
		return 0
	case an:
		return -1
	case bn:
		return 1
	}
	if af, ok := Float(a); ok {
		if bf, ok := Float(b); ok {
			return cmp.Compare(af, bf)
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt)
		}
	}
	return strings.Compare(FormatValue(a), FormatValue(b))
}
