package builtin

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/afonsolelis/etl-completa-airflow/internal/records"
)

// Coercion failure policies.
const (
	OnErrorKeep = "keep" // leave the raw string in place
	OnErrorNull = "null" // replace the cell with nil
)

// DefaultLayouts are tried in order when Coerce.Layouts is empty.
var DefaultLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	records.DateLayout,
}

// Coerce converts string cells to typed values.
//
// Types maps field -> one of: int (int64), float (float64), bool, date
// (time.Time), string. Cells that are nil, missing or already non-string are
// left untouched. OnError selects what happens to unparseable strings; the
// default keeps them.
type Coerce struct {
	Types   map[string]string
	Layouts []string
	OnError string
}

func (c Coerce) Apply(in []records.Record) []records.Record {
	if len(c.Types) == 0 {
		return in
	}
	layouts := c.Layouts
	if len(layouts) == 0 {
		layouts = DefaultLayouts
	}
	for _, r := range in {
		for field, typ := range c.Types {
			v, ok := r[field]
			if !ok || v == nil {
				continue
			}
			s, isStr := v.(string)
			if !isStr {
				continue
			}
			out, ok := coerceString(strings.TrimSpace(s), typ, layouts)
			switch {
			case ok:
				r[field] = out
			case c.OnError == OnErrorNull:
				r[field] = nil
			}
		}
	}
	return in
}

func coerceString(s, typ string, layouts []string) (any, bool) {
	switch typ {
	case "int":
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		// "12.0" style ids produced by float-typed extracts.
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int64(f), true
		}
	case "float":
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f, true
		}
	case "bool":
		if b, err := strconv.ParseBool(s); err == nil {
			return b, true
		}
	case "date":
		return ParseTime(s, layouts)
	case "string":
		return s, true
	}
	return nil, false
}

// ParseTime tries each layout in order and returns the first match.
func ParseTime(s string, layouts []string) (time.Time, bool) {
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
