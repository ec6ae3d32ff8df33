package builtin

import (
	"strings"

	"github.com/afonsolelis/etl-completa-airflow/internal/records"
)

// Normalize trims surrounding whitespace (including NBSP) from string cells.
// When Fields is empty every string cell is normalized. Cells that become
// empty are set to nil so they count as nulls downstream.
type Normalize struct {
	Fields []string
}

func (n Normalize) Apply(in []records.Record) []records.Record {
	for _, r := range in {
		if len(n.Fields) == 0 {
			for k, v := range r {
				r[k] = normalizeCell(v)
			}
			continue
		}
		for _, f := range n.Fields {
			if v, ok := r[f]; ok {
				r[f] = normalizeCell(v)
			}
		}
	}
	return in
}

func normalizeCell(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
	if s == "" {
		return nil
	}
	return s
}
