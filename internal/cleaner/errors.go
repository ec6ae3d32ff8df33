package cleaner

import (
	"fmt"
	"strings"

	"github.com/afonsolelis/etl-completa-airflow/internal/records"
)

// SchemaError reports required columns absent from an input table. It is
// fatal for the dataset; no rows are produced.
type SchemaError struct {
	Dataset string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: missing required columns: %s", e.Dataset, strings.Join(e.Missing, ", "))
}

// requireColumns returns a *SchemaError when t lacks any of cols.
func requireColumns(t records.Table, dataset string, cols ...string) error {
	if missing := t.Missing(cols...); len(missing) > 0 {
		return &SchemaError{Dataset: dataset, Missing: missing}
	}
	return nil
}
