package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/afonsolelis/etl-completa-airflow/internal/datasource/file"
	"github.com/afonsolelis/etl-completa-airflow/internal/records"
)

// WriteReports writes reports to path as an indented JSON list.
func WriteReports(path string, reports []Report) error {
	if reports == nil {
		reports = []Report{}
	}
	return records.WriteFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	})
}

// ReadReports decodes the JSON list written by WriteReports.
func ReadReports(ctx context.Context, path string) ([]Report, error) {
	rc, err := file.NewLocal(path).Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var out []Report
	if err := json.NewDecoder(rc).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}
