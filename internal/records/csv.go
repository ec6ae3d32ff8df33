package records

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/afonsolelis/etl-completa-airflow/internal/datasource"
	"github.com/afonsolelis/etl-completa-airflow/internal/datasource/file"
)

const utf8BOM = "\uFEFF"

// Timestamp layouts used when writing artifacts. Midnight values are written
// as plain dates.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// ReadCSV reads a headered CSV stream into a Table. Header cells are trimmed
// and the leading BOM is stripped. Empty cells become nil; every other cell is
// kept as the raw string for the Coerce transformer to type.
func ReadCSV(ctx context.Context, r io.Reader, name string) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // tolerant; short rows pad with nil
	cr.LazyQuotes = true

	hdr, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{Name: name}, nil
		}
		return Table{}, fmt.Errorf("read header: %w", err)
	}
	cols := make([]string, len(hdr))
	for i, h := range hdr {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		cols[i] = strings.TrimSpace(h)
	}

	t := Table{Name: name, Columns: cols}
	line := 1
	for {
		select {
		case <-ctx.Done():
			return Table{}, ctx.Err()
		default:
		}

		rec, err := cr.Read()
		line++
		if errors.Is(err, io.EOF) {
			return t, nil
		}
		if err != nil {
			return Table{}, fmt.Errorf("csv read line %d: %w", line, err)
		}
		row := make(Record, len(cols))
		for i, c := range cols {
			if i >= len(rec) || rec[i] == "" {
				row[c] = nil
				continue
			}
			row[c] = rec[i]
		}
		t.Rows = append(t.Rows, row)
	}
}

// ReadCSVFile opens path through the local file source and reads it.
func ReadCSVFile(ctx context.Context, path, name string) (Table, error) {
	t, err := ReadSource(ctx, file.NewLocal(path), name)
	if err != nil {
		return Table{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ReadSource opens src and reads it as CSV.
func ReadSource(ctx context.Context, src datasource.Source, name string) (Table, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return Table{}, err
	}
	defer rc.Close()
	return ReadCSV(ctx, rc, name)
}

// WriteCSV writes t with a header row in column order.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	cells := make([]string, len(t.Columns))
	for _, r := range t.Rows {
		for i, c := range t.Columns {
			cells[i] = FormatValue(r[c])
		}
		if err := cw.Write(cells); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes t to path via WriteFileAtomic.
func WriteCSVFile(path string, t Table) error {
	return WriteFileAtomic(path, func(w io.Writer) error { return WriteCSV(w, t) })
}

// WriteFileAtomic creates path's directory, writes through fn into a
// sibling temp file and renames it into place, so readers never observe a
// partial artifact.
func WriteFileAtomic(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", filepath.Dir(path), err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

// FormatValue renders a cell the way artifacts store it. Null is the empty
// string.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		if IsNull(x) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.Equal(Day(x)) {
			return x.Format(DateLayout)
		}
		return x.Format(DateTimeLayout)
	default:
		return fmt.Sprint(x)
	}
}
