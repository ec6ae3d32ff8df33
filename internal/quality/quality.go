// Package quality computes data quality reports over cleaned datasets and
// enforces the pipeline gate on them.
package quality

import (
	"bytes"
	"log"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/afonsolelis/etl-completa-airflow/internal/records"
)

// Report is the quality summary of one dataset. JSON field names are part of
// the artifact contract.
type Report struct {
	Dataset             string             `json:"dataset"`
	TotalRecords        int                `json:"total_records"`
	TotalColumns        int                `json:"total_columns"`
	NullValues          int                `json:"null_values"`
	DuplicateRecords    int                `json:"duplicate_records"`
	ColumnCompleteness  map[string]float64 `json:"column_completeness"`
	ValidationTimestamp time.Time          `json:"validation_timestamp"`
}

// Validate builds the report for t. asOf is stamped as the validation time.
//
// Completeness of a column is the share of non-null cells, in percent,
// rounded to two decimals. An empty dataset reports 0 for every column.
func Validate(t records.Table, name string, asOf time.Time) Report {
	rep := Report{
		Dataset:             name,
		TotalRecords:        t.Len(),
		TotalColumns:        len(t.Columns),
		ColumnCompleteness:  make(map[string]float64, len(t.Columns)),
		ValidationTimestamp: asOf,
	}

	nulls := make([]int, len(t.Columns))
	for _, r := range t.Rows {
		for i, c := range t.Columns {
			if records.IsNull(r[c]) {
				nulls[i]++
			}
		}
	}
	for i, c := range t.Columns {
		rep.NullValues += nulls[i]
		if rep.TotalRecords == 0 {
			rep.ColumnCompleteness[c] = 0
			continue
		}
		rep.ColumnCompleteness[c] = records.Round2(float64(rep.TotalRecords-nulls[i]) / float64(rep.TotalRecords) * 100)
	}
	rep.DuplicateRecords = countDuplicates(t)

	if rep.TotalRecords == 0 {
		log.Printf("quality: dataset=%s is empty; completeness reported as 0", name)
	}
	log.Printf("quality: dataset=%s records=%d nulls=%d duplicates=%d", name, rep.TotalRecords, rep.NullValues, rep.DuplicateRecords)
	return rep
}

// countDuplicates counts rows equal across every column to an earlier row.
// Rows are bucketed by an xxh3 hash of their encoded cells and compared
// exactly within a bucket.
func countDuplicates(t records.Table) int {
	seen := make(map[uint64][]records.Record, t.Len())
	var buf bytes.Buffer
	dups := 0
	for _, r := range t.Rows {
		buf.Reset()
		for _, c := range t.Columns {
			encodeCell(&buf, r[c])
		}
		h := xxh3.Hash(buf.Bytes())

		dup := false
		for _, prev := range seen[h] {
			if sameRow(t.Columns, prev, r) {
				dup = true
				break
			}
		}
		if dup {
			dups++
			continue
		}
		seen[h] = append(seen[h], r)
	}
	return dups
}

// encodeCell writes a kind tag plus the formatted value so that the string
// "1" and the integer 1 hash differently.
func encodeCell(buf *bytes.Buffer, v any) {
	switch x := v.(type) {
	case nil:
		buf.WriteByte('0')
	case int64, int:
		buf.WriteByte('i')
		buf.WriteString(records.FormatValue(x))
	case float64:
		if records.IsNull(x) {
			buf.WriteByte('0')
			break
		}
		buf.WriteByte('f')
		buf.WriteString(records.FormatValue(x))
	case time.Time:
		buf.WriteByte('t')
		buf.WriteString(x.UTC().Format(time.RFC3339Nano))
	default:
		buf.WriteByte('s')
		buf.WriteString(records.FormatValue(x))
	}
	buf.WriteByte(0x1f)
}

func sameRow(cols []string, a, b records.Record) bool {
	for _, c := range cols {
		x, y := a[c], b[c]
		xn, yn := records.IsNull(x), records.IsNull(y)
		if xn || yn {
			if xn != yn {
				return false
			}
			continue
		}
		if xt, ok := x.(time.Time); ok {
			yt, ok := y.(time.Time)
			if !ok || !xt.Equal(yt) {
				return false
			}
			continue
		}
		if x != y {
			return false
		}
	}
	return true
}
