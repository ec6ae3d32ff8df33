package quality

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/afonsolelis/etl-completa-airflow/internal/datasource/file"
)

// DefaultMaxNullRatio is the share of total_records that null_values may
// reach before a dataset fails the gate.
const DefaultMaxNullRatio = 0.10

// Violation is a dataset whose null count exceeds the gate limit.
type Violation struct {
	Dataset      string
	NullValues   int
	TotalRecords int
	Limit        float64
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: null_values=%d > %.2f (total_records=%d)", v.Dataset, v.NullValues, v.Limit, v.TotalRecords)
}

// GateError is returned when the pipeline gate rejects a run.
type GateError struct {
	Missing    []string
	Violations []Violation
}

func (e *GateError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing artifacts: "+strings.Join(e.Missing, ", "))
	}
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return "quality gate failed: " + strings.Join(parts, "; ")
}

// CheckArtifacts returns a *GateError listing every path that is not an
// existing regular file.
func CheckArtifacts(ctx context.Context, paths ...string) error {
	var missing []string
	for _, p := range paths {
		ok, err := file.NewLocal(p).Exists(ctx)
		if err != nil {
			return err
		}
		if !ok {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return &GateError{Missing: missing}
	}
	return nil
}

// Gate fails any report with null_values > maxNullRatio*total_records.
// A non-positive ratio selects DefaultMaxNullRatio.
func Gate(reports []Report, maxNullRatio float64) error {
	if maxNullRatio <= 0 {
		maxNullRatio = DefaultMaxNullRatio
	}
	var ge GateError
	for _, r := range reports {
		limit := maxNullRatio * float64(r.TotalRecords)
		if float64(r.NullValues) > limit {
			ge.Violations = append(ge.Violations, Violation{
				Dataset: r.Dataset, NullValues: r.NullValues, TotalRecords: r.TotalRecords, Limit: limit,
			})
			continue
		}
		log.Printf("quality: gate pass dataset=%s nulls=%d limit=%.2f", r.Dataset, r.NullValues, limit)
	}
	if len(ge.Violations) > 0 {
		return &ge
	}
	return nil
}
