// Package config defines the JSON configuration of a warehouse run, the
// environment overrides applied on top of it and a static linter.
//
// Example (trimmed):
//
//	{
//	  "job": "sales_etl",
//	  "paths":     { "raw_dir": "data/raw", "processed_dir": "data/processed" },
//	  "source":    { "dsn": "postgresql://dataops@localhost:5432/dataops" },
//	  "api":       { "base_url": "https://jsonplaceholder.typicode.com" },
//	  "warehouse": { "kind": "postgres", "dsn": "...", "time_range": { "start": "2024-01-01", "end": "2025-12-31" } },
//	  "quality":   { "max_null_ratio": 0.1 },
//	  "metrics":   { "backend": "none" }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/afonsolelis/etl-completa-airflow/internal/records"
)

// Pipeline is the top-level object decoded from a config file.
type Pipeline struct {
	// Job labels metrics and logs.
	Job       string    `json:"job"`
	Paths     Paths     `json:"paths"`
	Source    Source    `json:"source"`
	API       API       `json:"api"`
	Warehouse Warehouse `json:"warehouse"`
	Quality   Quality   `json:"quality"`
	Metrics   Metrics   `json:"metrics"`
	// AsOf is the reference time for recency-derived fields (RFC 3339 or
	// YYYY-MM-DD). Empty means the wall clock at start.
	AsOf string `json:"as_of"`
}

// Paths locate the run artifacts.
type Paths struct {
	RawDir       string `json:"raw_dir"`
	ProcessedDir string `json:"processed_dir"`
}

// Source is the operational database the extract stage reads.
type Source struct {
	DSN string `json:"dsn"`
	// SalesFrom and SalesTo bound the sales window; empty means yesterday
	// through today.
	SalesFrom Date `json:"sales_from"`
	SalesTo   Date `json:"sales_to"`
}

// API is the external JSON feed.
type API struct {
	// Disabled skips the users/posts feeds.
	Disabled       bool   `json:"disabled"`
	BaseURL        string `json:"base_url"`
	Key            string `json:"key"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Warehouse selects the target database.
type Warehouse struct {
	// Kind is a registered storage backend: postgres, sqlite or mssql.
	Kind      string    `json:"kind"`
	DSN       string    `json:"dsn"`
	BatchSize int       `json:"batch_size"`
	TimeRange TimeRange `json:"time_range"`
}

// TimeRange bounds the time dimension.
type TimeRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Quality configures the pipeline gate.
type Quality struct {
	MaxNullRatio float64 `json:"max_null_ratio"`
}

// Metrics selects the metrics backend: none, pushgateway or datadog.
type Metrics struct {
	Backend        string   `json:"backend"`
	PushgatewayURL string   `json:"pushgateway_url"`
	DatadogAddr    string   `json:"datadog_addr"`
	Namespace      string   `json:"namespace"`
	Tags           []string `json:"tags"`
}

// Date is a calendar day encoded as "YYYY-MM-DD". The zero value is unset.
type Date struct{ time.Time }

// ParseDate parses "YYYY-MM-DD" as a UTC day.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(records.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	v, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(d.Format(records.DateLayout))
}

// Default returns the configuration used when no file is given.
func Default() Pipeline {
	start, _ := ParseDate("2024-01-01")
	end, _ := ParseDate("2025-12-31")
	return Pipeline{
		Job:   "sales_etl",
		Paths: Paths{RawDir: "data/raw", ProcessedDir: "data/processed"},
		API:   API{BaseURL: "https://jsonplaceholder.typicode.com", TimeoutSeconds: 30},
		Warehouse: Warehouse{
			Kind:      "postgres",
			BatchSize: 5000,
			TimeRange: TimeRange{Start: start, End: end},
		},
		Quality: Quality{MaxNullRatio: 0.10},
		Metrics: Metrics{Backend: "none"},
	}
}

// Load decodes the file at path over Default. Unknown fields are an error.
func Load(path string) (Pipeline, error) {
	p := Default()
	f, err := os.Open(path)
	if err != nil {
		return p, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, fmt.Errorf("decode config %s: %w", path, err)
	}
	return p, nil
}

// Environment variables read by ApplyEnv.
const (
	EnvSourceDSN      = "SOURCE_DB_CONNECTION"
	EnvWarehouseDSN   = "WAREHOUSE_DB_CONNECTION"
	EnvWarehouseKind  = "WAREHOUSE_KIND"
	EnvAPIBaseURL     = "API_BASE_URL"
	EnvAPIKey         = "API_KEY"
	EnvMetricsBackend = "METRICS_BACKEND"
	EnvPushgatewayURL = "PUSHGATEWAY_URL"
	EnvDatadogAddr    = "DATADOG_ADDR"
	EnvAsOf           = "ETL_AS_OF"
	EnvMaxNullRatio   = "ETL_MAX_NULL_RATIO"
)

// ApplyEnv overrides p with every variable that lookup reports as set.
// Pass os.LookupEnv in production.
func ApplyEnv(p *Pipeline, lookup func(string) (string, bool)) error {
	str := map[string]*string{
		EnvSourceDSN:      &p.Source.DSN,
		EnvWarehouseDSN:   &p.Warehouse.DSN,
		EnvWarehouseKind:  &p.Warehouse.Kind,
		EnvAPIBaseURL:     &p.API.BaseURL,
		EnvAPIKey:         &p.API.Key,
		EnvMetricsBackend: &p.Metrics.Backend,
		EnvPushgatewayURL: &p.Metrics.PushgatewayURL,
		EnvDatadogAddr:    &p.Metrics.DatadogAddr,
		EnvAsOf:           &p.AsOf,
	}
	for name, dst := range str {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}
	if v, ok := lookup(EnvMaxNullRatio); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxNullRatio, err)
		}
		p.Quality.MaxNullRatio = f
	}
	return nil
}

// ParseAsOf resolves the as-of reference time. Empty returns now.
func ParseAsOf(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("as_of: %w", err)
	}
	return d.Time, nil
}
