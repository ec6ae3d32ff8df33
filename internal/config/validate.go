package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single lint finding.
//
// Path is a dotted path into the config (e.g. "warehouse.kind",
// "warehouse.time_range.end"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements error so an Issue can be returned on its own.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Known backend names.
var (
	WarehouseKinds  = []string{"postgres", "sqlite", "mssql"}
	MetricsBackends = []string{"none", "pushgateway", "datadog"}
)

// ValidatePipeline performs static validation of p without mutating it.
// Callers decide whether warnings are fatal.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(p.Job) == "" {
		add(SeverityError, "job", "job must not be empty; it labels metrics and logs")
	}
	if strings.TrimSpace(p.Paths.RawDir) == "" {
		add(SeverityError, "paths.raw_dir", "raw_dir must not be empty")
	}
	if strings.TrimSpace(p.Paths.ProcessedDir) == "" {
		add(SeverityError, "paths.processed_dir", "processed_dir must not be empty")
	}
	if p.Paths.RawDir != "" && p.Paths.RawDir == p.Paths.ProcessedDir {
		add(SeverityWarning, "paths.processed_dir", "processed_dir equals raw_dir; artifacts will share a directory")
	}

	if strings.TrimSpace(p.Source.DSN) == "" {
		add(SeverityWarning, "source.dsn", "source dsn is empty; the extract stage cannot run")
	}
	if !p.Source.SalesFrom.IsZero() && !p.Source.SalesTo.IsZero() && p.Source.SalesTo.Before(p.Source.SalesFrom.Time) {
		add(SeverityError, "source.sales_to", "sales_to %s is before sales_from %s", day(p.Source.SalesTo), day(p.Source.SalesFrom))
	}

	if !p.API.Disabled {
		if u, err := url.Parse(p.API.BaseURL); p.API.BaseURL != "" && (err != nil || u.Scheme == "" || u.Host == "") {
			add(SeverityError, "api.base_url", "base_url %q is not an absolute URL", p.API.BaseURL)
		}
		if p.API.TimeoutSeconds < 0 {
			add(SeverityError, "api.timeout_seconds", "timeout_seconds must be >= 0")
		}
	}

	issues = append(issues, validateWarehouse(p.Warehouse)...)

	if r := p.Quality.MaxNullRatio; r <= 0 || r > 1 {
		add(SeverityError, "quality.max_null_ratio", "max_null_ratio must be in (0, 1], got %v", r)
	}

	issues = append(issues, validateMetrics(p.Metrics)...)

	if _, err := ParseAsOf(p.AsOf, time.Time{}); err != nil {
		add(SeverityError, "as_of", "%v", err)
	}
	return issues
}

func validateWarehouse(w Warehouse) []Issue {
	var issues []Issue
	switch {
	case strings.TrimSpace(w.Kind) == "":
		issues = append(issues, Issue{SeverityError, "warehouse.kind", "warehouse.kind must not be empty"})
	case !contains(WarehouseKinds, w.Kind):
		issues = append(issues, Issue{SeverityError, "warehouse.kind", fmt.Sprintf("unknown warehouse kind %q; want one of %s", w.Kind, strings.Join(WarehouseKinds, ", "))})
	}
	if strings.TrimSpace(w.DSN) == "" {
		issues = append(issues, Issue{SeverityError, "warehouse.dsn", "warehouse dsn must not be empty"})
	}
	if w.BatchSize < 0 {
		issues = append(issues, Issue{SeverityError, "warehouse.batch_size", "batch_size must be >= 0"})
	}

	start, end := w.TimeRange.Start, w.TimeRange.End
	switch {
	case start.IsZero() != end.IsZero():
		issues = append(issues, Issue{SeverityError, "warehouse.time_range", "start and end must be set together"})
	case start.IsZero():
		issues = append(issues, Issue{SeverityWarning, "warehouse.time_range", "no time range; dim_time will only cover sale dates"})
	case end.Before(start.Time):
		issues = append(issues, Issue{SeverityError, "warehouse.time_range.end", fmt.Sprintf("end %s is before start %s", day(end), day(start))})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	backend := m.Backend
	if backend == "" {
		backend = "none"
	}
	if !contains(MetricsBackends, backend) {
		return append(issues, Issue{SeverityError, "metrics.backend", fmt.Sprintf("unknown metrics backend %q; want one of %s", m.Backend, strings.Join(MetricsBackends, ", "))})
	}
	if backend == "pushgateway" && m.PushgatewayURL == "" {
		issues = append(issues, Issue{SeverityError, "metrics.pushgateway_url", "pushgateway backend requires pushgateway_url"})
	}
	if backend == "datadog" && m.DatadogAddr == "" {
		issues = append(issues, Issue{SeverityError, "metrics.datadog_addr", "datadog backend requires datadog_addr"})
	}
	return issues
}

// Err joins the error-severity issues, or returns nil when there are none.
func Err(issues []Issue) error {
	var errs []error
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			errs = append(errs, iss)
		}
	}
	return errors.Join(errs...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func day(d Date) string { return d.Format("2006-01-02") }
