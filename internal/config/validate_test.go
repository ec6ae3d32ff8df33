package config

import (
	"errors"
	"strings"
	"testing"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func validPipeline() Pipeline {
	p := Default()
	p.Source.DSN = "postgresql://dataops@localhost:5432/dataops"
	p.Warehouse.DSN = "postgresql://dataops@localhost:5433/warehouse"
	return p
}

/*
TestValidatePipeline_ValidDefault verifies that the defaults plus both DSNs
produce no issues at all.
*/
func TestValidatePipeline_ValidDefault(t *testing.T) {
	t.Parallel()
	if issues := ValidatePipeline(validPipeline()); len(issues) != 0 {
		t.Fatalf("expected no issues; got %+v", issues)
	}
}

func TestValidatePipeline_MissingJob(t *testing.T) {
	t.Parallel()
	p := validPipeline()
	p.Job = "  "

	issues := ValidatePipeline(p)
	if !hasIssue(t, issues, SeverityError, "job", "job must not be empty") {
		t.Fatalf("expected SeverityError for job; got issues: %+v", issues)
	}
}

func TestValidatePipeline_Table(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Pipeline)
		sev    IssueSeverity
		path   string
		substr string
	}{
		{"empty raw dir", func(p *Pipeline) { p.Paths.RawDir = "" }, SeverityError, "paths.raw_dir", "must not be empty"},
		{"shared dirs", func(p *Pipeline) { p.Paths.ProcessedDir = p.Paths.RawDir }, SeverityWarning, "paths.processed_dir", "equals raw_dir"},
		{"no source dsn", func(p *Pipeline) { p.Source.DSN = "" }, SeverityWarning, "source.dsn", "extract stage"},
		{"inverted sales window", func(p *Pipeline) {
			p.Source.SalesFrom = mustDate(t, "2024-06-02")
			p.Source.SalesTo = mustDate(t, "2024-06-01")
		}, SeverityError, "source.sales_to", "before sales_from 2024-06-02"},
		{"relative api url", func(p *Pipeline) { p.API.BaseURL = "/users" }, SeverityError, "api.base_url", "absolute URL"},
		{"negative api timeout", func(p *Pipeline) { p.API.TimeoutSeconds = -1 }, SeverityError, "api.timeout_seconds", ">= 0"},
		{"unknown warehouse", func(p *Pipeline) { p.Warehouse.Kind = "mysql" }, SeverityError, "warehouse.kind", `unknown warehouse kind "mysql"`},
		{"empty warehouse kind", func(p *Pipeline) { p.Warehouse.Kind = "" }, SeverityError, "warehouse.kind", "must not be empty"},
		{"no warehouse dsn", func(p *Pipeline) { p.Warehouse.DSN = "" }, SeverityError, "warehouse.dsn", "must not be empty"},
		{"negative batch", func(p *Pipeline) { p.Warehouse.BatchSize = -5 }, SeverityError, "warehouse.batch_size", ">= 0"},
		{"half time range", func(p *Pipeline) { p.Warehouse.TimeRange.End = Date{} }, SeverityError, "warehouse.time_range", "set together"},
		{"no time range", func(p *Pipeline) { p.Warehouse.TimeRange = TimeRange{} }, SeverityWarning, "warehouse.time_range", "sale dates"},
		{"inverted time range", func(p *Pipeline) {
			p.Warehouse.TimeRange = TimeRange{Start: mustDate(t, "2025-01-01"), End: mustDate(t, "2024-01-01")}
		}, SeverityError, "warehouse.time_range.end", "before start"},
		{"zero null ratio", func(p *Pipeline) { p.Quality.MaxNullRatio = 0 }, SeverityError, "quality.max_null_ratio", "(0, 1]"},
		{"null ratio above one", func(p *Pipeline) { p.Quality.MaxNullRatio = 1.5 }, SeverityError, "quality.max_null_ratio", "got 1.5"},
		{"unknown metrics", func(p *Pipeline) { p.Metrics.Backend = "statsd" }, SeverityError, "metrics.backend", `"statsd"`},
		{"pushgateway without url", func(p *Pipeline) { p.Metrics.Backend = "pushgateway" }, SeverityError, "metrics.pushgateway_url", "requires"},
		{"datadog without addr", func(p *Pipeline) { p.Metrics.Backend = "datadog" }, SeverityError, "metrics.datadog_addr", "requires"},
		{"bad as_of", func(p *Pipeline) { p.AsOf = "yesterday" }, SeverityError, "as_of", "YYYY-MM-DD"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := validPipeline()
			tc.mutate(&p)
			issues := ValidatePipeline(p)
			if !hasIssue(t, issues, tc.sev, tc.path, tc.substr) {
				t.Fatalf("expected %s at %s containing %q; got %+v", tc.sev, tc.path, tc.substr, issues)
			}
		})
	}
}

func TestValidatePipeline_DisabledAPISkipsChecks(t *testing.T) {
	t.Parallel()
	p := validPipeline()
	p.API = API{Disabled: true, BaseURL: "::bad", TimeoutSeconds: -1}
	if issues := ValidatePipeline(p); len(issues) != 0 {
		t.Fatalf("expected no issues for disabled api; got %+v", issues)
	}
}

/*
TestErr_OnlyErrors verifies that Err ignores warnings and joins every
error-severity issue so errors.As finds them.
*/
func TestErr_OnlyErrors(t *testing.T) {
	t.Parallel()
	if err := Err([]Issue{{Severity: SeverityWarning, Path: "x", Message: "meh"}}); err != nil {
		t.Fatalf("warnings only: got %v; want nil", err)
	}

	issues := []Issue{
		{Severity: SeverityError, Path: "job", Message: "empty"},
		{Severity: SeverityWarning, Path: "source.dsn", Message: "empty"},
	}
	err := Err(issues)
	if err == nil {
		t.Fatalf("expected error")
	}
	var iss Issue
	if !errors.As(err, &iss) || iss.Path != "job" {
		t.Fatalf("errors.As: got %+v", iss)
	}
	if strings.Contains(err.Error(), "source.dsn") {
		t.Fatalf("warning leaked into error: %v", err)
	}
	if got, want := issues[0].Error(), "error at job: empty"; got != want {
		t.Fatalf("Error()=%q; want %q", got, want)
	}
}
