package main

import (
	"testing"

	"github.com/afonsolelis/etl-completa-airflow/internal/config"
)

// TestApplyFlags verifies that only non-empty flags override the config.
func TestApplyFlags(t *testing.T) {
	t.Parallel()
	p := config.Default()
	p.Metrics.PushgatewayURL = "http://from-file:9091"

	applyFlags(&p, "2024-06-30", "datadog", "", "127.0.0.1:8125")

	if p.AsOf != "2024-06-30" || p.Metrics.Backend != "datadog" || p.Metrics.DatadogAddr != "127.0.0.1:8125" {
		t.Fatalf("flags not applied: %+v", p)
	}
	if p.Metrics.PushgatewayURL != "http://from-file:9091" {
		t.Fatalf("empty flag overrode file value: %q", p.Metrics.PushgatewayURL)
	}
}

func TestSetupMetrics_DisabledAndBroken(t *testing.T) {
	t.Parallel()
	for _, backend := range []string{"", "none", "graphite"} {
		p := config.Default()
		p.Metrics.Backend = backend
		flush := setupMetrics(p, "r", false)
		flush()
		flush()
	}

	// A datadog backend without an address fails to init and falls back.
	p := config.Default()
	p.Metrics.Backend = "datadog"
	setupMetrics(p, "r", true)()
}
