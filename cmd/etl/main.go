package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/afonsolelis/etl-completa-airflow/internal/config"
	"github.com/afonsolelis/etl-completa-airflow/internal/metrics"
	"github.com/afonsolelis/etl-completa-airflow/internal/metrics/datadog"
	"github.com/afonsolelis/etl-completa-airflow/internal/metrics/prompush"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "github.com/afonsolelis/etl-completa-airflow/internal/storage/all"
)

// main is the entry point for the ETL binary. It resolves the pipeline
// config, initializes a metrics backend and runs the selected stages.
func main() {
	var (
		cfgPath           string
		envFile           string
		stage             string
		asOfFlg           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		datadogAddrFlg    string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "", "pipeline config JSON path, e.g. configs/pipelines/sales.json (defaults apply when empty)")
	flag.StringVar(&envFile, "env-file", ".env", "dotenv file loaded when present")
	flag.StringVar(&stage, "stage", StageAll, "stage to run: extract, transform, load, validate or all")
	flag.StringVar(&asOfFlg, "as-of", "", "reference time for recency fields (RFC 3339 or YYYY-MM-DD)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (none, pushgateway, datadog)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&datadogAddrFlg, "datadog-addr", "", "DogStatsD address (overrides env DATADOG_ADDR)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fatalf("load %s: %v", envFile, err)
	}

	// Resolve config: flag → env → file → default.
	p := config.Default()
	if cfgPath != "" {
		var err error
		if p, err = config.Load(cfgPath); err != nil {
			fatalf("%v", err)
		}
	}
	if err := config.ApplyEnv(&p, os.LookupEnv); err != nil {
		fatalf("env: %v", err)
	}
	applyFlags(&p, asOfFlg, metricsBackendFlg, pushGatewayURLFlg, datadogAddrFlg)

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.Err(issues) != nil {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	stages, err := stagesFor(stage)
	if err != nil {
		fatalf("%v", err)
	}

	runID := uuid.NewString()
	flush := setupMetrics(p, runID, *verbose)
	defer flush()

	asOf, err := config.ParseAsOf(p.AsOf, time.Now())
	if err != nil {
		fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := newRunner(p, runID, asOf)
	start := time.Now()
	if *verbose {
		log.Printf("pipeline: job=%s run_id=%s stages=%v warehouse=%s as_of=%s",
			p.Job, runID, stages, p.Warehouse.Kind, asOf.Format(time.RFC3339))
	}
	if err := r.Run(ctx, stages); err != nil {
		flush()
		log.Fatalf("%v", err)
	}
	log.Printf("pipeline: run_id=%s completed in %s", runID, time.Since(start).Truncate(time.Millisecond))
}

// applyFlags overrides p with every non-empty flag value.
func applyFlags(p *config.Pipeline, asOf, backend, gwURL, ddAddr string) {
	if asOf != "" {
		p.AsOf = asOf
	}
	if backend != "" {
		p.Metrics.Backend = backend
	}
	if gwURL != "" {
		p.Metrics.PushgatewayURL = gwURL
	}
	if ddAddr != "" {
		p.Metrics.DatadogAddr = ddAddr
	}
}

// setupMetrics installs the configured backend and returns a flush func
// that is safe to call more than once.
func setupMetrics(p config.Pipeline, runID string, verbose bool) func() {
	var b metrics.Backend
	var err error
	switch p.Metrics.Backend {
	case "pushgateway":
		b, err = prompush.NewBackend(prompush.Config{GatewayURL: p.Metrics.PushgatewayURL, Job: p.Job, RunID: runID})
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr: p.Metrics.DatadogAddr, Namespace: p.Metrics.Namespace, Tags: p.Metrics.Tags, RunID: runID,
		})
	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", p.Metrics.Backend)
		}
		return func() {}
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", p.Metrics.Backend)
		return func() {}
	}
	if err != nil {
		log.Printf("metrics: failed to init %s backend: %v; using nop", p.Metrics.Backend, err)
		return func() {}
	}

	log.Printf("metrics: backend=%v job_name=%v run_id=%s", p.Metrics.Backend, p.Job, runID)
	metrics.SetBackend(b)
	flushed := false
	return func() {
		if flushed {
			return
		}
		flushed = true
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
