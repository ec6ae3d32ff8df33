// Package extract pulls the raw inputs of a run and writes them as CSV
// artifacts: sales, customers and products from the operational database,
// users and posts from the external API.
//
// The database and API extractors run concurrently; the first failure cancels
// the other and is returned.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/afonsolelis/etl-completa-airflow/internal/metrics"
	"github.com/afonsolelis/etl-completa-airflow/internal/records"
)

// Raw artifact file names.
const (
	SalesFile     = "sales_data.csv"
	CustomersFile = "customers_data.csv"
	ProductsFile  = "products_data.csv"
	UsersFile     = "external_users.csv"
	PostsFile     = "external_posts.csv"
)

// SalesSource is the operational database.
type SalesSource interface {
	Sales(ctx context.Context, from, to time.Time) (records.Table, error)
	Customers(ctx context.Context) (records.Table, error)
	Products(ctx context.Context) (records.Table, error)
}

// FeedSource is the external API.
type FeedSource interface {
	Users(ctx context.Context) (records.Table, error)
	Posts(ctx context.Context) (records.Table, error)
}

// Options control one extraction.
type Options struct {
	RawDir string
	// From and To bound the sales window. Zero values select yesterday
	// through today relative to Now.
	From, To time.Time
	Now      func() time.Time
	Job      string
}

// Result lists the row counts written per artifact.
type Result map[string]int

// Window returns the sales window of o.
func (o Options) Window() (time.Time, time.Time) {
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	today := records.Day(now())
	from, to := o.From, o.To
	if from.IsZero() {
		from = today.AddDate(0, 0, -1)
	}
	if to.IsZero() {
		to = today
	}
	return from, to
}

// Run extracts from db and api concurrently and writes the raw CSVs into
// opts.RawDir. A nil api skips the feeds.
func Run(ctx context.Context, db SalesSource, api FeedSource, opts Options) (Result, error) {
	if db == nil {
		return nil, fmt.Errorf("extract: nil database source")
	}
	if opts.Job == "" {
		opts.Job = "etl"
	}
	from, to := opts.Window()

	var dbRes, apiRes Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		done := metrics.Track(opts.Job, "extract_db")
		var err error
		dbRes, err = writeAll(opts, []job{
			{SalesFile, func() (records.Table, error) { return db.Sales(gctx, from, to) }},
			{CustomersFile, func() (records.Table, error) { return db.Customers(gctx) }},
			{ProductsFile, func() (records.Table, error) { return db.Products(gctx) }},
		})
		done(err)
		return err
	})
	if api != nil {
		g.Go(func() error {
			done := metrics.Track(opts.Job, "extract_api")
			var err error
			apiRes, err = writeAll(opts, []job{
				{UsersFile, func() (records.Table, error) { return api.Users(gctx) }},
				{PostsFile, func() (records.Table, error) { return api.Posts(gctx) }},
			})
			done(err)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := Result{}
	for _, part := range []Result{dbRes, apiRes} {
		for k, v := range part {
			res[k] = v
			metrics.RecordRow(opts.Job, "extracted", int64(v))
		}
	}
	return res, nil
}

type job struct {
	file  string
	fetch func() (records.Table, error)
}

func writeAll(opts Options, jobs []job) (Result, error) {
	res := Result{}
	for _, j := range jobs {
		t, err := j.fetch()
		if err != nil {
			return nil, err
		}
		path := filepath.Join(opts.RawDir, j.file)
		if err := records.WriteCSVFile(path, t); err != nil {
			return nil, fmt.Errorf("extract: write %s: %w", path, err)
		}
		res[j.file] = t.Len()
	}
	return res, nil
}
