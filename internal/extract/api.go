package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/afonsolelis/etl-completa-airflow/internal/datasource/httpds"
	"github.com/afonsolelis/etl-completa-airflow/internal/records"
)

// DefaultAPIBaseURL serves the users and posts feeds when none is configured.
const DefaultAPIBaseURL = "https://jsonplaceholder.typicode.com"

// ExtractionTimestamp is appended to every feed row.
const ExtractionTimestamp = "extraction_timestamp"

// API extracts the external users and posts feeds.
type API struct {
	client  *httpds.Client
	baseURL string
	now     func() time.Time
}

// NewAPI returns an API reading from baseURL (DefaultAPIBaseURL when empty).
// A non-empty key is sent as a Bearer token.
func NewAPI(baseURL, key string, timeout time.Duration) *API {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	return &API{
		client:  httpds.NewClient(httpds.Config{Timeout: timeout, BaseHeaders: httpds.WithBearer(key)}),
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// Users fetches <base>/users.
func (a *API) Users(ctx context.Context) (records.Table, error) {
	return a.feed(ctx, "external_users", "users")
}

// Posts fetches <base>/posts.
func (a *API) Posts(ctx context.Context) (records.Table, error) {
	return a.feed(ctx, "external_posts", "posts")
}

func (a *API) feed(ctx context.Context, name, path string) (records.Table, error) {
	var items []map[string]any
	if err := a.client.GetJSON(ctx, a.baseURL+"/"+path, &items); err != nil {
		return records.Table{}, fmt.Errorf("extract %s: %w", path, err)
	}
	t := FeedTable(name, items, a.now())
	log.Printf("extract: %s rows=%d", path, t.Len())
	return t, nil
}

// FeedTable flattens JSON objects into a table. Columns are the union of the
// object keys in sorted order followed by extraction_timestamp. Nested
// objects and arrays are kept as compact JSON text.
func FeedTable(name string, items []map[string]any, extractedAt time.Time) records.Table {
	keys := map[string]bool{}
	for _, it := range items {
		for k := range it {
			keys[k] = true
		}
	}
	delete(keys, ExtractionTimestamp)
	cols := make([]string, 0, len(keys)+1)
	for k := range keys {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	cols = append(cols, ExtractionTimestamp)

	stamp := extractedAt.Format(time.RFC3339)
	t := records.New(name, cols...)
	for _, it := range items {
		r := make(records.Record, len(cols))
		for _, c := range cols[:len(cols)-1] {
			r[c] = jsonCell(it[c])
		}
		r[ExtractionTimestamp] = stamp
		t.Rows = append(t.Rows, r)
	}
	return t
}

func jsonCell(v any) any {
	switch x := v.(type) {
	case nil, string, bool:
		return x
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
