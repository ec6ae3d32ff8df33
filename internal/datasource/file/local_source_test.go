package file

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeArtifact(t *testing.T, name, payload string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(payload), 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	return p
}

// TestLocalOpen covers success, missing file, and pre-canceled context.
func TestLocalOpen(t *testing.T) {
	t.Parallel()

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	cases := []struct {
		name            string
		path            func(t *testing.T) string
		ctx             context.Context
		wantErrIs       error
		wantErrContains string
		wantContent     string
	}{
		{
			name:        "reads_content",
			path:        func(t *testing.T) string { return writeArtifact(t, "sales_data.csv", "sale_id\n1\n") },
			ctx:         context.Background(),
			wantContent: "sale_id\n1\n",
		},
		{
			name:            "missing_file_wraps_not_exist",
			path:            func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing.csv") },
			ctx:             context.Background(),
			wantErrIs:       os.ErrNotExist,
			wantErrContains: "open ",
		},
		{
			name:      "pre_canceled_context_short_circuits",
			path:      func(t *testing.T) string { return writeArtifact(t, "x.csv", "ignored") },
			ctx:       canceled,
			wantErrIs: context.Canceled,
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			rc, err := NewLocal(c.path(t)).Open(c.ctx)
			if c.wantErrIs != nil {
				if !errors.Is(err, c.wantErrIs) {
					t.Fatalf("errors.Is(%v, %v) = false", err, c.wantErrIs)
				}
				if c.wantErrContains != "" && !strings.Contains(err.Error(), c.wantErrContains) {
					t.Fatalf("error %q does not contain %q", err, c.wantErrContains)
				}
				if rc != nil {
					_ = rc.Close()
					t.Fatalf("got non-nil ReadCloser on error: %T", rc)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open() unexpected error: %v", err)
			}
			defer rc.Close()

			got, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("reading: %v", err)
			}
			if string(got) != c.wantContent {
				t.Fatalf("content mismatch: got %q, want %q", got, c.wantContent)
			}
		})
	}
}

func TestLocalExists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	present := writeArtifact(t, "data_quality_report.json", "[]")
	if ok, err := NewLocal(present).Exists(ctx); err != nil || !ok {
		t.Fatalf("Exists(present) = %v, %v; want true, nil", ok, err)
	}

	missing := filepath.Join(t.TempDir(), "nope.csv")
	if ok, err := NewLocal(missing).Exists(ctx); err != nil || ok {
		t.Fatalf("Exists(missing) = %v, %v; want false, nil", ok, err)
	}

	dir := t.TempDir()
	if ok, err := NewLocal(dir).Exists(ctx); err != nil || ok {
		t.Fatalf("Exists(dir) = %v, %v; want false, nil", ok, err)
	}
}
