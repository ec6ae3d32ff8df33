package storage

import (
	"context"
	"fmt"
	"log"
	"time"
)

// CopyFn abstracts a backend's bulk insert; Tx.CopyInto bound to a table is
// the usual implementation.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// DefaultBatchSize bounds the rows handed to one CopyFn call.
const DefaultBatchSize = 5000

// CopyBatches splits rows into batches of batchSize and calls copyFn for each.
// It returns the total reported by copyFn and stops at the first error.
// Progress is logged per batch.
func CopyBatches(ctx context.Context, table string, columns []string, rows [][]any, batchSize int, copyFn CopyFn) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}

	var (
		total   int64
		batches int
		start   = time.Now()
	)
	for lo := 0; lo < len(rows); lo += batchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		hi := min(lo+batchSize, len(rows))
		n, err := copyFn(ctx, columns, rows[lo:hi])
		total += n
		if err != nil {
			log.Printf("loader: COPY failed table=%s after=%d total=%d err=%v", table, n, total, err)
			return total, err
		}
		batches++
		elapsed := time.Since(start)
		rps := float64(0)
		if elapsed > 0 {
			rps = float64(total) / elapsed.Seconds()
		}
		log.Printf("loader: table=%s batch #%d inserted=%d total_inserted=%d rps=%.0f elapsed=%s",
			table, batches, n, total, rps, elapsed.Truncate(time.Millisecond))
	}
	return total, nil
}
