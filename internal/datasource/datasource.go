// Package datasource defines where pipeline bytes come from. The file
// subpackage opens local artifacts; httpds talks to HTTP feeds.
package datasource

import (
	"context"
	"io"
)

// Source opens a stream of bytes. The caller closes it.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
