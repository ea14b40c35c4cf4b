// Package journal defines the record shape and interface every terminal
// async.Block outcome can be persisted through for diagnostics and
// crash-recovery replay. Concrete backends live in pkg/journal/fsjournal
// (a local append-only file log) and pkg/journal/sqljournal (a SQL table),
// selected by a deployment's DriverName the way any database/sql-based
// backend picks its driver by name.
package journal

import (
	"context"
	"time"

	"github.com/fluxorio/asyncnet/pkg/async"
)

// Record is one terminal operation outcome worth persisting: the token a
// caller passed to async.Begin, the status it completed with, and whatever
// payload bytes the caller wants alongside it (typically the encoded
// result or error detail).
type Record struct {
	Offset     uint64
	Token      string
	Status     async.Status
	Payload    []byte
	RecordedAt time.Time
}

// Journal persists and replays Records. Write returns the offset assigned
// to rec. Read returns up to limit records at or after from, in offset
// order.
type Journal interface {
	Write(ctx context.Context, rec Record) (uint64, error)
	Read(ctx context.Context, from uint64, limit int) ([]Record, error)
	Close() error
}
