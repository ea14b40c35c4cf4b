package fsjournal

import (
	"context"
	"fmt"
	"time"

	"github.com/fluxorio/asyncnet/pkg/async"
	"github.com/fluxorio/asyncnet/pkg/codec"
	"github.com/fluxorio/asyncnet/pkg/journal"
	"github.com/fluxorio/asyncnet/pkg/telemetry/metrics"
)

// wireRecord is the JSON shape a journal.Record is encoded to before being
// handed to the underlying Store as an opaque []byte payload; the Store
// itself only knows about offsets and raw bytes, same as appendlog's
// original separation between the segment format and its caller's payload.
type wireRecord struct {
	Token      string    `json:"token"`
	Status     int       `json:"status"`
	Payload    []byte    `json:"payload"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Journal is a journal.Journal backed by a local append-only Store.
type Journal struct {
	store   Store
	metrics *metrics.Metrics
}

// Open builds a Journal rooted at dir, creating it if necessary.
func Open(cfg FSStoreConfig) (*Journal, error) {
	store, err := NewFSStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("fsjournal: open: %w", err)
	}
	return &Journal{store: store, metrics: metrics.GetMetrics()}, nil
}

func (j *Journal) Write(ctx context.Context, rec journal.Record) (offset uint64, err error) {
	start := time.Now()
	defer func() { j.metrics.RecordJournalWrite("fs", time.Since(start), err) }()

	wire := wireRecord{
		Token:      rec.Token,
		Status:     int(rec.Status),
		Payload:    rec.Payload,
		RecordedAt: rec.RecordedAt,
	}
	if wire.RecordedAt.IsZero() {
		wire.RecordedAt = start
	}
	data, encErr := codec.Encode(wire)
	if encErr != nil {
		return 0, fmt.Errorf("fsjournal: encode record: %w", encErr)
	}

	off, appendErr := j.store.Append(data)
	if appendErr != nil {
		return 0, appendErr
	}
	return uint64(off), nil
}

func (j *Journal) Read(ctx context.Context, from uint64, limit int) ([]journal.Record, error) {
	raw, err := j.store.Read(Offset(from), limit)
	if err != nil {
		return nil, err
	}
	out := make([]journal.Record, 0, len(raw))
	for _, r := range raw {
		var wire wireRecord
		if err := codec.Decode(r.Data, &wire); err != nil {
			return nil, fmt.Errorf("fsjournal: decode record at offset %d: %w", r.Offset, err)
		}
		out = append(out, journal.Record{
			Offset:     uint64(r.Offset),
			Token:      wire.Token,
			Status:     async.Status(wire.Status),
			Payload:    wire.Payload,
			RecordedAt: wire.RecordedAt,
		})
	}
	return out, nil
}

func (j *Journal) Close() error { return j.store.Close() }

var _ journal.Journal = (*Journal)(nil)
