package sqljournal

import (
	"context"
	"fmt"
	"time"

	"github.com/fluxorio/asyncnet/pkg/async"
	"github.com/fluxorio/asyncnet/pkg/codec"
	"github.com/fluxorio/asyncnet/pkg/journal"
	"github.com/fluxorio/asyncnet/pkg/telemetry/metrics"
)

// Journal is a journal.Journal backed by a SQL table, for deployments that
// aggregate completion records from many clients into one server-side
// store rather than keeping each client's records in its own local file.
type Journal struct {
	pool    *Pool
	table   string
	metrics *metrics.Metrics
}

// Open builds a Journal against config, creating its backing table if it
// doesn't already exist. The table schema is deliberately minimal —
// offset, token, status, payload, recorded_at — since richer querying
// belongs to whatever aggregates many clients' journals, not this module.
func Open(ctx context.Context, config PoolConfig, table string) (*Journal, error) {
	if table == "" {
		table = "asyncnet_journal"
	}
	pool, err := NewPool(config)
	if err != nil {
		return nil, fmt.Errorf("sqljournal: open: %w", err)
	}
	j := &Journal{pool: pool, table: table, metrics: metrics.GetMetrics()}
	if err := j.ensureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) ensureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		offset_seq INTEGER PRIMARY KEY AUTOINCREMENT,
		token TEXT NOT NULL,
		status INTEGER NOT NULL,
		payload BLOB,
		recorded_at TIMESTAMP NOT NULL
	)`, j.table)
	if j.pool.config.DriverName != DriverSQLite {
		// Postgres/pgx don't have AUTOINCREMENT; use a regular serial-like
		// identity column instead.
		ddl = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			offset_seq BIGSERIAL PRIMARY KEY,
			token TEXT NOT NULL,
			status INTEGER NOT NULL,
			payload BYTEA,
			recorded_at TIMESTAMPTZ NOT NULL
		)`, j.table)
	}
	_, err := j.pool.Exec(ctx, ddl)
	return err
}

func (j *Journal) Write(ctx context.Context, rec journal.Record) (offset uint64, err error) {
	start := time.Now()
	defer func() { j.metrics.RecordJournalWrite("sql", time.Since(start), err) }()

	recordedAt := rec.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = start
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (token, status, payload, recorded_at) VALUES ($1, $2, $3, $4)`,
		j.table,
	)
	if j.pool.config.DriverName == DriverSQLite {
		query = fmt.Sprintf(
			`INSERT INTO %s (token, status, payload, recorded_at) VALUES (?, ?, ?, ?)`,
			j.table,
		)
	}

	result, execErr := j.pool.Exec(ctx, query, rec.Token, int(rec.Status), rec.Payload, recordedAt)
	if execErr != nil {
		return 0, execErr
	}
	id, idErr := result.LastInsertId()
	if idErr != nil {
		// Postgres drivers don't support LastInsertId; the caller only
		// needs a stable offset for pagination, not a specific value back
		// from this write.
		return 0, nil
	}
	return uint64(id), nil
}

func (j *Journal) Read(ctx context.Context, from uint64, limit int) ([]journal.Record, error) {
	query := fmt.Sprintf(
		`SELECT offset_seq, token, status, payload, recorded_at FROM %s WHERE offset_seq >= $1 ORDER BY offset_seq LIMIT $2`,
		j.table,
	)
	if j.pool.config.DriverName == DriverSQLite {
		query = fmt.Sprintf(
			`SELECT offset_seq, token, status, payload, recorded_at FROM %s WHERE offset_seq >= ? ORDER BY offset_seq LIMIT ?`,
			j.table,
		)
	}

	rows, err := j.pool.Query(ctx, query, from, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []journal.Record
	for rows.Next() {
		var (
			offset     uint64
			token      string
			status     int
			payload    []byte
			recordedAt time.Time
		)
		if err := rows.Scan(&offset, &token, &status, &payload, &recordedAt); err != nil {
			return nil, err
		}
		out = append(out, journal.Record{
			Offset:     offset,
			Token:      token,
			Status:     async.Status(status),
			Payload:    payload,
			RecordedAt: recordedAt,
		})
	}
	return out, rows.Err()
}

func (j *Journal) Close() error { return j.pool.Close() }

var _ journal.Journal = (*Journal)(nil)

// EncodePayload marshals v for use as a journal.Record's Payload, reusing
// the module's single codec path rather than calling json.Marshal
// directly.
func EncodePayload(v interface{}) ([]byte, error) { return codec.Encode(v) }
