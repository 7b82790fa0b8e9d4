package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/multiview/internal/ir"
)

// RecordRemoval appends a removal event to the audit log.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - writing the same event
// twice is a no-op. The ID is computed when the caller left it empty.
//
// Implements engine.AuditSink.
func (s *Store) RecordRemoval(ctx context.Context, r ir.Removal) error {
	if r.ID == "" {
		id, err := ir.RemovalID(r)
		if err != nil {
			return fmt.Errorf("record removal: %w", err)
		}
		r.ID = id
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO removals (id, key, identity, cause, view, bucket, seq, latency)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, r.ID, r.Key, r.Identity, string(r.Cause), r.View, r.Bucket, r.Seq, r.Latency)
	if err != nil {
		return fmt.Errorf("record removal: %w", err)
	}
	return nil
}

// ReadRemovals returns the whole audit log.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) when the log is empty.
func (s *Store) ReadRemovals(ctx context.Context) ([]ir.Removal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key, identity, cause, view, bucket, seq, latency
		FROM removals
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query removals: %w", err)
	}
	defer rows.Close()

	out := []ir.Removal{}
	for rows.Next() {
		r, err := scanRemoval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate removals: %w", err)
	}
	return out, nil
}

// LastRemoval returns the most recent take or sweep of key. Stale audit
// entries are ignored. Returns false when key was never removed.
func (s *Store) LastRemoval(ctx context.Context, key string) (ir.Removal, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, key, identity, cause, view, bucket, seq, latency
		FROM removals
		WHERE key = ? AND cause != 'stale'
		ORDER BY seq DESC, id COLLATE BINARY DESC
		LIMIT 1
	`, key)

	r, err := scanRemoval(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Removal{}, false, nil
	}
	if err != nil {
		return ir.Removal{}, false, err
	}
	return r, true, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRemoval(row rowScanner) (ir.Removal, error) {
	var (
		r     ir.Removal
		cause string
	)
	if err := row.Scan(&r.ID, &r.Key, &r.Identity, &cause, &r.View, &r.Bucket, &r.Seq, &r.Latency); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.Removal{}, err
		}
		return ir.Removal{}, fmt.Errorf("scan removal: %w", err)
	}
	r.Cause = ir.RemovalCause(cause)
	return r, nil
}
