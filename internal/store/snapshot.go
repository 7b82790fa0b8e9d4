package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/multiview/internal/ir"
)

const (
	metaProfile       = "profile"
	metaProfileSource = "profile_source"
	metaClock         = "clock"
	metaDigest        = "digest"
)

// ErrDigestMismatch is returned by Load when the stored snapshot does not
// hash to the digest saved with it.
var ErrDigestMismatch = errors.New("snapshot digest mismatch")

// Save replaces the stored snapshot with snap in one transaction.
// The removal audit log is not touched.
func (s *Store) Save(ctx context.Context, snap ir.Snapshot) (err error) {
	digest, err := ir.SnapshotDigest(snap)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save snapshot: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, table := range []string{"view_entries", "view_states", "records", "stats", "stale_counts", "meta"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("save snapshot: clear %s: %w", table, err)
		}
	}

	meta := map[string]string{
		metaProfile: snap.Profile,
		metaClock:   strconv.FormatInt(snap.Clock, 10),
		metaDigest:  digest,
	}
	if snap.ProfileSource != "" {
		meta[metaProfileSource] = snap.ProfileSource
	}
	for k, v := range meta {
		if _, err = tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("save snapshot: meta %s: %w", k, err)
		}
	}

	for _, rec := range snap.Records {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO records (key, name, identity, severity, expiry, bucket, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, rec.Key, rec.Name, rec.Identity, rec.Severity, rec.Expiry, rec.Bucket, rec.Seq)
		if err != nil {
			return fmt.Errorf("save snapshot: record %q: %w", rec.Key, err)
		}
	}

	for i, st := range snap.Views {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO view_states (view, bucket, ordinal) VALUES (?, ?, ?)
		`, st.View, st.Bucket, i)
		if err != nil {
			return fmt.Errorf("save snapshot: view %q: %w", st.View, err)
		}
		for pos, en := range st.Entries {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO view_entries (view, bucket, position, key, identity, seq, severity, expiry, home)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, st.View, st.Bucket, pos, en.Key, en.Identity, en.Seq, en.Severity, en.Expiry, en.Bucket)
			if err != nil {
				return fmt.Errorf("save snapshot: view %q entry %d: %w", st.View, pos, err)
			}
		}
	}

	for _, ct := range snap.Stats {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO stats (channel, sum, count) VALUES (?, ?, ?)
		`, ct.Channel, ct.Sum, ct.Count)
		if err != nil {
			return fmt.Errorf("save snapshot: stats %q: %w", ct.Channel, err)
		}
	}

	for _, sc := range snap.Stale {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO stale_counts (view, count) VALUES (?, ?)
		`, sc.View, sc.Count)
		if err != nil {
			return fmt.Errorf("save snapshot: stale count %q: %w", sc.View, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("save snapshot: commit: %w", err)
	}
	return nil
}

// Load reads the stored snapshot. Returns false when nothing was saved yet.
func (s *Store) Load(ctx context.Context) (ir.Snapshot, bool, error) {
	meta, err := s.readMeta(ctx)
	if err != nil {
		return ir.Snapshot{}, false, err
	}
	profile, ok := meta[metaProfile]
	if !ok {
		return ir.Snapshot{}, false, nil
	}

	clock, err := strconv.ParseInt(meta[metaClock], 10, 64)
	if err != nil {
		return ir.Snapshot{}, false, fmt.Errorf("load snapshot: clock %q: %w", meta[metaClock], err)
	}
	snap := ir.Snapshot{Profile: profile, ProfileSource: meta[metaProfileSource], Clock: clock}

	if snap.Records, err = s.readRecords(ctx); err != nil {
		return ir.Snapshot{}, false, err
	}
	if snap.Views, err = s.readViews(ctx); err != nil {
		return ir.Snapshot{}, false, err
	}
	if snap.Stats, err = s.readStats(ctx); err != nil {
		return ir.Snapshot{}, false, err
	}
	if snap.Stale, err = s.readStaleCounts(ctx); err != nil {
		return ir.Snapshot{}, false, err
	}

	digest, err := ir.SnapshotDigest(snap)
	if err != nil {
		return ir.Snapshot{}, false, fmt.Errorf("load snapshot: %w", err)
	}
	if digest != meta[metaDigest] {
		return ir.Snapshot{}, false, fmt.Errorf("load snapshot: %w", ErrDigestMismatch)
	}
	return snap, true, nil
}

func (s *Store) readMeta(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("query meta: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meta: %w", err)
	}
	return meta, nil
}

func (s *Store) readRecords(ctx context.Context) ([]ir.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, name, identity, severity, expiry, bucket, seq
		FROM records
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	out := []ir.Record{}
	for rows.Next() {
		var r ir.Record
		if err := rows.Scan(&r.Key, &r.Name, &r.Identity, &r.Severity, &r.Expiry, &r.Bucket, &r.Seq); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func (s *Store) readViews(ctx context.Context) ([]ir.ViewState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.view, s.bucket, e.key, e.identity, e.seq, e.severity, e.expiry, e.home
		FROM view_states s
		LEFT JOIN view_entries e ON e.view = s.view AND e.bucket = s.bucket
		ORDER BY s.ordinal ASC, e.position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query views: %w", err)
	}
	defer rows.Close()

	out := []ir.ViewState{}
	for rows.Next() {
		var (
			viewName, bucket string
			key, identity    sql.NullString
			seq, severity    sql.NullInt64
			expiry, home     sql.NullString
		)
		if err := rows.Scan(&viewName, &bucket, &key, &identity, &seq, &severity, &expiry, &home); err != nil {
			return nil, fmt.Errorf("scan view entry: %w", err)
		}
		if n := len(out); n == 0 || out[n-1].View != viewName || out[n-1].Bucket != bucket {
			out = append(out, ir.ViewState{View: viewName, Bucket: bucket, Entries: []ir.Entry{}})
		}
		if !key.Valid {
			continue
		}
		st := &out[len(out)-1]
		st.Entries = append(st.Entries, ir.Entry{
			Key:      key.String,
			Identity: identity.String,
			Seq:      seq.Int64,
			Severity: severity.Int64,
			Expiry:   expiry.String,
			Bucket:   home.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate views: %w", err)
	}
	return out, nil
}

func (s *Store) readStats(ctx context.Context) ([]ir.ChannelTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT channel, sum, count FROM stats ORDER BY channel COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	out := []ir.ChannelTotal{}
	for rows.Next() {
		var ct ir.ChannelTotal
		if err := rows.Scan(&ct.Channel, &ct.Sum, &ct.Count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		out = append(out, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}
	return out, nil
}

// readStaleCounts returns nil when no view has discarded anything.
func (s *Store) readStaleCounts(ctx context.Context) ([]ir.StaleCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT view, count FROM stale_counts ORDER BY view COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query stale counts: %w", err)
	}
	defer rows.Close()

	var out []ir.StaleCount
	for rows.Next() {
		var sc ir.StaleCount
		if err := rows.Scan(&sc.View, &sc.Count); err != nil {
			return nil, fmt.Errorf("scan stale count: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale counts: %w", err)
	}
	return out, nil
}
