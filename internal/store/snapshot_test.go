package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/multiview/internal/engine"
	"github.com/roach88/multiview/internal/ir"
	"github.com/roach88/multiview/internal/profile"
	"github.com/roach88/multiview/internal/testutil"
)

func sampleSnapshot() ir.Snapshot {
	return ir.Snapshot{
		Profile: "inventory",
		Clock:   5,
		Records: []ir.Record{
			{Key: "x", Name: "Bolts", Identity: "id-0001", Expiry: "2024-01-01", Bucket: "A", Seq: 1},
			{Key: "z", Name: "Nuts", Identity: "id-0003", Expiry: "2024-03-01", Bucket: "B", Seq: 3},
		},
		Views: []ir.ViewState{
			{View: "rack", Bucket: "A", Entries: []ir.Entry{
				{Key: "x", Identity: "id-0001", Seq: 1, Expiry: "2024-01-01", Bucket: "A"},
				{Key: "y", Identity: "id-0002", Seq: 2, Expiry: "2024-02-01", Bucket: "A"},
			}},
			{View: "rack", Bucket: "B", Entries: []ir.Entry{
				{Key: "z", Identity: "id-0003", Seq: 3, Expiry: "2024-03-01", Bucket: "B"},
			}},
			{View: "rack", Bucket: "C", Entries: []ir.Entry{}},
			{View: "expiry", Entries: []ir.Entry{
				{Key: "x", Identity: "id-0001", Seq: 1, Expiry: "2024-01-01", Bucket: "A"},
				{Key: "y", Identity: "id-0002", Seq: 2, Expiry: "2024-02-01", Bucket: "A"},
				{Key: "z", Identity: "id-0003", Seq: 3, Expiry: "2024-03-01", Bucket: "B"},
			}},
		},
		Stats: []ir.ChannelTotal{{Channel: "rack", Sum: 4, Count: 2}},
	}
}

func TestLoad_EmptyDatabase(t *testing.T) {
	s := createTestStore(t)

	_, ok, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	want := sampleSnapshot()

	require.NoError(t, s.Save(context.Background(), want))

	got, ok, err := s.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestSave_Replaces(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleSnapshot()))

	next := ir.Snapshot{
		Profile: "inventory",
		Clock:   9,
		Records: []ir.Record{{Key: "q", Name: "Pins", Identity: "id-0009", Expiry: "2025-01-01", Bucket: "D", Seq: 9}},
		Views: []ir.ViewState{
			{View: "rack", Bucket: "D", Entries: []ir.Entry{{Key: "q", Identity: "id-0009", Seq: 9, Expiry: "2025-01-01", Bucket: "D"}}},
			{View: "expiry", Entries: []ir.Entry{{Key: "q", Identity: "id-0009", Seq: 9, Expiry: "2025-01-01", Bucket: "D"}}},
		},
		Stats: []ir.ChannelTotal{},
	}
	require.NoError(t, s.Save(ctx, next))

	got, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, next, got)
}

func TestSaveLoad_ProfileSourceAndStaleCounts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	want := sampleSnapshot()
	want.ProfileSource = `profile: inventory: {purpose: "p", payload: "expiry", views: [{name: "rack", kind: "bucket_fifo"}]}`
	want.Stale = []ir.StaleCount{{View: "expiry", Count: 4}, {View: "rack", Count: 1}}

	require.NoError(t, s.Save(ctx, want))
	got, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	// A later save without them clears both.
	require.NoError(t, s.Save(ctx, sampleSnapshot()))
	got, _, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.ProfileSource)
	assert.Nil(t, got.Stale)
}

func TestLoad_DetectsTamperedProfileSource(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	snap := sampleSnapshot()
	snap.ProfileSource = `profile: inventory: {}`
	require.NoError(t, s.Save(ctx, snap))

	_, err := s.db.Exec(`UPDATE meta SET value = 'profile: other: {}' WHERE key = 'profile_source'`)
	require.NoError(t, err)

	_, _, err = s.Load(ctx)
	assert.ErrorIs(t, err, ErrDigestMismatch)
}

func TestLoad_DetectsTampering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleSnapshot()))

	_, err := s.db.Exec(`UPDATE records SET name = 'Screws' WHERE key = 'x'`)
	require.NoError(t, err)

	_, _, err = s.Load(ctx)
	assert.ErrorIs(t, err, ErrDigestMismatch)
}

func TestSave_KeepsRemovals(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.RecordRemoval(ctx, ir.Removal{Key: "k", Identity: "i", Cause: ir.CauseTake, View: "normal", Seq: 2, Latency: 1}))

	require.NoError(t, s.Save(ctx, sampleSnapshot()))

	removals, err := s.ReadRemovals(ctx)
	require.NoError(t, err)
	assert.Len(t, removals, 1)
}

// TestEngineRoundTrip persists a live engine across two database handles,
// the way consecutive CLI invocations do.
func TestEngineRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mv.db")
	p, err := profile.Builtin("triage")
	require.NoError(t, err)

	s1, err := Open(path)
	require.NoError(t, err)
	e, err := engine.New(p,
		engine.WithClock(testutil.NewDeterministicClock()),
		engine.WithIdentities(testutil.NewSequentialIdentities("id")),
		engine.WithAuditSink(s1))
	require.NoError(t, err)

	for i, sev := range []int64{3, 5, 1, 5} {
		_, err := e.Add(ctx, engine.AddRequest{Key: string(rune('a' + i)), Severity: sev})
		require.NoError(t, err)
	}
	taken, err := e.TakeNext(ctx, engine.ViewRef{Name: "priority"})
	require.NoError(t, err)
	assert.Equal(t, "b", taken.Key)
	require.NoError(t, s1.Save(ctx, e.Export()))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	snap, ok, err := s2.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	r, err := engine.Restore(p, snap, engine.WithAuditSink(s2))
	require.NoError(t, err)

	var order []string
	for {
		rec, err := r.TakeNext(ctx, engine.ViewRef{Name: "normal"})
		if engine.IsEmpty(err) {
			break
		}
		require.NoError(t, err)
		order = append(order, rec.Key)
	}
	assert.Equal(t, []string{"a", "c", "d"}, order, "b stays gone after reload")

	removals, err := s2.ReadRemovals(ctx)
	require.NoError(t, err)
	require.Len(t, removals, 4)
	assert.Equal(t, "b", removals[0].Key)
	assert.Equal(t, int64(5), removals[0].Seq)
	assert.Equal(t, int64(6), removals[1].Seq, "clock resumes after reload")
}
