package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/multiview/internal/ir"
)

func TestRecordRemoval_ComputesIDAndIsIdempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	r := ir.Removal{Key: "a", Identity: "id-0001", Cause: ir.CauseTake, View: "normal", Seq: 3, Latency: 2}

	require.NoError(t, s.RecordRemoval(ctx, r))
	require.NoError(t, s.RecordRemoval(ctx, r))

	got, err := s.ReadRemovals(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	r.ID = ir.MustRemovalID(r)
	assert.Equal(t, r, got[0])
}

func TestReadRemovals_Ordering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	in := []ir.Removal{
		{ID: "b", Key: "k2", Identity: "i2", Cause: ir.CauseSweep, View: "expiry", Seq: 7},
		{ID: "c", Key: "k3", Identity: "i3", Cause: ir.CauseStale, View: "expiry", Seq: 7},
		{ID: "a", Key: "k1", Identity: "i1", Cause: ir.CauseTake, View: "rack", Bucket: "A", Seq: 4, Latency: 3},
		{ID: "A", Key: "k4", Identity: "i4", Cause: ir.CauseSweep, View: "expiry", Seq: 7},
	}
	for _, r := range in {
		require.NoError(t, s.RecordRemoval(ctx, r))
	}

	got, err := s.ReadRemovals(ctx)
	require.NoError(t, err)
	var ids []string
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a", "A", "b", "c"}, ids, "seq first, then binary id order")
	assert.Equal(t, "A", got[0].Bucket)
}

func TestReadRemovals_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	got, err := s.ReadRemovals(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRecordRemoval_RejectsUnknownCause(t *testing.T) {
	s := createTestStore(t)

	err := s.RecordRemoval(context.Background(), ir.Removal{ID: "x", Key: "k", Cause: "vanished", Seq: 1})
	assert.Error(t, err)
}

func TestLastRemoval(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, ok, err := s.LastRemoval(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.RecordRemoval(ctx, ir.Removal{Key: "a", Identity: "i1", Cause: ir.CauseTake, View: "normal", Seq: 2, Latency: 1}))
	require.NoError(t, s.RecordRemoval(ctx, ir.Removal{Key: "a", Identity: "i2", Cause: ir.CauseTake, View: "priority", Seq: 5, Latency: 2}))
	require.NoError(t, s.RecordRemoval(ctx, ir.Removal{Key: "a", Identity: "i1", Cause: ir.CauseStale, View: "expiry", Seq: 9}))

	last, ok, err := s.LastRemoval(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "priority", last.View)
	assert.Equal(t, "i2", last.Identity)
}
