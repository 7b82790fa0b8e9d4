package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/multiview/internal/engine"
	"github.com/roach88/multiview/internal/ir"
	"github.com/roach88/multiview/internal/profile"
	"github.com/roach88/multiview/internal/store"
	"github.com/roach88/multiview/internal/testutil"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Step: 0, Op: OpAdd, Outcome: OutcomeOK, Key: "a"},
		{Step: 1, Op: OpAdd, Outcome: OutcomeOK, Key: "b"},
		{Step: 2, Op: OpTake, Outcome: OutcomeOK, Key: "b", View: "priority"},
		{Step: 3, Op: OpTake, Outcome: "empty", View: "rack"},
		{Step: 4, Op: OpSweep, Outcome: OutcomeOK, Keys: []string{"a"}},
		{Step: 5, Op: OpTake, Outcome: OutcomeOK, Key: "c", View: "normal"},
	}
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Type: AssertTraceOrder, Keys: []string{"b", "c"}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Type: AssertTraceOrder, Keys: []string{"c"}}), "subsequence")
	assert.NoError(t, assertTraceOrder(trace, Assertion{Type: AssertTraceOrder, Op: OpSweep, Keys: []string{"a"}}))

	err := assertTraceOrder(trace, Assertion{Type: AssertTraceOrder, Keys: []string{"c", "b"}})
	require.Error(t, err)

	var assertErr *AssertionError
	require.ErrorAs(t, err, &assertErr)
	assert.Equal(t, AssertTraceOrder, assertErr.Type)
	assert.Equal(t, "take keys in order [c b]", assertErr.Expected)
	assert.Equal(t, "take returned [b c]", assertErr.Actual)
	assert.Len(t, assertErr.Trace, len(trace))
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Type: AssertTraceCount, Count: 2}), "failed takes do not count")
	assert.NoError(t, assertTraceCount(trace, Assertion{Type: AssertTraceCount, Key: "b", Count: 1}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Type: AssertTraceCount, Op: OpFind, Count: 0}))

	err := assertTraceCount(trace, Assertion{Type: AssertTraceCount, Key: "b", Count: 2})
	require.Error(t, err)
	var assertErr *AssertionError
	require.ErrorAs(t, err, &assertErr)
	assert.Equal(t, "take of b exactly 2 times", assertErr.Expected)
	assert.Equal(t, "1 times", assertErr.Actual)
}

func TestAssertNoResurrection(t *testing.T) {
	t.Run("removed and never returned", func(t *testing.T) {
		assert.NoError(t, assertNoResurrection(sampleTrace(), Assertion{Key: "b"}))
	})

	t.Run("returned after removal", func(t *testing.T) {
		trace := append(sampleTrace(), TraceEvent{Step: 6, Op: OpFind, Outcome: OutcomeOK, Key: "b"})
		err := assertNoResurrection(trace, Assertion{Type: AssertNoResurrection, Key: "b"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "step 6 (find) returned it")
	})

	t.Run("returned by a snapshot after sweep", func(t *testing.T) {
		trace := append(sampleTrace(), TraceEvent{Step: 6, Op: OpSnapshot, Outcome: OutcomeOK, Keys: []string{"a"}})
		assert.Error(t, assertNoResurrection(trace, Assertion{Type: AssertNoResurrection, Key: "a"}))
	})

	t.Run("re-added in between", func(t *testing.T) {
		trace := append(sampleTrace(),
			TraceEvent{Step: 6, Op: OpAdd, Outcome: OutcomeOK, Key: "b"},
			TraceEvent{Step: 7, Op: OpFind, Outcome: OutcomeOK, Key: "b"},
		)
		assert.NoError(t, assertNoResurrection(trace, Assertion{Key: "b"}))
	})

	t.Run("failed re-add does not reset", func(t *testing.T) {
		trace := append(sampleTrace(),
			TraceEvent{Step: 6, Op: OpAdd, Outcome: "invalid_record", Key: "b"},
			TraceEvent{Step: 7, Op: OpFind, Outcome: OutcomeOK, Key: "b"},
		)
		assert.Error(t, assertNoResurrection(trace, Assertion{Key: "b"}))
	})
}

// newAssertionContext builds a triage engine with a, b, c added and a taken
// through the normal view.
func newAssertionContext(t *testing.T) *AssertionContext {
	t.Helper()

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	p, err := profile.Builtin("triage")
	require.NoError(t, err)

	eng, err := engine.New(p,
		engine.WithClock(testutil.NewDeterministicClock()),
		engine.WithIdentities(testutil.NewSequentialIdentities("id")),
		engine.WithAuditSink(st),
	)
	require.NoError(t, err)

	ctx := context.Background()
	for _, add := range []engine.AddRequest{
		{Key: "a", Severity: 1},
		{Key: "b", Severity: 2},
		{Key: "c", Severity: 5},
	} {
		_, err := eng.Add(ctx, add)
		require.NoError(t, err)
	}
	_, err = eng.TakeNext(ctx, engine.ViewRef{Name: "normal"})
	require.NoError(t, err)

	return &AssertionContext{Engine: eng, Store: st, Ctx: ctx}
}

func TestAssertFinalState(t *testing.T) {
	actx := newAssertionContext(t)

	assert.NoError(t, assertFinalState(actx.Engine, Assertion{Keys: []string{"b", "c"}}))
	assert.NoError(t, assertFinalState(actx.Engine, Assertion{View: "priority", Keys: []string{"c", "b"}}))

	err := assertFinalState(actx.Engine, Assertion{View: "priority", Keys: []string{"b", "c"}})
	require.Error(t, err)
	var assertErr *AssertionError
	require.ErrorAs(t, err, &assertErr)
	assert.Equal(t, "view priority [b c]", assertErr.Expected)
	assert.Equal(t, "[c b]", assertErr.Actual)

	err = assertFinalState(actx.Engine, Assertion{View: "lobby"})
	require.Error(t, err)
	assert.Equal(t, engine.ErrCodeUnknownView, engine.CodeOf(err))
}

func TestAssertRemovals(t *testing.T) {
	actx := newAssertionContext(t)

	assert.NoError(t, assertRemovals(actx.Ctx, actx.Store, Assertion{Removals: []string{"take:a"}}))

	err := assertRemovals(actx.Ctx, actx.Store, Assertion{Removals: []string{"sweep:a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[take:a]")
}

func TestEvaluateAssertions(t *testing.T) {
	actx := newAssertionContext(t)
	result := &Result{Trace: sampleTrace()}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceOrder, Keys: []string{"b", "c"}},
		{Type: AssertTraceCount, Count: 5},
		{Type: AssertFinalState, Keys: []string{"b", "c"}},
		{Type: AssertRemovals, Removals: []string{"take:a"}},
		{Type: AssertNoResurrection, Key: "b"},
		{Type: "trace_contains"},
	}, actx)

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "Assertion failed: trace_count")
	assert.Contains(t, errs[1], `assertion[5]: unknown assertion type "trace_contains"`)
}

func TestEvaluateAssertions_MissingContext(t *testing.T) {
	errs := EvaluateAssertions(&Result{}, []Assertion{
		{Type: AssertFinalState},
		{Type: AssertRemovals},
	}, nil)

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "final_state requires an engine")
	assert.Contains(t, errs[1], "removals requires an audit store")
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceOrder,
		Expected: "x",
		Actual:   "y",
		Trace: []TraceEvent{
			{Step: 0, Op: OpTake, Outcome: OutcomeOK, Key: "a"},
			{Step: 1, Op: OpSweep, Outcome: OutcomeOK, Keys: []string{"b"}},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_order")
	assert.Contains(t, msg, "[0] take ok key=a")
	assert.Contains(t, msg, "[1] sweep ok keys=[b]")
}

func TestRemovalsAssertion_MatchesAuditLog(t *testing.T) {
	actx := newAssertionContext(t)

	removals, err := actx.Store.ReadRemovals(actx.Ctx)
	require.NoError(t, err)
	require.Len(t, removals, 1)
	assert.Equal(t, ir.CauseTake, removals[0].Cause)
	assert.Equal(t, "normal", removals[0].View)
	assert.Equal(t, int64(4), removals[0].Seq)
	assert.Equal(t, int64(3), removals[0].Latency)
}
