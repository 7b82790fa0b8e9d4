package harness

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/roach88/multiview/internal/engine"
	"github.com/roach88/multiview/internal/ir"
	"github.com/roach88/multiview/internal/profile"
	"github.com/roach88/multiview/internal/store"
	"github.com/roach88/multiview/internal/testutil"
)

// Harness executes scenario steps against a real engine.
type Harness struct {
	engine *engine.Engine
	store  *store.Store
	clock  *testutil.DeterministicClock
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh engine whose audit sink is a fresh
// in-memory database. Deterministic helpers ensure reproducible traces.
//
// Execution flow:
// 1. Resolve the profile
// 2. Execute setup steps (any failure aborts the run)
// 3. Execute flow steps, checking each expect clause
// 4. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	p, err := profile.Resolve(scenario.Profile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve profile: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewDeterministicClock()
	eng, err := engine.New(p,
		engine.WithClock(clock),
		engine.WithIdentities(testutil.NewSequentialIdentities("id")),
		engine.WithAuditSink(st),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	h := &Harness{engine: eng, store: st, clock: clock}
	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Setup {
		ev := h.execute(ctx, len(result.Trace), step)
		result.Trace = append(result.Trace, ev)
		if ev.Outcome != OutcomeOK {
			return nil, fmt.Errorf("setup step %d (%s %s): outcome %s", i, step.Op, step.Key, ev.Outcome)
		}
	}

	for i, step := range scenario.Flow {
		ev := h.execute(ctx, len(result.Trace), step)
		result.Trace = append(result.Trace, ev)
		if step.Expect != nil {
			for _, msg := range checkExpect(step.Expect, ev) {
				result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Op, msg))
			}
		}
	}

	actx := &AssertionContext{Engine: eng, Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// execute runs one step and records what it returned.
func (h *Harness) execute(ctx context.Context, index int, st Step) TraceEvent {
	ev := TraceEvent{Step: index, Op: st.Op, Outcome: OutcomeOK}

	var err error
	switch st.Op {
	case OpAdd:
		var rec ir.Record
		rec, err = h.engine.Add(ctx, engine.AddRequest{
			Key:      st.Key,
			Name:     st.Name,
			Severity: st.Severity,
			Expiry:   st.Expiry,
			Bucket:   st.Bucket,
		})
		ev.Key = st.Key
		ev.Identity = rec.Identity

	case OpTake:
		var rec ir.Record
		rec, err = h.engine.TakeNext(ctx, engine.ViewRef{Name: st.View, Bucket: st.Bucket})
		ev.View, ev.Bucket = st.View, st.Bucket
		ev.Key, ev.Identity = rec.Key, rec.Identity

	case OpFind:
		var rec ir.Record
		rec, err = h.engine.Find(st.Key)
		ev.Key, ev.Identity = st.Key, rec.Identity

	case OpSnapshot:
		ev.View, ev.Bucket = st.View, st.Bucket
		var seq iter.Seq[ir.Record]
		seq, err = h.engine.Snapshot(engine.ViewRef{Name: st.View, Bucket: st.Bucket})
		if err == nil {
			ev.Keys = collectKeys(slices.Collect(seq))
		}

	case OpSweep:
		var removed []ir.Record
		removed, err = h.engine.SweepExpired(ctx, st.Threshold)
		if err == nil {
			ev.Keys = collectKeys(removed)
		}

	case OpStats:
		ev.View = st.Channel
		var avg float64
		avg, err = h.engine.Stats(st.Channel)
		if err == nil {
			ev.Average = formatAverage(avg)
		}
	}

	if err != nil {
		ev.Outcome = outcomeOf(err)
	}
	ev.Seq = h.clock.Current()
	return ev
}

// outcomeOf maps an engine error to a scenario outcome.
func outcomeOf(err error) string {
	if code := engine.CodeOf(err); code != "" {
		return strings.ToLower(string(code))
	}
	return "error"
}

func collectKeys(recs []ir.Record) []string {
	keys := make([]string, len(recs))
	for i, r := range recs {
		keys[i] = r.Key
	}
	return keys
}

// checkExpect compares a step's trace event with its expect clause.
func checkExpect(exp *Expect, ev TraceEvent) []string {
	var errs []string

	want := exp.Outcome
	if want == "" {
		want = OutcomeOK
	}
	if ev.Outcome != want {
		errs = append(errs, fmt.Sprintf("expected outcome %s, got %s", want, ev.Outcome))
	}
	if exp.Key != "" && ev.Key != exp.Key {
		errs = append(errs, fmt.Sprintf("expected key %q, got %q", exp.Key, ev.Key))
	}
	if exp.Keys != nil && !slices.Equal(exp.Keys, ev.Keys) && (len(exp.Keys) > 0 || len(ev.Keys) > 0) {
		errs = append(errs, fmt.Sprintf("expected keys %v, got %v", exp.Keys, ev.Keys))
	}
	if exp.Average != "" && ev.Average != exp.Average {
		errs = append(errs, fmt.Sprintf("expected average %s, got %s", exp.Average, ev.Average))
	}
	return errs
}
