package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/multiview/internal/engine"
	"github.com/roach88/multiview/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", ev.Step, ev.Op, ev.Outcome)
			if ev.Key != "" {
				fmt.Fprintf(&buf, " key=%s", ev.Key)
			}
			if ev.Keys != nil {
				fmt.Fprintf(&buf, " keys=%v", ev.Keys)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// AssertionContext provides the engine and audit store for assertions that
// inspect final state.
type AssertionContext struct {
	Engine *engine.Engine
	Store  *store.Store
	Ctx    context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertNoResurrection:
			err = assertNoResurrection(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.Engine == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires an engine", i)
			} else {
				err = assertFinalState(actx.Engine, assertion)
			}
		case AssertRemovals:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: removals requires an audit store", i)
			} else {
				err = assertRemovals(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func opOrTake(a Assertion) string {
	if a.Op == "" {
		return OpTake
	}
	return a.Op
}

// succeeded returns the successful events of op in trace order.
func succeeded(trace []TraceEvent, op string) []TraceEvent {
	var out []TraceEvent
	for _, ev := range trace {
		if ev.Op == op && ev.Outcome == OutcomeOK {
			out = append(out, ev)
		}
	}
	return out
}

// assertTraceOrder checks that the keys returned by op appear in the given
// order. Keys need not be consecutive; intervening events are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	op := opOrTake(a)

	var got []string
	for _, ev := range succeeded(trace, op) {
		if ev.Key != "" {
			got = append(got, ev.Key)
		}
		got = append(got, ev.Keys...)
	}

	next := 0
	for _, k := range got {
		if next < len(a.Keys) && k == a.Keys[next] {
			next++
		}
	}
	if next == len(a.Keys) {
		return nil
	}

	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("%s keys in order %v", op, a.Keys),
		Actual:   fmt.Sprintf("%s returned %v", op, got),
		Trace:    trace,
	}
}

// assertTraceCount checks that op succeeded exactly Count times, for Key
// when one is given.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	op := opOrTake(a)

	count := 0
	for _, ev := range succeeded(trace, op) {
		if a.Key == "" || ev.Key == a.Key {
			count++
		}
	}
	if count == a.Count {
		return nil
	}

	subject := op
	if a.Key != "" {
		subject = fmt.Sprintf("%s of %s", op, a.Key)
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%s exactly %d times", subject, a.Count),
		Actual:   fmt.Sprintf("%d times", count),
		Trace:    trace,
	}
}

// assertNoResurrection checks that once Key leaves the store through take
// or sweep, no event returns it again unless it was re-added in between.
func assertNoResurrection(trace []TraceEvent, a Assertion) error {
	removed := false
	for _, ev := range trace {
		switch {
		case ev.Op == OpAdd && ev.Key == a.Key && ev.Outcome == OutcomeOK:
			removed = false
		case removed && ev.mentions(a.Key):
			return &AssertionError{
				Type:     AssertNoResurrection,
				Expected: fmt.Sprintf("%s never returned after removal", a.Key),
				Actual:   fmt.Sprintf("step %d (%s) returned it", ev.Step, ev.Op),
				Trace:    trace,
			}
		case (ev.Op == OpTake || ev.Op == OpSweep) && ev.mentions(a.Key):
			removed = true
		}
	}
	return nil
}

// assertFinalState compares live keys (ordered by seq) or a view snapshot
// with the expected keys.
func assertFinalState(eng *engine.Engine, a Assertion) error {
	var got []string
	subject := "live records"
	if a.View == "" {
		for rec := range eng.Records() {
			got = append(got, rec.Key)
		}
	} else {
		subject = "view " + a.View
		seq, err := eng.Snapshot(engine.ViewRef{Name: a.View, Bucket: a.Bucket})
		if err != nil {
			return fmt.Errorf("final_state: %w", err)
		}
		for rec := range seq {
			got = append(got, rec.Key)
		}
	}

	if slices.Equal(got, a.Keys) || (len(got) == 0 && len(a.Keys) == 0) {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: fmt.Sprintf("%s %v", subject, a.Keys),
		Actual:   fmt.Sprintf("%v", got),
	}
}

// assertRemovals compares the audit log with the expected "cause:key" list.
func assertRemovals(ctx context.Context, st *store.Store, a Assertion) error {
	removals, err := st.ReadRemovals(ctx)
	if err != nil {
		return fmt.Errorf("removals: %w", err)
	}

	got := make([]string, len(removals))
	for i, r := range removals {
		got[i] = string(r.Cause) + ":" + r.Key
	}

	if slices.Equal(got, a.Removals) || (len(got) == 0 && len(a.Removals) == 0) {
		return nil
	}
	return &AssertionError{
		Type:     AssertRemovals,
		Expected: fmt.Sprintf("%v", a.Removals),
		Actual:   fmt.Sprintf("%v", got),
	}
}
