package metrics

import (
	"bytes"
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/multiview/internal/engine"
	"github.com/roach88/multiview/internal/ir"
	"github.com/roach88/multiview/internal/profile"
)

var _ engine.Observer = (*Collector)(nil)

func TestCollector_Counts(t *testing.T) {
	c := New()

	c.Taken("normal", 2)
	c.Taken("normal", 4)
	c.Taken("priority", 1)
	c.Removed(ir.CauseTake)
	c.Removed(ir.CauseSweep)
	c.Removed(ir.CauseSweep)
	c.StaleSkipped("priority", 3)
	c.LiveRecords(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.takes.WithLabelValues("normal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.takes.WithLabelValues("priority")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.removals.WithLabelValues("sweep")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.stale.WithLabelValues("priority")))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.live))
}

func TestCollector_SeparateRegistries(t *testing.T) {
	a, b := New(), New()
	a.LiveRecords(3)

	assert.Equal(t, 3.0, testutil.ToFloat64(a.live))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.live))
}

func TestCollector_WriteText(t *testing.T) {
	c := New()
	c.Taken("normal", 2)
	c.Taken("normal", 4)
	c.Removed(ir.CauseTake)
	c.LiveRecords(1)

	var buf bytes.Buffer
	require.NoError(t, c.WriteText(&buf))

	want := "multiview_live_records 1\n" +
		"multiview_removals_total{cause=\"take\"} 1\n" +
		"multiview_take_latency_ticks_count{view=\"normal\"} 2\n" +
		"multiview_take_latency_ticks_sum{view=\"normal\"} 6\n" +
		"multiview_takes_total{view=\"normal\"} 2\n"
	assert.Equal(t, want, buf.String())
}

func TestCollector_WiredToEngine(t *testing.T) {
	p, err := profile.Builtin("triage")
	require.NoError(t, err)
	c := New()
	e, err := engine.New(p, engine.WithObserver(c))
	require.NoError(t, err)

	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		_, err := e.Add(ctx, engine.AddRequest{Key: k, Severity: 2})
		require.NoError(t, err)
	}
	_, err = e.TakeNext(ctx, engine.ViewRef{Name: "normal"})
	require.NoError(t, err)
	_, err = e.TakeNext(ctx, engine.ViewRef{Name: "priority"})
	require.NoError(t, err)
	_, err = e.TakeNext(ctx, engine.ViewRef{Name: "priority"})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.takes.WithLabelValues("normal")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.takes.WithLabelValues("priority")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.removals.WithLabelValues("take")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stale.WithLabelValues("priority")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.live))
}
