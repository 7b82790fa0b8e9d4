// Package stats accumulates per-channel latency totals used to report
// average wait time per view.
//
// Latencies are differences between two readings of the engine's logical
// clock, so they are integers; only Average produces a float.
package stats

import (
	"errors"
	"slices"

	"github.com/roach88/multiview/internal/ir"
)

// ErrNoData is returned by Average for a channel with no recorded events.
var ErrNoData = errors.New("no data")

type total struct {
	sum   int64
	count int64
}

// Accumulator keeps a running sum and count per channel.
// Not safe for concurrent use; the engine serializes access.
type Accumulator struct {
	channels map[string]*total
}

// New creates an empty accumulator.
func New() *Accumulator {
	return &Accumulator{channels: make(map[string]*total)}
}

// Record adds one latency observation to channel.
func (a *Accumulator) Record(channel string, elapsed int64) {
	t, ok := a.channels[channel]
	if !ok {
		t = &total{}
		a.channels[channel] = t
	}
	t.sum += elapsed
	t.count++
}

// Average returns sum/count for channel, or ErrNoData.
func (a *Accumulator) Average(channel string) (float64, error) {
	t, ok := a.channels[channel]
	if !ok || t.count == 0 {
		return 0, ErrNoData
	}
	return float64(t.sum) / float64(t.count), nil
}

// Count returns the number of observations recorded on channel.
func (a *Accumulator) Count(channel string) int64 {
	if t, ok := a.channels[channel]; ok {
		return t.count
	}
	return 0
}

// Totals returns every channel's raw totals sorted by channel name.
func (a *Accumulator) Totals() []ir.ChannelTotal {
	out := make([]ir.ChannelTotal, 0, len(a.channels))
	for name, t := range a.channels {
		out = append(out, ir.ChannelTotal{Channel: name, Sum: t.sum, Count: t.count})
	}
	slices.SortFunc(out, func(x, y ir.ChannelTotal) int {
		if x.Channel < y.Channel {
			return -1
		}
		if x.Channel > y.Channel {
			return 1
		}
		return 0
	})
	return out
}

// Restore replaces the accumulator's state with persisted totals.
func (a *Accumulator) Restore(totals []ir.ChannelTotal) {
	a.channels = make(map[string]*total, len(totals))
	for _, t := range totals {
		a.channels[t.Channel] = &total{sum: t.Sum, count: t.Count}
	}
}
