package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/multiview/internal/ir"
)

// channelStat is the average take latency of one stats channel.
type channelStat struct {
	Channel string  `json:"channel"`
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

type channelStats []channelStat

func (cs channelStats) String() string {
	if len(cs) == 0 {
		return "(no takes recorded)"
	}
	lines := make([]string, len(cs))
	for i, c := range cs {
		lines[i] = fmt.Sprintf("%s: average %g over %d take(s)", c.Channel, c.Average, c.Count)
	}
	return strings.Join(lines, "\n")
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [channel...]",
		Short: "Print average take latency per view",
		Long: `Print the average take latency, in logical clock ticks, of each stats
channel. Channels are named after views. Without arguments every channel
with recorded takes is printed; a named channel with no takes is NO_DATA.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runStats(opts *RootOptions, channels []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	return withSession(opts, cmd, false, func(ctx context.Context, s *session) error {
		out := channelStats{}
		if len(channels) == 0 {
			for _, t := range s.engine.Totals() {
				if t.Count > 0 {
					out = append(out, channelStat{Channel: t.Channel, Average: float64(t.Sum) / float64(t.Count), Count: t.Count})
				}
			}
			return f.Success(out)
		}

		for _, ch := range channels {
			avg, err := s.engine.Stats(ch)
			if err != nil {
				return f.Fail(err, nil)
			}
			out = append(out, channelStat{Channel: ch, Average: avg, Count: s.engine.TakeCount(ch)})
		}
		return f.Success(out)
	})
}

// NewMetricsCommand creates the metrics command.
func NewMetricsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Print Prometheus metrics rebuilt from the stored state",
		Long: `Print take and removal counters rebuilt from the audit log, stale-entry
counters from the per-view totals saved with the snapshot, and the live
record gauge, one sample per line.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMetrics(rootOpts, cmd)
		},
	}

	return cmd
}

// metricsText is the text exposition; it prints as-is.
type metricsText string

func (m metricsText) String() string {
	return strings.TrimSuffix(string(m), "\n")
}

func runMetrics(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	return withSession(opts, cmd, false, func(ctx context.Context, s *session) error {
		removals, err := s.store.ReadRemovals(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read audit log", err)
		}

		for _, r := range removals {
			switch r.Cause {
			case ir.CauseTake:
				s.metrics.Taken(r.View, r.Latency)
				s.metrics.Removed(r.Cause)
			case ir.CauseSweep:
				s.metrics.Removed(r.Cause)
			}
		}
		// Stale audit rows are a subset of these totals.
		for _, sc := range s.engine.StaleCounts() {
			s.metrics.StaleSkipped(sc.View, int(sc.Count))
		}
		s.metrics.LiveRecords(s.engine.Len())

		var buf bytes.Buffer
		if err := s.metrics.WriteText(&buf); err != nil {
			return WrapExitError(ExitCommandError, "failed to render metrics", err)
		}
		return f.Success(metricsText(buf.String()))
	})
}
