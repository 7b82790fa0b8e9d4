package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/multiview/internal/ir"
)

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep <date>",
		Short: "Remove every record expiring on or before a date",
		Long: `Remove every live record whose expiry is on or before <date>
(YYYY-MM-DD), in expiry order. The removed records are printed.

Only profiles with a sweep view support this command; others fail with
NO_SWEEP_VIEW. A <date> that is not a real YYYY-MM-DD calendar date fails
with INVALID_THRESHOLD and removes nothing.

Example:
  multiview sweep 2024-02-01 --profile inventory`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runSweep(opts *RootOptions, threshold string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	return withSession(opts, cmd, true, func(ctx context.Context, s *session) error {
		removed, err := s.engine.SweepExpired(ctx, threshold)
		if err != nil {
			return f.Fail(err, nil)
		}
		f.VerboseLog("swept %d record(s) on or before %s", len(removed), threshold)

		l := recordList{Records: removed}
		if l.Records == nil {
			l.Records = []ir.Record{}
		}
		return f.Success(l)
	})
}
