package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/multiview/internal/engine"
	"github.com/roach88/multiview/internal/ir"
	"github.com/roach88/multiview/internal/profile"
)

// recordResult is the payload of commands that return one record.
type recordResult struct {
	ir.Record
}

func (r recordResult) String() string {
	return formatRecord(r.Record)
}

// recordList is the payload of commands that return records in order.
type recordList struct {
	View    string      `json:"view,omitempty"`
	Bucket  string      `json:"bucket,omitempty"`
	Records []ir.Record `json:"records"`
}

func (l recordList) String() string {
	var b strings.Builder
	if l.View != "" {
		b.WriteString(l.View)
		if l.Bucket != "" {
			fmt.Fprintf(&b, "[%s]", l.Bucket)
		}
		b.WriteString(":\n")
	}
	if len(l.Records) == 0 {
		b.WriteString("  (empty)")
		return b.String()
	}
	for i, r := range l.Records {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("  " + formatRecord(r))
	}
	return b.String()
}

// bucketLists is the payload of show on a bucketed view without --bucket.
type bucketLists []recordList

func (ls bucketLists) String() string {
	if len(ls) == 0 {
		return "(no buckets)"
	}
	parts := make([]string, len(ls))
	for i, l := range ls {
		parts[i] = l.String()
	}
	return strings.Join(parts, "\n")
}

func formatRecord(r ir.Record) string {
	var b strings.Builder
	b.WriteString(r.Key)
	if r.Name != "" {
		fmt.Fprintf(&b, " %q", r.Name)
	}
	if r.Severity != 0 {
		fmt.Fprintf(&b, " severity=%d", r.Severity)
	}
	if r.Expiry != "" {
		fmt.Fprintf(&b, " expiry=%s", r.Expiry)
	}
	if r.Bucket != "" {
		fmt.Fprintf(&b, " bucket=%s", r.Bucket)
	}
	fmt.Fprintf(&b, " seq=%d", r.Seq)
	return b.String()
}

// AddOptions holds flags for the add command.
type AddOptions struct {
	*RootOptions
	Severity int64
	Expiry   string
	Bucket   string
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <key> [name]",
		Short: "Add a record to the store and every view",
		Long: `Add a record. The record joins every view of the profile at once.

Severity is clamped into the profile's range. Expiry dates use YYYY-MM-DD.
Profiles with a per-bucket view need --bucket.

Examples:
  multiview add p1 "Ann" --severity 4
  multiview add sku-7 --profile inventory --expiry 2024-03-01 --bucket A`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) > 1 {
				name = args[1]
			}
			return runAdd(opts, args[0], name, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Severity, "severity", 0, "severity (clamped into the profile range)")
	cmd.Flags().StringVar(&opts.Expiry, "expiry", "", "expiry date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.Bucket, "bucket", "", "bucket (rack) id")

	return cmd
}

func runAdd(opts *AddOptions, key, name string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	return withSession(opts.RootOptions, cmd, true, func(ctx context.Context, s *session) error {
		p := s.engine.Profile()
		sev := opts.Severity
		if p.Payload == profile.PayloadSeverity {
			if clamped := p.Severity.Clamp(sev); clamped != sev {
				s.logger.Info("severity clamped", "key", key, "from", sev, "to", clamped)
				sev = clamped
			}
		}

		rec, err := s.engine.Add(ctx, engine.AddRequest{
			Key:      key,
			Name:     name,
			Severity: sev,
			Expiry:   opts.Expiry,
			Bucket:   opts.Bucket,
		})
		if err != nil {
			return f.Fail(err, nil)
		}
		return f.Success(recordResult{rec})
	})
}

// ViewOptions holds flags for commands addressing one view.
type ViewOptions struct {
	*RootOptions
	Bucket string
}

// NewTakeCommand creates the take command.
func NewTakeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ViewOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "take <view>",
		Short: "Remove and print the next record of a view",
		Long: `Take the next live record of a view. The record leaves every view.

Exit codes:
  0 - A record was taken
  1 - The view has no live record (EMPTY) or does not exist
  2 - Command error

Examples:
  multiview take priority
  multiview take rack --bucket A --profile inventory`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTake(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Bucket, "bucket", "", "bucket id for per-bucket views")

	return cmd
}

func runTake(opts *ViewOptions, viewName string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	return withSession(opts.RootOptions, cmd, true, func(ctx context.Context, s *session) error {
		rec, err := s.engine.TakeNext(ctx, engine.ViewRef{Name: viewName, Bucket: opts.Bucket})
		if err != nil {
			return f.Fail(err, nil)
		}
		return f.Success(recordResult{rec})
	})
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find <key>",
		Short: "Look up a live record by key",
		Long: `Look up a live record by key. When the key is not live, the audit log
tells whether it was already taken or swept.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runFind(opts *RootOptions, key string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	return withSession(opts, cmd, false, func(ctx context.Context, s *session) error {
		rec, err := s.engine.Find(key)
		if err == nil {
			return f.Success(recordResult{rec})
		}
		if !engine.IsNotFound(err) {
			return f.Fail(err, nil)
		}

		last, ok, lookupErr := s.store.LastRemoval(ctx, key)
		if lookupErr != nil {
			return WrapExitError(ExitCommandError, "failed to read audit log", lookupErr)
		}
		if !ok {
			return f.Fail(err, nil)
		}

		msg := fmt.Sprintf("%s not found: removed by %s from %s at seq %d", key, last.Cause, last.View, last.Seq)
		if outErr := f.Error(string(engine.ErrCodeNotFound), msg, last); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, string(engine.ErrCodeNotFound), err)
	})
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ViewOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <view>",
		Short: "Print a view's live records in take order without removing them",
		Long: `Print a view's live records in the order take would return them.
Nothing is removed. For a per-bucket view without --bucket, every bucket is
printed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Bucket, "bucket", "", "bucket id for per-bucket views")

	return cmd
}

func runShow(opts *ViewOptions, viewName string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	return withSession(opts.RootOptions, cmd, false, func(ctx context.Context, s *session) error {
		spec, ok := s.engine.Profile().View(viewName)
		if ok && spec.Kind.Bucketed() && opts.Bucket == "" {
			ids, err := s.engine.Buckets(viewName)
			if err != nil {
				return f.Fail(err, nil)
			}
			out := bucketLists{}
			for _, id := range ids {
				l, err := snapshotList(s.engine, viewName, id)
				if err != nil {
					return f.Fail(err, nil)
				}
				out = append(out, l)
			}
			return f.Success(out)
		}

		l, err := snapshotList(s.engine, viewName, opts.Bucket)
		if err != nil {
			return f.Fail(err, nil)
		}
		return f.Success(l)
	})
}

func snapshotList(eng *engine.Engine, viewName, bucket string) (recordList, error) {
	seq, err := eng.Snapshot(engine.ViewRef{Name: viewName, Bucket: bucket})
	if err != nil {
		return recordList{}, err
	}
	l := recordList{View: viewName, Bucket: bucket, Records: []ir.Record{}}
	for rec := range seq {
		l.Records = append(l.Records, rec)
	}
	return l, nil
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "Print every live record in arrival order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, cmd)
		},
	}

	return cmd
}

func runList(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	return withSession(opts, cmd, false, func(ctx context.Context, s *session) error {
		l := recordList{Records: []ir.Record{}}
		for rec := range s.engine.Records() {
			l.Records = append(l.Records, rec)
		}
		return f.Success(l)
	})
}
