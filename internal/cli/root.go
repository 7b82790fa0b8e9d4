package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Environment variables that supply flag defaults.
const (
	EnvDB      = "MULTIVIEW_DB"
	EnvProfile = "MULTIVIEW_PROFILE"
)

// DefaultDB is the database path used when neither --db nor MULTIVIEW_DB
// is set.
const DefaultDB = "multiview.db"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	DB      string
	Profile string // built-in name or .cue path; empty means the stored profile
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// LoadEnv loads environment files into the process environment. Missing
// files are ignored; variables already set are never overridden.
func LoadEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// NewRootCommand creates the root command for the multiview CLI.
// Flag defaults are read from the environment when the command is built.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "multiview",
		Short: "multiview - one record store, many orderings",
		Long: `A record store that exposes the same records through several views
(arrival order, severity order, per-rack stacks, expiry order). Taking a
record through one view removes it from all of them.

State is kept in a SQLite database between invocations.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	db := os.Getenv(EnvDB)
	if db == "" {
		db = DefaultDB
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", db, "path to SQLite database (env "+EnvDB+")")
	cmd.PersistentFlags().StringVar(&opts.Profile, "profile", os.Getenv(EnvProfile),
		"profile name or .cue file (env "+EnvProfile+"); defaults to the stored profile, else triage")

	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewTakeCommand(opts))
	cmd.AddCommand(NewFindCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewMetricsCommand(opts))
	cmd.AddCommand(NewProfilesCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// newLogger builds the CLI logger: text to w at Info, Debug when verbose.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newFormatter returns the output formatter for a command.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
