package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/multiview/internal/profile"
)

// profileInfo describes one compiled profile.
type profileInfo struct {
	Name    string   `json:"name"`
	Purpose string   `json:"purpose"`
	Payload string   `json:"payload"`
	Views   []string `json:"views"` // "name:kind"
	Sweep   string   `json:"sweep,omitempty"`
}

func newProfileInfo(p *profile.Profile) profileInfo {
	info := profileInfo{
		Name:    p.Name,
		Purpose: p.Purpose,
		Payload: string(p.Payload),
		Views:   make([]string, len(p.Views)),
	}
	for i, v := range p.Views {
		info.Views[i] = fmt.Sprintf("%s:%s", v.Name, v.Kind)
	}
	if p.Sweep != nil {
		info.Sweep = p.Sweep.View
	}
	return info
}

type profileInfos []profileInfo

func (ps profileInfos) String() string {
	var b strings.Builder
	for i, p := range ps {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s (%s)\n  %s\n  views: %s", p.Name, p.Payload, p.Purpose, strings.Join(p.Views, ", "))
		if p.Sweep != "" {
			fmt.Fprintf(&b, "\n  sweep: %s", p.Sweep)
		}
	}
	return b.String()
}

// NewProfilesCommand creates the profiles command.
func NewProfilesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List the built-in profiles",
		Long: `List the built-in profiles with their views. When --profile names a
.cue file, the profiles it defines are listed instead.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfiles(rootOpts, cmd)
		},
	}

	return cmd
}

func runProfiles(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	var out profileInfos
	if strings.HasSuffix(opts.Profile, ".cue") {
		all, err := profile.CompileFile(opts.Profile)
		if err != nil {
			return outputProfileError(f, err)
		}
		for _, p := range all {
			out = append(out, newProfileInfo(p))
		}
		return f.Success(out)
	}

	for _, name := range profile.BuiltinNames() {
		p, err := profile.Builtin(name)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to compile built-in profile", err)
		}
		out = append(out, newProfileInfo(p))
	}
	return f.Success(out)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file.cue>",
		Short: "Validate a profile file",
		Long: `Compile a CUE profile file and check every profile it defines:
view names, view kinds, payload, severity range and sweep view.

Exit codes:
  0 - Every profile is valid
  1 - Validation failed
  2 - Command error (file not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	if _, err := os.Stat(path); err != nil {
		if outErr := f.Error(ErrCodeInvalidArgs, fmt.Sprintf("profile file not found: %s", path), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "profile file not found", err)
	}

	all, err := profile.CompileFile(path)
	if err != nil {
		return outputProfileError(f, err)
	}

	f.VerboseLog("%s defines %d profile(s)", path, len(all))
	names := make([]string, len(all))
	for i, p := range all {
		names[i] = p.Name
	}
	if f.Format == "json" {
		return f.Success(map[string]any{"valid": true, "profiles": names})
	}
	return f.Success(fmt.Sprintf("valid: %s", strings.Join(names, ", ")))
}

// validationDetail is the JSON detail of a profile compile error.
type validationDetail struct {
	Field string `json:"field"`
	Line  int    `json:"line,omitempty"`
}

// outputProfileError reports a profile compile error as a validation
// failure (ExitFailure).
func outputProfileError(f *OutputFormatter, err error) error {
	var details any
	var cerr *profile.CompileError
	if errors.As(err, &cerr) {
		d := validationDetail{Field: cerr.Field}
		if cerr.Pos.IsValid() {
			d.Line = cerr.Pos.Line()
		}
		details = d
	}
	if outErr := f.Error(ErrCodeProfile, err.Error(), details); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitFailure, "profile validation failed", err)
}
