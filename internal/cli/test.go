package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/multiview/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario.yaml|dir>...",
		Short: "Run scenario files",
		Long: `Run YAML scenarios against a fresh in-memory engine each.

Directories are searched for .yaml and .yml files. When a scenario has a
golden trace at <dir>/../golden/<name>.golden its trace must match it
byte for byte; --update rewrites the golden files.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  multiview test ./scenarios
  multiview test ./scenarios --filter "triage*"
  multiview test ./scenarios --update
  multiview test ./scenarios/sweep.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern on the file name")

	return cmd
}

func runTests(opts *TestOptions, args []string, cmd *cobra.Command) error {
	files, err := findScenarioFiles(args, opts.Filter)
	if err != nil {
		return err
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		res := runScenario(file, opts, cmd)
		result.Scenarios = append(result.Scenarios, res)
		if res.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

// findScenarioFiles expands args into scenario files, applying filter to
// file names without extension.
func findScenarioFiles(args []string, filter string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("scenario path not found: %s", arg), err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		found, err := harness.DiscoverScenarios(arg)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		files = append(files, found...)
	}

	if filter == "" {
		return files, nil
	}
	var matched []string
	for _, file := range files {
		base := filepath.Base(file)
		ok, err := filepath.Match(filter, strings.TrimSuffix(base, filepath.Ext(base)))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid filter pattern", err)
		}
		if ok {
			matched = append(matched, file)
		}
	}
	return matched, nil
}

// runScenario executes a single scenario and returns the result.
func runScenario(file string, opts *TestOptions, cmd *cobra.Command) ScenarioResult {
	w := cmd.OutOrStdout()
	text := opts.Format != "json"

	fail := func(name string, errs ...string) ScenarioResult {
		if text {
			fmt.Fprintf(w, "FAIL %s\n", name)
			for _, e := range errs {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
		return ScenarioResult{Name: name, Pass: false, Errors: errs}
	}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return fail(filepath.Base(file), fmt.Sprintf("failed to load scenario: %v", err))
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return fail(scenario.Name, fmt.Sprintf("execution failed: %v", err))
	}

	snapshot := harness.TraceSnapshot{ScenarioName: scenario.Name, Profile: scenario.Profile, Trace: result.Trace}
	trace, err := snapshot.MarshalCanonical()
	if err != nil {
		return fail(scenario.Name, fmt.Sprintf("failed to marshal trace: %v", err))
	}

	goldenPath := goldenFilePath(file, scenario.Name)
	if opts.Update {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
			return fail(scenario.Name, fmt.Sprintf("failed to create golden directory: %v", err))
		}
		if err := os.WriteFile(goldenPath, trace, 0644); err != nil {
			return fail(scenario.Name, fmt.Sprintf("failed to write golden file: %v", err))
		}
		if text {
			fmt.Fprintf(w, "ok   %s (golden updated)\n", scenario.Name)
		}
		return ScenarioResult{Name: scenario.Name, Pass: result.Pass, Errors: result.Errors}
	}

	errs := result.Errors
	golden, err := os.ReadFile(goldenPath)
	switch {
	case err == nil:
		if !bytes.Equal(golden, trace) {
			errs = append(errs, "trace does not match golden file (run with --update to regenerate)")
		}
	case !os.IsNotExist(err):
		errs = append(errs, fmt.Sprintf("failed to read golden file: %v", err))
	}

	if len(errs) > 0 {
		return fail(scenario.Name, errs...)
	}
	if text {
		fmt.Fprintf(w, "ok   %s\n", scenario.Name)
	}
	return ScenarioResult{Name: scenario.Name, Pass: true}
}

// goldenFilePath returns the golden file for a scenario: a golden directory
// next to the one holding the scenario file.
func goldenFilePath(scenarioFile, name string) string {
	dir := filepath.Dir(filepath.Dir(scenarioFile))
	return filepath.Join(dir, "golden", name+".golden")
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	status := "ok"
	if result.Failed > 0 {
		status = "error"
	}

	response := CLIResponse{
		Status: status,
		Data:   result,
	}

	if result.Failed > 0 {
		response.Error = &CLIError{
			Code:    "TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test result as text.
func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()

	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "All scenarios passed")
	return nil
}
