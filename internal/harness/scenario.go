package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Operation names.
const (
	OpAdd      = "add"
	OpTake     = "take"
	OpFind     = "find"
	OpSnapshot = "snapshot"
	OpSweep    = "sweep"
	OpStats    = "stats"
)

var knownOps = []string{OpAdd, OpTake, OpFind, OpSnapshot, OpSweep, OpStats}

// Scenario defines a contract test: a profile, a flow of operations and
// assertions over the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Profile is a built-in profile name or a path to a .cue file,
	// optionally suffixed with "#name". Relative paths are resolved against
	// the scenario file's directory by LoadScenario.
	Profile string `yaml:"profile"`

	// Setup steps run before the flow and must all succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the operations under test.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final trace, state and audit log.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one engine operation. Which fields apply depends on Op.
type Step struct {
	Op        string  `yaml:"op"`
	Key       string  `yaml:"key,omitempty"`
	Name      string  `yaml:"name,omitempty"`
	Severity  int64   `yaml:"severity,omitempty"`
	Expiry    string  `yaml:"expiry,omitempty"`
	Bucket    string  `yaml:"bucket,omitempty"`
	View      string  `yaml:"view,omitempty"`
	Threshold string  `yaml:"threshold,omitempty"`
	Channel   string  `yaml:"channel,omitempty"`
	Expect    *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a flow step.
type Expect struct {
	// Outcome is "ok" (default) or a lower-cased error code.
	Outcome string `yaml:"outcome,omitempty"`

	// Key is the key returned by take or find.
	Key string `yaml:"key,omitempty"`

	// Keys are the keys returned by snapshot or sweep, in order.
	// An empty list expects nothing returned; omit it to skip the check.
	Keys []string `yaml:"keys,omitempty"`

	// Average is the formatted stats average, e.g. "1.5".
	Average string `yaml:"average,omitempty"`
}

// Assertion validates trace, final state or audit log.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Op filters trace events (trace_order, trace_count). Default: take.
	Op string `yaml:"op,omitempty"`

	// Key is used by trace_count (optional filter) and no_resurrection.
	Key string `yaml:"key,omitempty"`

	// Keys is the expected key order (trace_order, final_state).
	Keys []string `yaml:"keys,omitempty"`

	// Count is the expected number of events (trace_count).
	Count int `yaml:"count,omitempty"`

	// View and Bucket select a view snapshot for final_state. Without a
	// view, final_state checks every live record ordered by seq.
	View   string `yaml:"view,omitempty"`
	Bucket string `yaml:"bucket,omitempty"`

	// Removals is the expected audit log as "cause:key" (removals).
	Removals []string `yaml:"removals,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceOrder     = "trace_order"
	AssertTraceCount     = "trace_count"
	AssertFinalState     = "final_state"
	AssertRemovals       = "removals"
	AssertNoResurrection = "no_resurrection"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	scenario.Profile = resolveProfilePath(scenario.Profile, filepath.Dir(path))

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// DiscoverScenarios returns every .yaml and .yml file directly under dir,
// sorted by name.
func DiscoverScenarios(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(paths)
	return paths, nil
}

// resolveProfilePath makes a relative .cue reference relative to baseDir.
// Built-in names are returned unchanged.
func resolveProfilePath(ref, baseDir string) string {
	path, suffix := ref, ""
	if i := strings.LastIndex(ref, "#"); i >= 0 {
		path, suffix = ref[:i], ref[i:]
	}
	if filepath.Ext(path) != ".cue" || filepath.IsAbs(path) || baseDir == "" {
		return ref
	}
	return filepath.Join(baseDir, path) + suffix
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Profile == "" {
		return fmt.Errorf("profile is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep(fmt.Sprintf("setup[%d]", i), step); err != nil {
			return err
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: setup steps cannot have expect", i)
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(fmt.Sprintf("flow[%d]", i), step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks that a step names a known op and carries the fields
// that op needs.
func validateStep(where string, st Step) error {
	if !slices.Contains(knownOps, st.Op) {
		return fmt.Errorf("%s: unknown op %q", where, st.Op)
	}

	switch st.Op {
	case OpAdd, OpFind:
		if st.Key == "" {
			return fmt.Errorf("%s: key is required for %s", where, st.Op)
		}
	case OpTake, OpSnapshot:
		if st.View == "" {
			return fmt.Errorf("%s: view is required for %s", where, st.Op)
		}
	case OpSweep:
		if st.Threshold == "" {
			return fmt.Errorf("%s: threshold is required for sweep", where)
		}
	case OpStats:
		if st.Channel == "" {
			return fmt.Errorf("%s: channel is required for stats", where)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceOrder:
		if len(a.Keys) == 0 {
			return fmt.Errorf("assertions[%d]: keys list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState, AssertRemovals:
	case AssertNoResurrection:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for no_resurrection", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Op != "" && !slices.Contains(knownOps, a.Op) {
		return fmt.Errorf("assertions[%d]: unknown op %q", index, a.Op)
	}
	return nil
}
