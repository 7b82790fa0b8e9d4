package profile

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/multiview/internal/view"
)

//go:embed profiles.cue
var builtinSource string

// CompileError reports a profile that is malformed or inconsistent.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Builtin returns the named built-in profile.
func Builtin(name string) (*Profile, error) {
	all, err := CompileSource("profiles.cue", builtinSource)
	if err != nil {
		return nil, fmt.Errorf("builtin profiles: %w", err)
	}
	for _, p := range all {
		if p.Name == name {
			p.Source = ""
			return p, nil
		}
	}
	return nil, fmt.Errorf("unknown profile %q", name)
}

// FromSource compiles src and returns the profile called name. It rebuilds
// a file profile from the source stored alongside a snapshot.
func FromSource(name, src string) (*Profile, error) {
	all, err := CompileSource(name+".cue", src)
	if err != nil {
		return nil, err
	}
	for _, p := range all {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("profile %q not defined in stored source", name)
}

// BuiltinNames lists built-in profile names, sorted.
func BuiltinNames() []string {
	all, err := CompileSource("profiles.cue", builtinSource)
	if err != nil {
		return nil
	}
	names := make([]string, len(all))
	for i, p := range all {
		names[i] = p.Name
	}
	return names
}

// Resolve returns a built-in profile by name, or, when ref names an
// existing file, the single profile defined in it. A file holding several
// profiles is resolved with "path.cue#name".
func Resolve(ref string) (*Profile, error) {
	path, name := ref, ""
	if i := lastHash(ref); i >= 0 {
		path, name = ref[:i], ref[i+1:]
	}
	if _, err := os.Stat(path); err != nil {
		if name == "" {
			return Builtin(ref)
		}
		return nil, fmt.Errorf("profile file %q: %w", path, err)
	}

	all, err := CompileFile(path)
	if err != nil {
		return nil, err
	}
	if name == "" {
		if len(all) != 1 {
			return nil, fmt.Errorf("%s defines %d profiles; select one with %s#<name>", path, len(all), path)
		}
		return all[0], nil
	}
	for _, p := range all {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("profile %q not defined in %s", name, path)
}

func lastHash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '#' {
			return i
		}
	}
	return -1
}

// CompileFile compiles every profile defined in a CUE file.
func CompileFile(path string) ([]*Profile, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return CompileSource(path, string(src))
}

// CompileSource compiles every profile under the top-level "profile" field,
// sorted by name.
func CompileSource(filename, src string) ([]*Profile, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	root := v.LookupPath(cue.ParsePath("profile"))
	if !root.Exists() {
		return nil, &CompileError{Field: "profile", Message: "no profiles defined", Pos: v.Pos()}
	}

	iter, err := root.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []*Profile
	for iter.Next() {
		p, err := Compile(iter.Value())
		if err != nil {
			return nil, err
		}
		p.Source = src
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, &CompileError{Field: "profile", Message: "no profiles defined", Pos: root.Pos()}
	}
	slices.SortFunc(out, func(a, b *Profile) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return out, nil
}

// Compile parses a single profile struct. The profile name is the struct's
// label, e.g. the value at path "profile.triage" compiles to "triage".
func Compile(v cue.Value) (*Profile, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	p := &Profile{Payload: PayloadNone}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		p.Name = labels[len(labels)-1].String()
	}

	purpose, err := lookupString(v, "purpose", true)
	if err != nil {
		return nil, err
	}
	p.Purpose = purpose

	payload, err := lookupString(v, "payload", false)
	if err != nil {
		return nil, err
	}
	switch Payload(payload) {
	case "":
	case PayloadNone, PayloadSeverity, PayloadExpiry:
		p.Payload = Payload(payload)
	default:
		return nil, &CompileError{
			Field:   "payload",
			Message: fmt.Sprintf("unknown payload %q: must be severity, expiry or none", payload),
			Pos:     v.LookupPath(cue.ParsePath("payload")).Pos(),
		}
	}

	p.Severity = Range{Min: DefaultSeverityMin, Max: DefaultSeverityMax}
	if sev := v.LookupPath(cue.ParsePath("severity")); sev.Exists() {
		if p.Severity.Min, err = lookupInt(sev, "min", p.Severity.Min); err != nil {
			return nil, err
		}
		if p.Severity.Max, err = lookupInt(sev, "max", p.Severity.Max); err != nil {
			return nil, err
		}
	}

	if p.Views, err = parseViews(v); err != nil {
		return nil, err
	}

	if sw := v.LookupPath(cue.ParsePath("sweep")); sw.Exists() {
		sweepView, err := lookupString(sw, "view", true)
		if err != nil {
			return nil, err
		}
		p.Sweep = &Sweep{View: sweepView}
		if rs := sw.LookupPath(cue.ParsePath("report_stale")); rs.Exists() {
			b, err := rs.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
			p.Sweep.ReportStale = b
		}
	}

	if err := p.Validate(); err != nil {
		var ce *CompileError
		if errors.As(err, &ce) && !ce.Pos.IsValid() {
			ce.Pos = v.Pos()
		}
		return nil, err
	}
	return p, nil
}

// parseViews extracts the ordered list of attached views.
func parseViews(v cue.Value) ([]ViewSpec, error) {
	viewsVal := v.LookupPath(cue.ParsePath("views"))
	if !viewsVal.Exists() {
		return nil, &CompileError{Field: "views", Message: "views are required", Pos: v.Pos()}
	}

	list, err := viewsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []ViewSpec
	for list.Next() {
		item := list.Value()
		name, err := lookupString(item, "name", true)
		if err != nil {
			return nil, err
		}
		kindStr, err := lookupString(item, "kind", true)
		if err != nil {
			return nil, err
		}
		kind, err := view.ParseKind(kindStr)
		if err != nil {
			return nil, &CompileError{Field: "views." + name + ".kind", Message: err.Error(), Pos: item.Pos()}
		}
		specs = append(specs, ViewSpec{Name: name, Kind: kind})
	}
	return specs, nil
}

// lookupString reads a string field, resolving CUE defaults.
func lookupString(v cue.Value, path string, required bool) (string, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		if required {
			return "", &CompileError{Field: path, Message: path + " is required", Pos: v.Pos()}
		}
		return "", nil
	}
	if d, ok := f.Default(); ok {
		f = d
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// lookupInt reads an optional integer field.
func lookupInt(v cue.Value, path string, def int64) (int64, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return def, nil
	}
	n, err := f.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return n, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
