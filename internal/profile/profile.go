package profile

import (
	"fmt"
	"regexp"
	"time"

	"github.com/roach88/multiview/internal/view"
)

// Payload names the domain field a profile's records carry.
type Payload string

const (
	PayloadNone     Payload = "none"
	PayloadSeverity Payload = "severity"
	PayloadExpiry   Payload = "expiry"
)

// ExpiryLayout is the only accepted expiry format. It compares
// lexicographically in date order.
const ExpiryLayout = "2006-01-02"

// Default severity bounds when a severity profile omits them.
const (
	DefaultSeverityMin = 1
	DefaultSeverityMax = 5
)

var viewNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// ViewSpec attaches one view under a name.
type ViewSpec struct {
	Name string
	Kind view.Kind
}

// Range is an inclusive integer range.
type Range struct {
	Min int64
	Max int64
}

// Contains reports whether n lies in the range.
func (r Range) Contains(n int64) bool {
	return n >= r.Min && n <= r.Max
}

// Clamp forces n into the range.
func (r Range) Clamp(n int64) int64 {
	return min(max(n, r.Min), r.Max)
}

// Sweep configures expiry sweeps.
type Sweep struct {
	// View is the min_expiry view swept.
	View string

	// ReportStale writes stale entries discarded by a sweep to the audit
	// log. They are never reported as removed records.
	ReportStale bool
}

// Profile is a compiled profile.
type Profile struct {
	Name     string
	Purpose  string
	Payload  Payload
	Severity Range
	Views    []ViewSpec
	Sweep    *Sweep

	// Source is the CUE text the profile was compiled from. Empty for
	// built-in profiles, which are resolved by name.
	Source string
}

// View returns the ViewSpec registered under name.
func (p *Profile) View(name string) (ViewSpec, bool) {
	for _, v := range p.Views {
		if v.Name == name {
			return v, true
		}
	}
	return ViewSpec{}, false
}

// Bucketed reports whether any attached view needs a bucket per record.
func (p *Profile) Bucketed() bool {
	for _, v := range p.Views {
		if v.Kind.Bucketed() {
			return true
		}
	}
	return false
}

// ViewNames returns view names in declaration order.
func (p *Profile) ViewNames() []string {
	names := make([]string, len(p.Views))
	for i, v := range p.Views {
		names[i] = v.Name
	}
	return names
}

// Validate checks cross-field rules that CUE parsing alone does not.
func (p *Profile) Validate() error {
	if len(p.Views) == 0 {
		return &CompileError{Field: "views", Message: "at least one view is required"}
	}
	seen := make(map[string]bool, len(p.Views))
	for i, v := range p.Views {
		field := fmt.Sprintf("views[%d]", i)
		if !viewNamePattern.MatchString(v.Name) {
			return &CompileError{Field: field + ".name", Message: fmt.Sprintf("invalid view name %q", v.Name)}
		}
		if seen[v.Name] {
			return &CompileError{Field: field + ".name", Message: fmt.Sprintf("duplicate view name %q", v.Name)}
		}
		seen[v.Name] = true
		if _, err := view.ParseKind(string(v.Kind)); err != nil {
			return &CompileError{Field: field + ".kind", Message: err.Error()}
		}
		if v.Kind == view.KindPriority && p.Payload != PayloadSeverity {
			return &CompileError{Field: field + ".kind", Message: "priority views need payload \"severity\""}
		}
		if v.Kind == view.KindMinExpiry && p.Payload != PayloadExpiry {
			return &CompileError{Field: field + ".kind", Message: "min_expiry views need payload \"expiry\""}
		}
	}
	if p.Payload == PayloadSeverity && p.Severity.Min > p.Severity.Max {
		return &CompileError{Field: "severity", Message: fmt.Sprintf("min %d exceeds max %d", p.Severity.Min, p.Severity.Max)}
	}
	if p.Sweep != nil {
		spec, ok := p.View(p.Sweep.View)
		if !ok {
			return &CompileError{Field: "sweep.view", Message: fmt.Sprintf("unknown view %q", p.Sweep.View)}
		}
		if spec.Kind != view.KindMinExpiry {
			return &CompileError{Field: "sweep.view", Message: fmt.Sprintf("view %q is %s, sweeps need min_expiry", spec.Name, spec.Kind)}
		}
	}
	return nil
}

// ValidExpiry reports whether s is a real YYYY-MM-DD date.
func ValidExpiry(s string) bool {
	_, err := time.Parse(ExpiryLayout, s)
	return err == nil
}
