package harness

import (
	"strconv"

	"github.com/roach88/multiview/internal/ir"
)

// OutcomeOK is the outcome of a step that succeeded.
const OutcomeOK = "ok"

// TraceEvent records one executed step.
type TraceEvent struct {
	Step     int      `json:"step"`
	Op       string   `json:"op"`
	Outcome  string   `json:"outcome"`
	Seq      int64    `json:"seq"` // clock after the step
	Key      string   `json:"key,omitempty"`
	Identity string   `json:"identity,omitempty"`
	View     string   `json:"view,omitempty"`
	Bucket   string   `json:"bucket,omitempty"`
	Keys     []string `json:"keys,omitempty"`
	Average  string   `json:"average,omitempty"` // preformatted: no floats in traces
}

// mentions reports whether the event returned key to the caller.
func (e TraceEvent) mentions(key string) bool {
	if e.Outcome != OutcomeOK {
		return false
	}
	if e.Op != OpAdd && e.Key == key {
		return true
	}
	for _, k := range e.Keys {
		if k == key {
			return true
		}
	}
	return false
}

// toIRObject converts the event to its canonical trace form.
func (e TraceEvent) toIRObject() ir.IRObject {
	obj := ir.IRObject{
		"step":    ir.IRInt(e.Step),
		"op":      ir.IRString(e.Op),
		"outcome": ir.IRString(e.Outcome),
		"seq":     ir.IRInt(e.Seq),
	}
	optional := map[string]string{
		"key":      e.Key,
		"identity": e.Identity,
		"view":     e.View,
		"bucket":   e.Bucket,
		"average":  e.Average,
	}
	for k, v := range optional {
		if v != "" {
			obj[k] = ir.IRString(v)
		}
	}
	if e.Keys != nil {
		obj["keys"] = ir.Strings(e.Keys)
	}
	return obj
}

// formatAverage renders a stats average with the fewest digits that
// round-trip, e.g. "1.5" or "2".
func formatAverage(avg float64) string {
	return strconv.FormatFloat(avg, 'f', -1, 64)
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every executed step in order, setup included.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
