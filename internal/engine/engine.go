package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/multiview/internal/ir"
	"github.com/roach88/multiview/internal/profile"
	"github.com/roach88/multiview/internal/records"
	"github.com/roach88/multiview/internal/stats"
	"github.com/roach88/multiview/internal/view"
)

// AddRequest describes a record to insert. Payload fields the profile does
// not use are ignored.
type AddRequest struct {
	Key      string
	Name     string
	Severity int64
	Expiry   string
	Bucket   string
}

// ViewRef addresses one view. Bucket is required for bucketed views and
// ignored otherwise.
type ViewRef struct {
	Name   string
	Bucket string
}

// AuditSink receives every removal event. Implemented by store.Store.
type AuditSink interface {
	RecordRemoval(ctx context.Context, r ir.Removal) error
}

// Observer is notified of engine activity. Implemented by metrics.Collector.
// Calls happen under the engine lock and must not call back into the engine.
type Observer interface {
	Taken(view string, latency int64)
	Removed(cause ir.RemovalCause)
	StaleSkipped(view string, n int)
	LiveRecords(n int)
}

type nopObserver struct{}

func (nopObserver) Taken(string, int64)      {}
func (nopObserver) Removed(ir.RemovalCause)  {}
func (nopObserver) StaleSkipped(string, int) {}
func (nopObserver) LiveRecords(int)          {}

// Engine coordinates one record store and the views a profile attaches.
//
// Thread-safety: every exported method takes the engine lock for its whole
// duration, so each operation sees and leaves a consistent state.
//
// INVARIANTS:
//   - Only TakeNext and SweepExpired remove keys from the record store
//   - Every live record has exactly one live entry in every attached view
//   - The clock never moves backwards; Seq values are unique
type Engine struct {
	mu sync.Mutex

	profile  *profile.Profile
	records  *records.Store
	views    map[string]view.Set
	stats    *stats.Accumulator
	clock    LogicalClock
	ids      IdentityGenerator
	logger   *slog.Logger
	audit    AuditSink
	observer Observer

	// stale counts entries discarded per view, persisted with snapshots.
	stale map[string]int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the logical clock.
// Use testutil.DeterministicClock for reproducible seq values.
func WithClock(c LogicalClock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIdentities replaces the identity generator.
// Default: UUIDv7Generator.
func WithIdentities(g IdentityGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithLogger sets the logger. Default: a logger that discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithAuditSink sends every removal event to sink.
func WithAuditSink(sink AuditSink) Option {
	return func(e *Engine) {
		e.audit = sink
	}
}

// WithObserver reports activity to o, typically a metrics collector.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// New creates an empty engine with one view per profile view spec.
func New(p *profile.Profile, opts ...Option) (*Engine, error) {
	if p == nil {
		return nil, errors.New("engine: profile is required")
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid profile %q: %w", p.Name, err)
	}

	e := &Engine{
		profile:  p,
		records:  records.New(),
		views:    make(map[string]view.Set, len(p.Views)),
		stats:    stats.New(),
		clock:    NewClock(),
		ids:      UUIDv7Generator{},
		logger:   slog.New(slog.DiscardHandler),
		observer: nopObserver{},
		stale:    make(map[string]int64),
	}
	for _, spec := range p.Views {
		set, err := view.New(spec.Kind)
		if err != nil {
			return nil, fmt.Errorf("engine: view %q: %w", spec.Name, err)
		}
		e.views[spec.Name] = set
	}

	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Profile returns the profile the engine was built with.
func (e *Engine) Profile() *profile.Profile {
	return e.profile
}

// Add validates req against the profile, stamps it with a new identity and
// seq, and pushes a copy into every attached view.
//
// Fails with DUPLICATE_KEY when the key is already live; the existing record
// is left untouched and the clock does not advance.
func (e *Engine) Add(ctx context.Context, req AddRequest) (ir.Record, error) {
	if err := ctx.Err(); err != nil {
		return ir.Record{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.newRecord(req)
	if err != nil {
		return ir.Record{}, err
	}
	if e.records.Contains(rec.Key) {
		return ir.Record{}, &Error{
			Code:    ErrCodeDuplicateKey,
			Message: "key is already live",
			Key:     rec.Key,
			Err:     records.ErrDuplicateKey,
		}
	}

	rec.Identity = e.ids.Generate()
	rec.Seq = e.clock.Next()
	if err := e.records.Insert(rec); err != nil {
		return ir.Record{}, fmt.Errorf("insert %q: %w", rec.Key, err)
	}

	entry := rec.Entry()
	for _, spec := range e.profile.Views {
		e.views[spec.Name].Push(entry)
	}
	e.observer.LiveRecords(e.records.Len())

	e.logger.Debug("record added",
		"key", rec.Key,
		"identity", rec.Identity,
		"seq", rec.Seq)
	return rec, nil
}

// newRecord checks req against the profile and keeps only the payload
// fields the profile uses.
func (e *Engine) newRecord(req AddRequest) (ir.Record, error) {
	if req.Key == "" {
		return ir.Record{}, newInvalidRecord("", "key is required")
	}
	rec := ir.Record{Key: req.Key, Name: req.Name}

	switch e.profile.Payload {
	case profile.PayloadSeverity:
		r := e.profile.Severity
		if !r.Contains(req.Severity) {
			return ir.Record{}, newInvalidRecord(req.Key, "severity %d outside [%d, %d]", req.Severity, r.Min, r.Max)
		}
		rec.Severity = req.Severity
	case profile.PayloadExpiry:
		if !profile.ValidExpiry(req.Expiry) {
			return ir.Record{}, newInvalidRecord(req.Key, "expiry %q is not a %s date", req.Expiry, "YYYY-MM-DD")
		}
		rec.Expiry = req.Expiry
	}

	if e.profile.Bucketed() {
		if req.Bucket == "" {
			return ir.Record{}, &Error{
				Code:    ErrCodeBucketRequired,
				Message: "bucket is required",
				Key:     req.Key,
				Err:     view.ErrBucketRequired,
			}
		}
		rec.Bucket = req.Bucket
	}
	return rec, nil
}

// TakeNext removes and returns the next live record of a view. The pop and
// the removal from the record store are one step: once a record is
// returned, every other view skips it.
//
// Latency (clock at removal minus Seq) is recorded on the stats channel
// named after the view. Fails with EMPTY when the view has nothing live.
func (e *Engine) TakeNext(ctx context.Context, ref ViewRef) (ir.Record, error) {
	if err := ctx.Err(); err != nil {
		return ir.Record{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	set, v, err := e.resolve(ref)
	if err != nil {
		return ir.Record{}, err
	}

	skipped := 0
	entry, ok := v.Pop(func(en ir.Entry) bool {
		if e.records.IsLive(en) {
			return true
		}
		skipped++
		return false
	})
	if skipped > 0 {
		e.discarded(ref.Name, skipped)
		e.logger.Debug("stale entries discarded", "view", ref.Name, "count", skipped)
	}
	if !ok {
		return ir.Record{}, &Error{Code: ErrCodeEmpty, Message: "no live records", View: ref.Name}
	}

	rec, err := e.records.Get(entry.Key)
	if err != nil {
		return ir.Record{}, fmt.Errorf("take %q: %w", entry.Key, err)
	}
	e.records.Remove(rec.Key)

	now := e.clock.Next()
	latency := now - rec.Seq
	e.stats.Record(ref.Name, latency)

	removal := ir.Removal{
		Key:      rec.Key,
		Identity: rec.Identity,
		Cause:    ir.CauseTake,
		View:     ref.Name,
		Seq:      now,
		Latency:  latency,
	}
	if set.Kind().Bucketed() {
		removal.Bucket = rec.Bucket
	}
	e.emit(ctx, removal)

	e.observer.Taken(ref.Name, latency)
	e.observer.Removed(ir.CauseTake)
	e.observer.LiveRecords(e.records.Len())

	e.logger.Debug("record taken",
		"key", rec.Key,
		"view", ref.Name,
		"latency", latency)
	return rec, nil
}

// Find returns the live record for key. A miss is NOT_FOUND, which usually
// means the record was already processed through some view.
func (e *Engine) Find(key string) (ir.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.records.Get(key)
	if err != nil {
		return ir.Record{}, &Error{
			Code:    ErrCodeNotFound,
			Message: "not found, possibly already processed",
			Key:     key,
			Err:     err,
		}
	}
	return rec, nil
}

// Snapshot returns the live records of a view in take order without
// modifying the view. The sequence is materialized under the engine lock,
// so later mutations do not affect it.
func (e *Engine) Snapshot(ref ViewRef) (iter.Seq[ir.Record], error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, v, err := e.resolve(ref)
	if err != nil {
		return nil, err
	}

	var out []ir.Record
	for en := range v.Snapshot(e.records.IsLive) {
		rec, err := e.records.Get(en.Key)
		if err != nil {
			return nil, fmt.Errorf("snapshot %q: %w", en.Key, err)
		}
		out = append(out, rec)
	}
	return slices.Values(out), nil
}

// Buckets lists the bucket ids known to a bucketed view, sorted. Buckets
// stay listed after they are emptied. Unbucketed views have no buckets.
func (e *Engine) Buckets(name string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	set, ok := e.views[name]
	if !ok {
		return nil, newUnknownView(name)
	}
	if b, ok := set.(*view.Buckets); ok {
		return b.IDs(), nil
	}
	return nil, nil
}

// Records returns every live record ordered by seq.
func (e *Engine) Records() iter.Seq[ir.Record] {
	e.mu.Lock()
	defer e.mu.Unlock()

	return slices.Values(e.sortedRecords())
}

// Len returns the number of live records.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.records.Len()
}

// Stats returns the average latency recorded on channel. Channels are named
// after views. Fails with NO_DATA when nothing was recorded.
func (e *Engine) Stats(channel string) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	avg, err := e.stats.Average(channel)
	if err != nil {
		return 0, &Error{Code: ErrCodeNoData, Message: "no events recorded", View: channel, Err: err}
	}
	return avg, nil
}

// Totals returns the raw sum and count of every stats channel, sorted by
// channel name.
func (e *Engine) Totals() []ir.ChannelTotal {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.stats.Totals()
}

// TakeCount returns the number of takes recorded on channel.
func (e *Engine) TakeCount(channel string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.stats.Count(channel)
}

// StaleCounts returns the number of stale entries discarded from each view
// since the engine's state was first created, sorted by view name.
func (e *Engine) StaleCounts() []ir.StaleCount {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.staleCounts()
}

func (e *Engine) staleCounts() []ir.StaleCount {
	var out []ir.StaleCount
	for name, n := range e.stale {
		out = append(out, ir.StaleCount{View: name, Count: n})
	}
	slices.SortFunc(out, func(a, b ir.StaleCount) int { return cmp.Compare(a.View, b.View) })
	return out
}

// discarded records n stale entries dropped from view. Caller must hold e.mu.
func (e *Engine) discarded(name string, n int) {
	e.stale[name] += int64(n)
	e.observer.StaleSkipped(name, n)
}

// resolve looks up the view a ref addresses. Caller must hold e.mu.
func (e *Engine) resolve(ref ViewRef) (view.Set, view.View, error) {
	set, ok := e.views[ref.Name]
	if !ok {
		return nil, nil, newUnknownView(ref.Name)
	}
	v, err := set.Resolve(ref.Bucket)
	if err != nil {
		if errors.Is(err, view.ErrBucketRequired) {
			return nil, nil, &Error{
				Code:    ErrCodeBucketRequired,
				Message: "bucketed view needs a bucket",
				View:    ref.Name,
				Err:     err,
			}
		}
		return nil, nil, fmt.Errorf("resolve view %q: %w", ref.Name, err)
	}
	return set, v, nil
}

// sortedRecords returns live records ordered by seq. Caller must hold e.mu.
func (e *Engine) sortedRecords() []ir.Record {
	out := slices.Collect(e.records.All())
	slices.SortFunc(out, func(a, b ir.Record) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return out
}

// emit stamps a removal with its content ID and sends it to the audit sink.
// A failed audit write is logged and does not undo the removal.
func (e *Engine) emit(ctx context.Context, r ir.Removal) {
	if e.audit == nil {
		return
	}
	r.ID = ir.MustRemovalID(r)
	if err := e.audit.RecordRemoval(ctx, r); err != nil {
		e.logger.Error("audit write failed",
			"removal", r.ID,
			"key", r.Key,
			"cause", r.Cause,
			"error", err)
	}
}
