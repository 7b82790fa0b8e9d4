package engine

import (
	"fmt"

	"github.com/roach88/multiview/internal/ir"
	"github.com/roach88/multiview/internal/profile"
	"github.com/roach88/multiview/internal/view"
)

// Export captures the engine state: clock, live records ordered by seq,
// every view's raw backing (stale entries included) and the stats totals.
// Views appear in profile order; bucketed views list buckets sorted.
func (e *Engine) Export() ir.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := ir.Snapshot{
		Profile:       e.profile.Name,
		ProfileSource: e.profile.Source,
		Clock:         e.clock.Current(),
		Records:       e.sortedRecords(),
		Stats:         e.stats.Totals(),
		Stale:         e.staleCounts(),
	}
	for _, spec := range e.profile.Views {
		for _, st := range e.views[spec.Name].States() {
			st.View = spec.Name
			snap.Views = append(snap.Views, st)
		}
	}
	return snap
}

// Restore rebuilds an engine from a snapshot taken with the same profile.
//
// The clock resumes at snap.Clock unless opts supply another. View entries
// are pushed back in their stored order, which rebuilds each backing
// structure exactly; liveness is recomputed from the restored records on
// the next read.
func Restore(p *profile.Profile, snap ir.Snapshot, opts ...Option) (*Engine, error) {
	if p == nil {
		return nil, fmt.Errorf("restore: profile is required")
	}
	if snap.Profile != "" && snap.Profile != p.Name {
		return nil, fmt.Errorf("restore: snapshot was taken with profile %q, not %q", snap.Profile, p.Name)
	}

	all := append([]Option{WithClock(NewClockAt(snap.Clock))}, opts...)
	e, err := New(p, all...)
	if err != nil {
		return nil, err
	}

	for _, rec := range snap.Records {
		if rec.Seq > snap.Clock {
			return nil, fmt.Errorf("restore: record %q has seq %d past clock %d", rec.Key, rec.Seq, snap.Clock)
		}
		if err := e.records.Insert(rec); err != nil {
			return nil, fmt.Errorf("restore: record %q: %w", rec.Key, err)
		}
	}

	for _, st := range snap.Views {
		set, ok := e.views[st.View]
		if !ok {
			return nil, fmt.Errorf("restore: %w", newUnknownView(st.View))
		}
		if b, ok := set.(*view.Buckets); ok && st.Bucket != "" {
			b.Ensure(st.Bucket)
		}
		for _, en := range st.Entries {
			set.Push(en)
		}
	}

	e.stats.Restore(snap.Stats)
	for _, sc := range snap.Stale {
		e.stale[sc.View] = sc.Count
	}
	e.observer.LiveRecords(e.records.Len())
	return e, nil
}
