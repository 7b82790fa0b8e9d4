package engine

import (
	"context"
	"fmt"

	"github.com/roach88/multiview/internal/ir"
	"github.com/roach88/multiview/internal/profile"
)

// SweepExpired removes every live record whose expiry is on or before
// threshold, in expiry order, from the profile's sweep view.
//
// The sweep repeatedly takes the minimum of the view while its expiry is
// <= threshold and stops at the first live entry past it. Each removal is
// stamped with its own clock value; sweeps record no stats. Stale entries
// met on the way are discarded and never returned as removed. When the
// profile sets sweep.report_stale, the discarded entries at or before the
// threshold are written to the audit log with cause "stale".
func (e *Engine) SweepExpired(ctx context.Context, threshold string) ([]ir.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !profile.ValidExpiry(threshold) {
		return nil, &Error{
			Code:    ErrCodeInvalidThreshold,
			Message: fmt.Sprintf("threshold %q is not a YYYY-MM-DD date", threshold),
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sw := e.profile.Sweep
	if sw == nil {
		return nil, &Error{Code: ErrCodeNoSweepView, Message: fmt.Sprintf("profile %q has no sweep view", e.profile.Name)}
	}
	_, v, err := e.resolve(ViewRef{Name: sw.View})
	if err != nil {
		return nil, err
	}

	stale := 0
	live := func(en ir.Entry) bool {
		if e.records.IsLive(en) {
			return true
		}
		stale++
		if sw.ReportStale && en.Expiry <= threshold {
			e.emit(ctx, ir.Removal{
				Key:      en.Key,
				Identity: en.Identity,
				Cause:    ir.CauseStale,
				View:     sw.View,
				Seq:      e.clock.Current(),
				Latency:  e.clock.Current() - en.Seq,
			})
		}
		return false
	}

	var removed []ir.Record
	for {
		en, ok := v.Peek(live)
		if !ok || en.Expiry > threshold {
			break
		}
		v.Pop(live)

		rec, err := e.records.Get(en.Key)
		if err != nil {
			return removed, fmt.Errorf("sweep %q: %w", en.Key, err)
		}
		e.records.Remove(rec.Key)

		now := e.clock.Next()
		e.emit(ctx, ir.Removal{
			Key:      rec.Key,
			Identity: rec.Identity,
			Cause:    ir.CauseSweep,
			View:     sw.View,
			Seq:      now,
			Latency:  now - rec.Seq,
		})
		e.observer.Removed(ir.CauseSweep)
		removed = append(removed, rec)
	}

	if stale > 0 {
		e.discarded(sw.View, stale)
	}
	e.observer.LiveRecords(e.records.Len())

	e.logger.Debug("sweep complete",
		"threshold", threshold,
		"removed", len(removed),
		"stale", stale)
	return removed, nil
}
