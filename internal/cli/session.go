package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/multiview/internal/engine"
	"github.com/roach88/multiview/internal/ir"
	"github.com/roach88/multiview/internal/metrics"
	"github.com/roach88/multiview/internal/profile"
	"github.com/roach88/multiview/internal/store"
)

// defaultProfile is used for a fresh database when no profile is given.
const defaultProfile = "triage"

// session is one command's view of the database: the store, and an engine
// restored from its snapshot (or fresh when the database is empty).
type session struct {
	store   *store.Store
	engine  *engine.Engine
	metrics *metrics.Collector
	logger  *slog.Logger
}

// openSession opens the database, resolves the profile and restores the
// engine. Errors are ExitErrors with ExitCommandError.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*session, error) {
	logger := newLogger(opts, cmd.ErrOrStderr())

	st, err := store.Open(opts.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	snap, found, err := st.Load(ctx)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load snapshot", err)
	}

	p, err := sessionProfile(opts.Profile, snap, found)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to resolve profile", err)
	}

	collector := metrics.New()
	engOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithAuditSink(st),
		engine.WithObserver(collector),
	}

	var eng *engine.Engine
	if found {
		eng, err = engine.Restore(p, snap, engOpts...)
	} else {
		eng, err = engine.New(p, engOpts...)
	}
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to restore engine", err)
	}

	logger.Debug("session opened",
		"db", opts.DB,
		"profile", p.Name,
		"restored", found,
		"live", eng.Len())

	return &session{store: st, engine: eng, metrics: collector, logger: logger}, nil
}

// sessionProfile picks the profile for a session. An explicit ref wins.
// Otherwise a stored snapshot supplies it: rebuilt from its saved CUE source
// when it came from a file, or looked up by name when it is a built-in.
func sessionProfile(ref string, snap ir.Snapshot, found bool) (*profile.Profile, error) {
	switch {
	case ref != "":
		return profile.Resolve(ref)
	case !found:
		return profile.Resolve(defaultProfile)
	case snap.ProfileSource != "":
		return profile.FromSource(snap.Profile, snap.ProfileSource)
	default:
		return profile.Builtin(snap.Profile)
	}
}

// save persists the engine state.
func (s *session) save(ctx context.Context) error {
	if err := s.store.Save(ctx, s.engine.Export()); err != nil {
		return WrapExitError(ExitCommandError, "failed to save snapshot", err)
	}
	return nil
}

func (s *session) close() {
	if err := s.store.Close(); err != nil {
		s.logger.Warn("close database", "error", err)
	}
}

// withSession runs fn against an open session and saves afterwards when
// mutate is true. The session is always closed.
func withSession(opts *RootOptions, cmd *cobra.Command, mutate bool, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	runErr := fn(ctx, s)
	if mutate {
		// Refused operations leave the state unchanged.
		if err := s.save(ctx); err != nil {
			return err
		}
	}
	return runErr
}
