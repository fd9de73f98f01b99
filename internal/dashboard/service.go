// Package dashboard refreshes and caches metric snapshots per scope. It is
// the only stateful part of the metrics pipeline: it reads a scope's records
// through a query.Repository, runs the metrics engine and keeps the most
// recent snapshot for each scope.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/codr1/transitdash/internal/metrics"
	"github.com/codr1/transitdash/internal/query"
)

const defaultRefreshTimeout = 30 * time.Second

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Config struct {
	// RefreshTimeout bounds the repository reads of one refresh (default 30s).
	RefreshTimeout time.Duration
	// Clock for testing (nil uses real time)
	Clock Clock
}

type Service struct {
	loader  loader
	engine  *metrics.Engine
	clock   Clock
	timeout time.Duration

	group singleflight.Group

	mu   sync.RWMutex
	last map[metrics.Scope]metrics.Snapshot
}

func NewService(repo query.Repository, engine *metrics.Engine, cfg Config) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	timeout := cfg.RefreshTimeout
	if timeout <= 0 {
		timeout = defaultRefreshTimeout
	}
	return &Service{
		loader:  loader{repo: repo},
		engine:  engine,
		clock:   clock,
		timeout: timeout,
		last:    make(map[metrics.Scope]metrics.Snapshot),
	}
}

// Refresh recomputes the snapshot for scope. Concurrent calls for the same
// scope share one computation. On failure the previously stored snapshot is
// left untouched.
func (s *Service) Refresh(ctx context.Context, scope metrics.Scope) (metrics.Snapshot, error) {
	v, err, _ := s.group.Do(scope.String(), func() (any, error) {
		// Detached so one caller going away does not fail the others.
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.refresh(refreshCtx, scope)
	})
	if err != nil {
		return metrics.Snapshot{}, err
	}
	return v.(metrics.Snapshot), nil
}

func (s *Service) refresh(ctx context.Context, scope metrics.Scope) (metrics.Snapshot, error) {
	started := time.Now()
	now := s.clock.Now()
	cal := metrics.NewCalendar(now, s.engine.Location())

	in, err := s.loader.load(ctx, scope, cal)
	if err != nil {
		if errors.Is(err, ErrCompanyNotFound) {
			return metrics.Snapshot{}, fmt.Errorf("%s: %w", scope, err)
		}
		log.Ctx(ctx).Error().
			Err(err).
			Str("scope", scope.String()).
			Msg("Dashboard refresh failed; keeping previous snapshot")
		return metrics.Snapshot{}, fmt.Errorf("refresh %s: %w", scope, err)
	}

	snapshot := s.engine.Compute(in, now)

	s.mu.Lock()
	s.last[scope] = snapshot
	s.mu.Unlock()

	log.Ctx(ctx).Info().
		Str("scope", scope.String()).
		Str("snapshot_id", snapshot.ID).
		Int("alerts", len(snapshot.Alerts)).
		Dur("duration", time.Since(started)).
		Msg("Dashboard snapshot refreshed")

	return snapshot, nil
}

// RefreshTimeout is the effective per-refresh deadline after defaults.
func (s *Service) RefreshTimeout() time.Duration {
	return s.timeout
}

// Last returns the most recent successful snapshot for scope.
func (s *Service) Last(scope metrics.Scope) (metrics.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.last[scope]
	return snapshot, ok
}

// Snapshot returns the stored snapshot for scope, refreshing once when the
// scope has never been computed.
func (s *Service) Snapshot(ctx context.Context, scope metrics.Scope) (metrics.Snapshot, error) {
	if snapshot, ok := s.Last(scope); ok {
		return snapshot, nil
	}
	return s.Refresh(ctx, scope)
}

// RefreshCompanies refreshes every active company. A failing company does
// not stop the others; the failures are joined into the returned error.
func (s *Service) RefreshCompanies(ctx context.Context) (int, error) {
	listCtx, cancel := context.WithTimeout(ctx, s.timeout)
	ids, err := s.loader.activeCompanyIDs(listCtx)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("list active companies: %w", err)
	}

	var (
		refreshed int
		errs      []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := s.Refresh(ctx, metrics.CompanyScope(id)); err != nil {
			errs = append(errs, err)
			continue
		}
		refreshed++
	}
	return refreshed, errors.Join(errs...)
}
