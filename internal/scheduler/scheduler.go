package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/SystAttic/TraversiumNotificationService/internal/domain"
)

// TenantDirectory enumerates the tenant scopes the sweep visits.
type TenantDirectory interface {
	List(ctx context.Context) ([]string, error)
}

// Merger runs one bundling pass over a whole tenant scope.
type Merger interface {
	MergeTenant(ctx context.Context, scope domain.Scope) (map[string]int, error)
}

// Announcer receives the bundle keys a sweep produced, so state transitions
// made by the scheduler are echoed onto the live distribution layer.
type Announcer interface {
	AnnounceBundles(ctx context.Context, scope domain.Scope, mergedKeys map[string]int)
}

// Sweeper drives the bundling engine across all tenants on a fixed period.
// Each tenant is processed sequentially and in isolation: one tenant's
// failure never aborts the remaining tenants, and a failed sweep is simply
// retried on the next tick because unseen rows persist until merged.
type Sweeper struct {
	dir      TenantDirectory
	merger   Merger
	announce Announcer
	interval time.Duration
	running  atomic.Bool
}

func NewSweeper(dir TenantDirectory, merger Merger, announce Announcer, interval time.Duration) *Sweeper {
	return &Sweeper{dir: dir, merger: merger, announce: announce, interval: interval}
}

// Run ticks until ctx is cancelled. A tick that fires while the previous
// sweep is still in progress is skipped rather than overlapped.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.running.CompareAndSwap(false, true) {
				slog.Debug("previous bundling sweep still running, skipping tick")
				continue
			}
			s.Sweep(ctx)
			s.running.Store(false)
		}
	}
}

// Sweep runs one full pass over every known tenant.
func (s *Sweeper) Sweep(ctx context.Context) {
	tenants, err := s.dir.List(ctx)
	if err != nil {
		slog.Error("could not enumerate tenants, abandoning sweep", "err", err)
		return
	}

	for _, tenant := range tenants {
		scope := domain.Scope{Tenant: tenant}
		merged, err := s.merger.MergeTenant(ctx, scope)
		if err != nil {
			slog.Error("bundling sweep failed for tenant", "tenant", tenant, "err", err)
			// Partially merged groups are still worth announcing.
		}
		if len(merged) == 0 {
			continue
		}
		slog.Debug("bundled unseen notifications", "tenant", tenant, "bundles", len(merged))
		if s.announce != nil {
			s.announce.AnnounceBundles(ctx, scope, merged)
		}
	}
}
