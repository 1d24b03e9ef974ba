package engine

import (
	"context"
	"time"

	"vestnik/internal/models"
)

// RunForeground polls the active conversation at the short cadence. A forced
// fetch (conversation switch) wakes the loop immediately. One fetch at a
// time: a tick arriving while the previous cycle is still running is skipped,
// not queued. Failed cycles are dropped silently — the next tick is the
// retry.
func (e *Engine) RunForeground(ctx context.Context) error {
	ticker := time.NewTicker(e.fgInterval)
	defer ticker.Stop()

	e.foregroundCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.forceCh:
			e.foregroundCycle(ctx)
		case <-ticker.C:
			e.foregroundCycle(ctx)
		}
	}
}

func (e *Engine) foregroundCycle(ctx context.Context) {
	if !e.fgFetching.CompareAndSwap(false, true) {
		return
	}
	defer e.fgFetching.Store(false)

	scope := e.store.ActiveConversation()
	after := e.store.Cursor(scope)

	batch, err := e.client.FetchState(ctx, scope, after)
	if err != nil {
		e.log.Debug("foreground poll failed", "scope", scope, "error", err)
		return
	}
	// The active conversation may have changed while the fetch was in
	// flight; Apply discards message application for a stale scope.
	e.Apply(scope, batch)
}

// RunBackground polls the aggregate scope at the longer cadence to keep
// unread counters and notifications current while a single conversation is
// displayed. It idles whenever the aggregate view itself is active, since
// the foreground loop already covers that scope.
func (e *Engine) RunBackground(ctx context.Context) error {
	ticker := time.NewTicker(e.bgInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.backgroundCycle(ctx)
		}
	}
}

func (e *Engine) backgroundCycle(ctx context.Context) {
	if e.store.ActiveConversation() == models.AggregateConversation {
		return
	}
	if !e.bgFetching.CompareAndSwap(false, true) {
		return
	}
	defer e.bgFetching.Store(false)

	after := e.store.Cursor(models.AggregateConversation)
	batch, err := e.client.FetchState(ctx, models.AggregateConversation, after)
	if err != nil {
		e.log.Debug("background poll failed", "error", err)
		return
	}
	e.Apply(models.AggregateConversation, batch)
}
