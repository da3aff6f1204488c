// Package cleanup runs the scheduled tombstone reaper: tombstones older
// than the configured horizon are dropped from the in-process log and
// purged from the store.
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"github.com/QuilibriumNetwork/quorum-shared/pkg/logger"
	syncpkg "github.com/QuilibriumNetwork/quorum-shared/pkg/sync"
)

// Start starts the cleanup scheduler when enabled. Returns a cancel func.
func Start(ctx context.Context, engine *syncpkg.Engine, ts syncpkg.TombstoneStorage, enabled bool, cronExpr string) (context.CancelFunc, error) {
	if !enabled {
		logger.Info("tombstone_cleanup_disabled")
		return func() {}, nil
	}
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("cleanup_invalid_cron", "cron", cronExpr)
		return nil, fmt.Errorf("invalid cleanup cron expression: %s", cronExpr)
	}

	logger.Info("tombstone_cleanup_enabled", "cron", cronExpr)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, engine, ts, cronExpr)
	return cancel, nil
}

// runScheduler computes the next gronx tick and sleeps until then.
func runScheduler(ctx context.Context, engine *syncpkg.Engine, ts syncpkg.TombstoneStorage, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("cleanup_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("cleanup_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if err := RunOnce(ctx, engine, ts); err != nil {
				logger.Error("cleanup_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("cleanup_scheduler_stopping")
			return
		}
	}
}

// RunOnce reaps expired tombstones and purges their persisted copies.
func RunOnce(ctx context.Context, engine *syncpkg.Engine, ts syncpkg.TombstoneStorage) error {
	removed := engine.CleanupTombstones(time.Now())
	if len(removed) == 0 {
		logger.Debug("cleanup_nothing_to_reap")
		return nil
	}
	if ts != nil {
		for _, t := range removed {
			if err := ts.DeleteTombstone(ctx, t); err != nil {
				return fmt.Errorf("purge tombstone %s: %w", t.MessageID, err)
			}
		}
	}
	logger.Info("tombstones_reaped", "count", len(removed))
	return nil
}
