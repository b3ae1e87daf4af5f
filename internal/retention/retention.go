package retention

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adhocore/gronx"

	"marketsync/pkg/config"
	"marketsync/pkg/logger"
	"marketsync/pkg/store"
)

// Retention removes tombstoned messages (and their revision history) once
// they have been deleted for longer than the configured period. Until then
// tombstones stay in the store so audits can reconstruct what happened.

var storedCfg *config.Config

// SetConfig stores the config so tests (or admin triggers) can invoke
// retention runs on-demand.
func SetConfig(cfg *config.Config) {
	storedCfg = cfg
}

// RunImmediate triggers a single retention run using the stored config.
func RunImmediate() error {
	if storedCfg == nil {
		return fmt.Errorf("no config registered for retention run")
	}
	return runOnce(context.Background(), storedCfg)
}

// Start starts the retention scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, cfg *config.Config, dbPath string) (context.CancelFunc, error) {
	ret := cfg.Chat.Retention

	if !ret.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	// stable folder under the DB path for scheduler artifacts
	statePath := filepath.Join(dbPath, "state", "retention")
	if err := os.MkdirAll(statePath, 0o700); err != nil {
		logger.Error("retention_path_create_failed", "path", statePath, "error", err)
		return nil, err
	}

	cronExpr := ret.Cron
	if cronExpr == "" {
		cronExpr = config.DefaultRetentionCron
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", ret.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", ret.Cron)
	}

	logger.Info("retention_enabled", "cron", cronExpr, "period", ret.Period)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cfg, cronExpr)

	logger.Info("retention_scheduler_started", "path", statePath)
	return cancel, nil
}

// runScheduler uses gronx to compute the next tick for the configured cron
// expression and sleeps until that time.
func runScheduler(ctx context.Context, cfg *config.Config, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				logger.Info("retention_scheduler_stopping")
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if err := runOnce(ctx, cfg); err != nil {
				logger.Error("retention_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

// runOnce purges tombstones whose deletion predates now minus the retention
// period and emits an audit record of the sweep.
func runOnce(ctx context.Context, cfg *config.Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	period := cfg.Chat.Retention.Period
	if period <= 0 {
		return fmt.Errorf("retention period not set")
	}
	cutoff := time.Now().Add(-period)
	start := time.Now()
	purged, err := store.PurgeTombstones(cutoff)
	if err != nil {
		logger.AuditEvent("retention_run_failed", "cutoff", cutoff.UTC().Format(time.RFC3339), "error", err.Error())
		return err
	}
	logger.AuditEvent("retention_run_complete",
		"cutoff", cutoff.UTC().Format(time.RFC3339),
		"purged", purged,
		"took_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
