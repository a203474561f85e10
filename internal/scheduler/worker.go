// Package scheduler runs the periodic maintenance passes: auto-ending shifts,
// expiring stale sessions and purging audit rows past retention.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hybrid-auth-service/internal/config"
)

const (
	TaskShiftAutoEnd  = "shift_auto_end"
	TaskSessionExpiry = "session_expiry"
	TaskAuditPurge    = "audit_purge"
)

type Maintainer interface {
	EndDueShifts(ctx context.Context) (int, error)
	ExpireStaleSessions(ctx context.Context) (admin, staff int64, err error)
}

type AuditPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type MaintenanceObserver interface {
	ObserveMaintenance(task string, err error)
}

type Worker struct {
	maintainer Maintainer
	purger     AuditPurger
	observer   MaintenanceObserver
	logger     *zap.Logger

	interval      time.Duration
	purgeInterval time.Duration
	retention     time.Duration
	now           func() time.Time
}

type Option func(*Worker)

func WithObserver(observer MaintenanceObserver) Option {
	return func(w *Worker) { w.observer = observer }
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// NewWorker builds a worker from the scheduler and audit settings. A nil
// purger disables the retention pass.
func NewWorker(maintainer Maintainer, purger AuditPurger, cfg *config.Config, logger *zap.Logger, opts ...Option) *Worker {
	w := &Worker{
		maintainer:    maintainer,
		purger:        purger,
		logger:        logger,
		interval:      cfg.Scheduler.Interval,
		purgeInterval: cfg.Scheduler.PurgeInterval,
		retention:     cfg.Audit.Retention,
		now:           time.Now,
	}
	if w.interval <= 0 {
		w.interval = time.Minute
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run performs one pass immediately and then one per interval until ctx is
// cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("Maintenance worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("purge_interval", w.purgeInterval))

	w.RunMaintenance(ctx)
	w.RunPurge(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var purgeC <-chan time.Time
	if w.purger != nil && w.purgeInterval > 0 && w.retention > 0 {
		purgeTicker := time.NewTicker(w.purgeInterval)
		defer purgeTicker.Stop()
		purgeC = purgeTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Maintenance worker stopped")
			return
		case <-ticker.C:
			w.RunMaintenance(ctx)
		case <-purgeC:
			w.RunPurge(ctx)
		}
	}
}

// RunMaintenance ends overdue shifts and then bulk-expires sessions.
func (w *Worker) RunMaintenance(ctx context.Context) {
	ended, err := w.maintainer.EndDueShifts(ctx)
	w.report(TaskShiftAutoEnd, err)
	if err != nil {
		w.logger.Error("Shift auto-end pass failed", zap.Int("ended", ended), zap.Error(err))
	} else if ended > 0 {
		w.logger.Info("Auto-ended shifts", zap.Int("ended", ended))
	}

	admin, staff, err := w.maintainer.ExpireStaleSessions(ctx)
	w.report(TaskSessionExpiry, err)
	if err != nil {
		w.logger.Error("Session expiry pass failed", zap.Error(err))
		return
	}
	if admin > 0 || staff > 0 {
		w.logger.Debug("Expired stale sessions",
			zap.Int64("admin_sessions", admin),
			zap.Int64("staff_sessions", staff))
	}
}

// RunPurge deletes audit rows older than the retention window.
func (w *Worker) RunPurge(ctx context.Context) {
	if w.purger == nil || w.retention <= 0 {
		return
	}
	cutoff := w.now().Add(-w.retention)
	_, err := w.purger.PurgeOlderThan(ctx, cutoff)
	w.report(TaskAuditPurge, err)
	if err != nil {
		w.logger.Error("Audit purge failed", zap.Time("cutoff", cutoff), zap.Error(err))
	}
}

func (w *Worker) report(task string, err error) {
	if w.observer != nil {
		w.observer.ObserveMaintenance(task, err)
	}
}
