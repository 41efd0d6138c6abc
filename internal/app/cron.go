package app

import (
	"context"
	"time"

	"github.com/contentforge/studio/internal/modules/session"
	"github.com/contentforge/studio/internal/modules/syncer"
	pkgcron "github.com/contentforge/studio/internal/pkg/cron"
	"go.uber.org/zap"
)

const jobPeriodicRefresh = "periodic_refresh"

// registerCronJobs registers the background re-fetch. A zero interval keeps
// the job available for manual runs only.
func registerCronJobs(sched *pkgcron.Scheduler, coord *syncer.Coordinator, sess *session.Manager, interval time.Duration, logger *zap.Logger) {
	cronLogger := logger.Named("CronService")

	sched.Register(pkgcron.Job{
		Name:        jobPeriodicRefresh,
		Description: "Re-fetch jobs and library to pick up changes made elsewhere",
		Interval:    interval,
		Enabled: func() bool {
			return sess.Token() != "" && coord.State() != syncer.StateIdle
		},
		Fn: func(ctx context.Context) error {
			if err := coord.Refresh(ctx, "periodic"); err != nil {
				cronLogger.Warn("periodic refresh failed", zap.Error(err))
				return err
			}
			return nil
		},
	})
}
