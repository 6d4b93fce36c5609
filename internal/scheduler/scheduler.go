package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/libcirc/circulation-service/internal/model"
)

type Config struct {
	Interval time.Duration `envconfig:"SCHEDULER_INTERVAL" default:"24h"`
	Enabled  bool          `envconfig:"SCHEDULER_ENABLED" default:"true"`
}

// Jobs are the periodic circulation passes. All of them are idempotent, so
// overlap with an external cron runner is harmless.
type Jobs interface {
	SweepExpirations(ctx context.Context, now time.Time) (model.SweepReport, error)
	MarkLostOverdue(ctx context.Context, thresholdDays int, dryRun bool) (model.LostReport, error)
	SendDueReminders(ctx context.Context, now time.Time, dryRun bool) (model.ReminderReport, error)
}

type Scheduler struct {
	jobs Jobs
	cfg  Config
	log  *zap.Logger
}

func New(jobs Jobs, cfg Config, log *zap.Logger) *Scheduler {
	return &Scheduler{
		jobs: jobs,
		cfg:  cfg,
		log:  log.Named("scheduler"),
	}
}

// Run blocks until ctx is canceled, firing the job batch once per interval.
// A failed job is logged and the remaining jobs still run.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	now := time.Now()

	if report, err := s.jobs.SweepExpirations(ctx, now); err != nil {
		s.log.Error("sweep expirations", zap.Error(err))
	} else {
		s.log.Info("sweep expirations",
			zap.Int("expired", report.Expired), zap.Int("reassigned", report.Reassigned))
	}

	if report, err := s.jobs.MarkLostOverdue(ctx, 0, false); err != nil {
		s.log.Error("mark lost overdue", zap.Error(err))
	} else {
		s.log.Info("mark lost overdue",
			zap.Int("markedLost", report.MarkedLost), zap.Int("notified", report.Notified))
	}

	if report, err := s.jobs.SendDueReminders(ctx, now, false); err != nil {
		s.log.Error("send due reminders", zap.Error(err))
	} else {
		s.log.Info("send due reminders",
			zap.Int("dueSoon", report.DueSoon), zap.Int("overdue", report.Overdue))
	}
}
