package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/libcirc/circulation-service/internal/model"
	"github.com/libcirc/circulation-service/internal/scheduler"
)

type countingJobs struct {
	sweeps    atomic.Int32
	lost      atomic.Int32
	reminders atomic.Int32
}

func (j *countingJobs) SweepExpirations(ctx context.Context, now time.Time) (model.SweepReport, error) {
	j.sweeps.Add(1)
	return model.SweepReport{}, nil
}

func (j *countingJobs) MarkLostOverdue(ctx context.Context, thresholdDays int, dryRun bool) (model.LostReport, error) {
	j.lost.Add(1)
	return model.LostReport{}, nil
}

func (j *countingJobs) SendDueReminders(ctx context.Context, now time.Time, dryRun bool) (model.ReminderReport, error) {
	j.reminders.Add(1)
	return model.ReminderReport{}, nil
}

func TestScheduler_RunsAllJobsEachTick(t *testing.T) {
	t.Parallel()
	jobs := &countingJobs{}
	s := scheduler.New(jobs, scheduler.Config{Interval: 10 * time.Millisecond, Enabled: true}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return jobs.sweeps.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	require.GreaterOrEqual(t, jobs.lost.Load(), int32(1))
	require.GreaterOrEqual(t, jobs.reminders.Load(), int32(1))
}
