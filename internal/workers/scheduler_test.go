package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/OshadiJayananda/lms-backend/internal/platform/db"
)

type countingJobs struct {
	overdue   atomic.Int64
	reminders atomic.Int64
	stale     atomic.Int64
}

func (c *countingJobs) MarkOverdue(context.Context) (int64, error) {
	return c.overdue.Add(1), nil
}

func (c *countingJobs) SendReturnReminders(context.Context) (int, error) {
	return int(c.reminders.Add(1)), nil
}

func (c *countingJobs) ExpireStale(context.Context) (int, error) {
	return int(c.stale.Add(1)), nil
}

func Test_Scheduler_RunsEachJobAtStartupAndStops(t *testing.T) {
	jobs := &countingJobs{}
	s := NewScheduler(db.SchedulerConfig{
		OverdueInterval:        "1h",
		StaleRenewalInterval:   "1h",
		ReturnReminderInterval: "1h",
	}, jobs, jobs, jobs)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	// Every job fires once immediately.
	deadline := time.After(2 * time.Second)
	for jobs.overdue.Load() == 0 || jobs.reminders.Load() == 0 || jobs.stale.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("jobs did not run at startup")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	s.Wait()

	// Long intervals mean exactly the startup run happened.
	assert.Equal(t, int64(1), jobs.overdue.Load())
	assert.Equal(t, int64(1), jobs.reminders.Load())
	assert.Equal(t, int64(1), jobs.stale.Load())
}

func Test_ParseInterval(t *testing.T) {
	assert.Equal(t, time.Hour, parseInterval("", time.Hour))
	assert.Equal(t, 15*time.Minute, parseInterval("15m", time.Hour))
	assert.Equal(t, time.Hour, parseInterval("soon", time.Hour))
	assert.Equal(t, time.Hour, parseInterval("-5m", time.Hour))
}
