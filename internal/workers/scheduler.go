package workers

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/OshadiJayananda/lms-backend/internal/platform/db"
)

// OverdueMarker flips past-due loans to Overdue.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context) (int64, error)
}

// ReminderSender mails members whose loans come due soon.
type ReminderSender interface {
	SendReturnReminders(ctx context.Context) (int, error)
}

// StaleExpirer auto-rejects renewal counter-proposals nobody answered.
type StaleExpirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

const (
	defaultOverdueInterval  = 15 * time.Minute
	defaultStaleInterval    = 24 * time.Hour
	defaultReminderInterval = 24 * time.Hour
)

// Scheduler drives the periodic maintenance jobs. Each job runs once at
// startup and then on its ticker; a failing run is logged and retried on the
// next tick.
type Scheduler struct {
	overdue   OverdueMarker
	reminders ReminderSender
	stale     StaleExpirer

	overdueEvery  time.Duration
	staleEvery    time.Duration
	reminderEvery time.Duration

	wg sync.WaitGroup
}

func NewScheduler(cfg db.SchedulerConfig, overdue OverdueMarker, reminders ReminderSender, stale StaleExpirer) *Scheduler {
	return &Scheduler{
		overdue:       overdue,
		reminders:     reminders,
		stale:         stale,
		overdueEvery:  parseInterval(cfg.OverdueInterval, defaultOverdueInterval),
		staleEvery:    parseInterval(cfg.StaleRenewalInterval, defaultStaleInterval),
		reminderEvery: parseInterval(cfg.ReturnReminderInterval, defaultReminderInterval),
	}
}

// Start launches the job loops. They stop when ctx is canceled; Wait blocks
// until they have drained.
func (s *Scheduler) Start(ctx context.Context) {
	s.launch(ctx, "mark-overdue", s.overdueEvery, func(ctx context.Context) (int64, error) {
		return s.overdue.MarkOverdue(ctx)
	})
	s.launch(ctx, "return-reminders", s.reminderEvery, func(ctx context.Context) (int64, error) {
		n, err := s.reminders.SendReturnReminders(ctx)
		return int64(n), err
	})
	s.launch(ctx, "expire-stale-renewals", s.staleEvery, func(ctx context.Context) (int64, error) {
		n, err := s.stale.ExpireStale(ctx)
		return int64(n), err
	})
}

func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) launch(ctx context.Context, name string, every time.Duration, run func(context.Context) (int64, error)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(every)
		defer ticker.Stop()

		s.runOnce(ctx, name, run)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx, name, run)
			}
		}
	}()
}

func (s *Scheduler) runOnce(ctx context.Context, name string, run func(context.Context) (int64, error)) {
	// Each run gets its own deadline so one stuck job cannot wedge the loop.
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	n, err := run(runCtx)
	if err != nil {
		log.Printf("[WARN] job %s failed: %v", name, err)
		return
	}
	if n > 0 {
		log.Printf("[INFO] job %s touched %d records", name, n)
	}
}

func parseInterval(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("[WARN] invalid scheduler interval %q, using %s", raw, def)
		return def
	}
	return d
}
