package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs daily jobs on a cron, dropping firings that arrive too late.
type Scheduler struct {
	cron   *cron.Cron
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

func NewScheduler(loc *time.Location, now func() time.Time, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		loc:    loc,
		now:    now,
		logger: logger.With("component", "scheduler"),
	}
}

// RegisterDaily schedules fn at hour:minute in the scheduler's location.
// If the cron fires more than grace after the slot (a stalled process, a
// clock jump), that run is dropped. Slots that pass while the process is
// down are not replayed on start; use Job.RunUnlocked to catch up by hand.
func (s *Scheduler) RegisterDaily(name string, hour, minute int, grace time.Duration, fn func(ctx context.Context)) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("invalid schedule %02d:%02d", hour, minute)
	}
	spec := fmt.Sprintf("%d %d * * *", minute, hour)
	_, err := s.cron.AddFunc(spec, func() {
		now := s.now()
		if !withinGrace(now, hour, minute, grace, s.loc) {
			s.logger.Debug("missed run skipped", "job", name, "now", now)
			return
		}
		s.logger.Info("scheduled job start", "job", name)
		fn(context.Background())
	})
	return err
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for a running job or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

// withinGrace reports whether now is no more than grace past today's slot.
func withinGrace(now time.Time, hour, minute int, grace time.Duration, loc *time.Location) bool {
	local := now.In(loc)
	slot := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	late := local.Sub(slot)
	return late >= 0 && late <= grace
}
