// Package sweep sends the daily overdue reminders.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"Gin_postgres_redis_loan_tracker/models"
	"Gin_postgres_redis_loan_tracker/notify"
	"Gin_postgres_redis_loan_tracker/services"

	"github.com/redis/go-redis/v9"
)

type OverdueSource interface {
	QueryOverdue(ctx context.Context) ([]services.OverdueLoan, error)
}

type Reminder interface {
	OverdueReminder(ctx context.Context, n notify.OverdueNotice) bool
}

// Locker lets only one instance sweep on a given day.
type Locker interface {
	Acquire(ctx context.Context, day time.Time) (bool, error)
}

// ErrLocked is returned by Run when another instance already swept today.
var ErrLocked = errors.New("overdue sweep already ran today")

type Result struct {
	LoanID       string `json:"loan_id"`
	StudentEmail string `json:"student_email"`
	DaysOverdue  int    `json:"days_overdue"`
	Sent         bool   `json:"sent"`
}

type Report struct {
	RanAt      time.Time `json:"ran_at"`
	Candidates int       `json:"candidates"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	Results    []Result  `json:"results"`
}

type Job struct {
	source OverdueSource
	remind Reminder
	locker Locker
	now    func() time.Time
	logger *slog.Logger
}

// New builds a sweep job. locker may be nil.
func New(source OverdueSource, remind Reminder, locker Locker, now func() time.Time, logger *slog.Logger) *Job {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{source: source, remind: remind, locker: locker, now: now, logger: logger.With("component", "overdue_sweep")}
}

// Run takes the day lock and sends one reminder per overdue loan.
func (j *Job) Run(ctx context.Context) (*Report, error) {
	if j.locker != nil {
		ok, err := j.locker.Acquire(ctx, j.now())
		if err != nil {
			return nil, fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !ok {
			j.logger.Info("sweep skipped, lock held")
			return nil, ErrLocked
		}
	}
	return j.RunUnlocked(ctx)
}

// RunUnlocked sweeps without the day lock. A failed reminder is counted and
// the sweep moves on.
func (j *Job) RunUnlocked(ctx context.Context) (*Report, error) {
	rep := &Report{RanAt: j.now().UTC(), Results: make([]Result, 0)}

	loans, err := j.source.QueryOverdue(ctx)
	if err != nil {
		return nil, fmt.Errorf("load overdue loans: %w", err)
	}
	rep.Candidates = len(loans)

	for _, l := range loans {
		if err := ctx.Err(); err != nil {
			j.logger.Warn("sweep interrupted", "sent", rep.Sent, "failed", rep.Failed, "error", err)
			return rep, err
		}
		n := notify.OverdueNotice{
			LoanNotice:  notify.NoticeFor(l.Loan),
			DaysOverdue: l.DaysOverdue,
			Fine:        l.FineAmount,
		}
		ok := j.remind.OverdueReminder(ctx, n)
		if ok {
			rep.Sent++
		} else {
			rep.Failed++
		}
		rep.Results = append(rep.Results, Result{
			LoanID:       l.ID,
			StudentEmail: n.StudentEmail,
			DaysOverdue:  l.DaysOverdue,
			Sent:         ok,
		})
	}

	j.logger.Info("overdue sweep finished", "candidates", rep.Candidates, "sent", rep.Sent, "failed", rep.Failed)
	return rep, nil
}

// RedisLocker claims the day with SETNX overdue_sweep:<date>.
type RedisLocker struct {
	rdb *redis.Client
	ttl time.Duration
	loc *time.Location
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration, loc *time.Location) *RedisLocker {
	if ttl <= 0 {
		ttl = 26 * time.Hour
	}
	if loc == nil {
		loc = time.UTC
	}
	return &RedisLocker{rdb: rdb, ttl: ttl, loc: loc}
}

func lockKey(day time.Time) string { return "overdue_sweep:" + day.Format(models.DateLayout) }

func (l *RedisLocker) Acquire(ctx context.Context, day time.Time) (bool, error) {
	return l.rdb.SetNX(ctx, lockKey(day.In(l.loc)), "1", l.ttl).Result()
}
