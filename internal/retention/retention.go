// Package retention prunes the processed-message log and idle sessions on
// a cron schedule.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"github.com/nextlevelbuilder/hrdesk/internal/config"
	"github.com/nextlevelbuilder/hrdesk/internal/session"
)

// Defaults applied when the config leaves a field empty.
const (
	DefaultSchedule          = "17 3 * * *"
	DefaultProcessedMaxAge   = 30 * 24 * time.Hour
	DefaultSessionIdleMaxAge = 90 * 24 * time.Hour
)

// ErrBadSchedule is returned for an unparseable cron expression.
var ErrBadSchedule = errors.New("retention: invalid cron schedule")

// Result counts the rows removed by one run.
type Result struct {
	Processed int64
	Sessions  int64
}

// Job prunes one store. A zero max age disables that half of the job.
type Job struct {
	pruner       session.Pruner
	schedule     string
	processedAge time.Duration
	idleAge      time.Duration
	now          func() time.Time
}

// New builds a Job from cfg.
func New(p session.Pruner, cfg config.RetentionConfig) (*Job, error) {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}
	g := gronx.New()
	if !g.IsValid(schedule) {
		return nil, fmt.Errorf("%w: %q", ErrBadSchedule, schedule)
	}
	processed, err := config.ParseDuration(cfg.ProcessedMaxAge, DefaultProcessedMaxAge)
	if err != nil {
		return nil, fmt.Errorf("retention.processed_max_age: %w", err)
	}
	idle, err := config.ParseDuration(cfg.SessionIdleMaxAge, DefaultSessionIdleMaxAge)
	if err != nil {
		return nil, fmt.Errorf("retention.session_idle_max_age: %w", err)
	}
	return &Job{
		pruner:       p,
		schedule:     schedule,
		processedAge: processed,
		idleAge:      idle,
		now:          time.Now,
	}, nil
}

// RunOnce prunes everything older than the configured ages.
func (j *Job) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	now := j.now()
	if j.processedAge > 0 {
		n, err := j.pruner.PruneProcessed(ctx, now.Add(-j.processedAge))
		if err != nil {
			return res, fmt.Errorf("prune processed log: %w", err)
		}
		res.Processed = n
	}
	if j.idleAge > 0 {
		n, err := j.pruner.PruneSessions(ctx, now.Add(-j.idleAge))
		if err != nil {
			return res, fmt.Errorf("prune sessions: %w", err)
		}
		res.Sessions = n
	}
	return res, nil
}

// Next returns the first scheduled run strictly after t.
func (j *Job) Next(t time.Time) (time.Time, error) {
	return gronx.NextTickAfter(j.schedule, t, false)
}

// Run prunes on every schedule tick until ctx is cancelled. Failed runs are
// logged and retried at the next tick.
func (j *Job) Run(ctx context.Context) error {
	slog.Info("retention scheduler started", "schedule", j.schedule,
		"processed_max_age", j.processedAge, "session_idle_max_age", j.idleAge)
	for {
		now := j.now()
		next, err := j.Next(now)
		if err != nil {
			return fmt.Errorf("retention schedule: %w", err)
		}
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		res, err := j.RunOnce(ctx)
		if err != nil {
			slog.Warn("retention run failed", "error", err)
			continue
		}
		slog.Info("retention run", "processed_pruned", res.Processed, "sessions_pruned", res.Sessions)
	}
}
