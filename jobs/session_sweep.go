package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/staffdir/staffdir/internal/observability"
)

// Sweeper deletes expired sessions and reports how many were removed.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// SessionSweepJob purges expired sessions from the session store.
type SessionSweepJob struct {
	Sweeper Sweeper
	Logger  *slog.Logger
	Metrics *observability.Metrics
	clock   func() time.Time
}

// NewSessionSweepJob initialises the sweep handler.
func NewSessionSweepJob(sweeper Sweeper, logger *slog.Logger, metrics *observability.Metrics) *SessionSweepJob {
	return &SessionSweepJob{
		Sweeper: sweeper,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes a sweep for an Asynq task.
func (j *SessionSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sweeper == nil {
		return errors.New("session sweep: handler not configured")
	}
	var payload SessionsSweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("session sweep: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	if payload.Reason == "" {
		payload.Reason = "scheduled"
	}
	_, err := j.Run(ctx, payload.Reason)
	return err
}

// Run performs one sweep and returns the number of sessions removed.
func (j *SessionSweepJob) Run(ctx context.Context, reason string) (int64, error) {
	start := j.now()
	logger := j.logger().With(slog.String("job", TaskSessionsSweep), slog.String("reason", reason))

	removed, err := j.Sweeper.SweepExpired(ctx)
	if err != nil {
		logger.Error("session sweep failed", slog.Any("error", err))
		return 0, fmt.Errorf("session sweep: %w", err)
	}
	j.Metrics.SessionsSwept(removed)
	logger.Info("session sweep completed",
		slog.Int64("removed", removed),
		slog.Duration("duration", j.now().Sub(start)),
	)
	return removed, nil
}

// Loop sweeps every interval until ctx is cancelled. Failures are logged
// and the loop keeps going.
func (j *SessionSweepJob) Loop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("session sweep: interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, _ = j.Run(ctx, "interval")
		}
	}
}

func (j *SessionSweepJob) now() time.Time {
	if j.clock == nil {
		return time.Now().UTC()
	}
	return j.clock()
}

func (j *SessionSweepJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
