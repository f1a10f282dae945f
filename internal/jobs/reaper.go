// Package jobs holds the engine's scheduled maintenance work.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"interviewlab/internal/models"
	"interviewlab/internal/store"
)

// ReaperConfig controls the stale-session sweep.
type ReaperConfig struct {
	Schedule string        // cron schedule, e.g. "*/10 * * * *"
	MaxAge   time.Duration // sessions unfinished for longer than this are closed
}

// SessionReaper force-completes sessions whose process died without running
// the normal teardown, so they do not stay open forever.
type SessionReaper struct {
	store  store.Store
	config ReaperConfig
	logger *zap.Logger
	cron   *cron.Cron
}

func NewSessionReaper(store store.Store, config ReaperConfig, logger *zap.Logger) *SessionReaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionReaper{
		store:  store,
		config: config,
		logger: logger,
		cron:   cron.New(),
	}
}

// Start schedules the sweep.
func (r *SessionReaper) Start() error {
	_, err := r.cron.AddFunc(r.config.Schedule, func() {
		if err := r.RunSweep(context.Background()); err != nil {
			r.logger.Warn("stale session sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule session reaper: %w", err)
	}
	r.cron.Start()
	return nil
}

// Stop halts the scheduler.
func (r *SessionReaper) Stop() {
	if r.cron != nil {
		r.cron.Stop()
	}
}

// RunSweep closes every unfinished session older than MaxAge. Abandoned
// sessions get no overall score; their integrity state is kept as last
// recorded.
func (r *SessionReaper) RunSweep(ctx context.Context) error {
	cutoff := time.Now().Add(-r.config.MaxAge)
	stale, err := r.store.ListStaleSessions(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, s := range stale {
		metrics := models.IntegrityMetrics{
			ViolationCount: s.ViolationCount,
			TimeAwaySec:    s.TimeAwaySec,
			IntegrityScore: s.IntegrityScore,
		}
		elapsed := s.DurationSec - s.TimeRemainingSec
		if err := r.store.CompleteSession(ctx, s.ID, elapsed, 0, metrics); err != nil {
			r.logger.Warn("failed to close stale session",
				zap.String("sessionId", s.ID), zap.Error(err))
			continue
		}
		r.logger.Info("closed stale session",
			zap.String("sessionId", s.ID),
			zap.Time("createdAt", s.CreatedAt))
	}
	return nil
}
