// Package store is the persistence layer for sessions, responses and
// violations. Every call may fail; failures surface to the caller and never
// corrupt the controller's in-memory state.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"interviewlab/internal/models"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the opaque keyed persistence contract used by the controller.
type Store interface {
	CreateSession(ctx context.Context, session *models.InterviewSession) error
	GetSession(ctx context.Context, id string) (*models.InterviewSession, error)
	UpdateSessionProgress(ctx context.Context, id string, answered, skipped int) error
	SaveResponse(ctx context.Context, response *models.Response) error
	SaveViolation(ctx context.Context, violation *models.Violation) error
	CompleteSession(ctx context.Context, id string, durationSec int, overallScore int, metrics models.IntegrityMetrics) error
	ListStaleSessions(ctx context.Context, olderThan time.Time) ([]models.InterviewSession, error)
}

// GormStore persists through GORM; postgres in production, in-memory
// sqlite under test.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&models.InterviewSession{}, &models.Response{}, &models.Violation{}); err != nil {
		return nil, fmt.Errorf("failed to migrate session schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) CreateSession(ctx context.Context, session *models.InterviewSession) error {
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *GormStore) GetSession(ctx context.Context, id string) (*models.InterviewSession, error) {
	var session models.InterviewSession
	err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &session, nil
}

func (s *GormStore) UpdateSessionProgress(ctx context.Context, id string, answered, skipped int) error {
	result := s.db.WithContext(ctx).Model(&models.InterviewSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"questions_answered": answered,
			"questions_skipped":  skipped,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update session progress: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) SaveResponse(ctx context.Context, response *models.Response) error {
	if err := s.db.WithContext(ctx).Create(response).Error; err != nil {
		return fmt.Errorf("failed to save response: %w", err)
	}
	return nil
}

func (s *GormStore) SaveViolation(ctx context.Context, violation *models.Violation) error {
	if err := s.db.WithContext(ctx).Create(violation).Error; err != nil {
		return fmt.Errorf("failed to save violation: %w", err)
	}
	return nil
}

func (s *GormStore) CompleteSession(ctx context.Context, id string, durationSec int, overallScore int, metrics models.IntegrityMetrics) error {
	now := time.Now()
	result := s.db.WithContext(ctx).Model(&models.InterviewSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"completed":       true,
			"completed_at":    now,
			"stage":           "completed",
			"duration_sec":    durationSec,
			"overall_score":   overallScore,
			"violation_count": metrics.ViolationCount,
			"time_away_sec":   metrics.TimeAwaySec,
			"integrity_score": metrics.IntegrityScore,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to complete session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListStaleSessions returns unfinished sessions created before the cutoff,
// used by the reaper job.
func (s *GormStore) ListStaleSessions(ctx context.Context, olderThan time.Time) ([]models.InterviewSession, error) {
	var sessions []models.InterviewSession
	err := s.db.WithContext(ctx).
		Where("completed = ? AND created_at < ?", false, olderThan).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale sessions: %w", err)
	}
	return sessions, nil
}
