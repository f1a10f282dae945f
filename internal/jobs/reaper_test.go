package jobs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"interviewlab/internal/models"
	"interviewlab/internal/store"
)

func setupTestStore(t *testing.T) *store.GormStore {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	s, err := store.NewGormStore(db)
	require.NoError(t, err)
	return s
}

func TestRunSweep_ClosesOnlyStaleSessions(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	stale := &models.InterviewSession{
		ID:               "stale-1",
		DurationSec:      1800,
		TimeRemainingSec: 900,
		Stage:            "listening",
		CreatedAt:        time.Now().Add(-3 * time.Hour),
	}
	require.NoError(t, s.CreateSession(ctx, stale))

	fresh := &models.InterviewSession{
		ID:               "fresh-1",
		DurationSec:      1800,
		TimeRemainingSec: 1700,
		Stage:            "listening",
	}
	require.NoError(t, s.CreateSession(ctx, fresh))

	reaper := NewSessionReaper(s, ReaperConfig{Schedule: "* * * * *", MaxAge: time.Hour}, nil)
	require.NoError(t, reaper.RunSweep(ctx))

	got, err := s.GetSession(ctx, "stale-1")
	require.NoError(t, err)
	assert.True(t, got.Completed)
	assert.Equal(t, "completed", got.Stage)
	assert.Equal(t, 0, got.OverallScore)

	got, err = s.GetSession(ctx, "fresh-1")
	require.NoError(t, err)
	assert.False(t, got.Completed)
}

func TestRunSweep_AlreadyCompletedIgnored(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	done := &models.InterviewSession{
		ID:          "done-1",
		DurationSec: 1800,
		Completed:   true,
		CreatedAt:   time.Now().Add(-3 * time.Hour),
	}
	require.NoError(t, s.CreateSession(ctx, done))

	reaper := NewSessionReaper(s, ReaperConfig{Schedule: "* * * * *", MaxAge: time.Hour}, nil)
	require.NoError(t, reaper.RunSweep(ctx))

	got, err := s.GetSession(ctx, "done-1")
	require.NoError(t, err)
	assert.Equal(t, "", got.Stage)
}
