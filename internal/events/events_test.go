package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"interviewlab/internal/models"
)

func setupPublisher(t *testing.T) (*Publisher, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	p := NewPublisher(mr.Addr(), zap.NewNop())
	t.Cleanup(func() { _ = p.Close() })

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = sub.Close() })
	return p, sub
}

func TestSessionEndedPublished(t *testing.T) {
	p, sub := setupPublisher(t)
	ctx := context.Background()

	pubsub := sub.Subscribe(ctx, ChannelSessionEnded)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	p.SessionEnded(ctx, &models.InterviewSession{
		ID:             "sess-1",
		Category:       "backend",
		OverallScore:   82,
		IntegrityScore: 95,
	})

	select {
	case msg := <-pubsub.Channel():
		var event SessionEndedEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
		assert.Equal(t, "sess-1", event.SessionID)
		assert.Equal(t, 82, event.OverallScore)
		assert.Equal(t, 95, event.IntegrityScore)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session_ended event")
	}
}

func TestViolationPublished(t *testing.T) {
	p, sub := setupPublisher(t)
	ctx := context.Background()

	pubsub := sub.Subscribe(ctx, ChannelViolation)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	p.ViolationDetected(ctx, &models.Violation{
		SessionID:   "sess-1",
		Type:        models.ViolationTabSwitch,
		OccurredAt:  time.Now(),
		DurationSec: 3.5,
	})

	select {
	case msg := <-pubsub.Channel():
		var event ViolationEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
		assert.Equal(t, "tab-switch", event.Type)
		assert.Equal(t, 3.5, event.DurationSec)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for violation event")
	}
}

func TestNilPublisherDropsEvents(t *testing.T) {
	var p *Publisher

	// Must not panic.
	p.SessionStarted(context.Background(), &models.InterviewSession{ID: "x"})
	p.SessionEnded(context.Background(), &models.InterviewSession{ID: "x"})
	assert.NoError(t, p.Close())
}

func TestNewPublisherEmptyAddr(t *testing.T) {
	assert.Nil(t, NewPublisher("", zap.NewNop()))
}
