// Package events publishes session lifecycle notifications over Redis so
// downstream consumers (history, analytics) can react without being wired
// into the session controller. Publishing is fire-and-forget; a broker
// outage never fails a session operation.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"interviewlab/internal/models"
)

const (
	ChannelSessionStarted = "session_started"
	ChannelSessionEnded   = "session_ended"
	ChannelViolation      = "session_violation"
)

// SessionStartedEvent is published when a session transitions out of loading.
type SessionStartedEvent struct {
	SessionID     string `json:"sessionId"`
	Category      string `json:"category"`
	TargetRole    string `json:"targetRole"`
	QuestionCount int    `json:"questionCount"`
	DurationSec   int    `json:"durationSeconds"`
	StartedAt     string `json:"startedAt"`
}

// SessionEndedEvent is published exactly once per session, on completion.
type SessionEndedEvent struct {
	SessionID      string `json:"sessionId"`
	Category       string `json:"category"`
	OverallScore   int    `json:"overallScore"`
	IntegrityScore int    `json:"integrityScore"`
	Answered       int    `json:"questionsAnswered"`
	Skipped        int    `json:"questionsSkipped"`
	DurationSec    int    `json:"durationSeconds"`
	EndedAt        string `json:"endedAt"`
}

// ViolationEvent is published for every recorded integrity violation.
type ViolationEvent struct {
	SessionID   string  `json:"sessionId"`
	Type        string  `json:"type"`
	OccurredAt  string  `json:"occurredAt"`
	DurationSec float64 `json:"durationSeconds"`
}

// Publisher wraps a Redis client. A nil Publisher (or one built with an
// empty address) is valid and drops every event, so callers never need to
// branch on whether eventing is configured.
type Publisher struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewPublisher returns nil when addr is empty.
func NewPublisher(addr string, logger *zap.Logger) *Publisher {
	if addr == "" {
		return nil
	}
	return &Publisher{
		rdb:    redis.NewClient(&redis.Options{Addr: addr}),
		logger: logger,
	}
}

func (p *Publisher) publish(ctx context.Context, channel string, event interface{}) {
	if p == nil || p.rdb == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("failed to marshal event", zap.String("channel", channel), zap.Error(err))
		return
	}
	if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		p.logger.Warn("failed to publish event", zap.String("channel", channel), zap.Error(err))
	}
}

func (p *Publisher) SessionStarted(ctx context.Context, session *models.InterviewSession) {
	p.publish(ctx, ChannelSessionStarted, SessionStartedEvent{
		SessionID:     session.ID,
		Category:      session.Category,
		TargetRole:    session.TargetRole,
		QuestionCount: len(session.QuestionIDs),
		DurationSec:   session.DurationSec,
		StartedAt:     time.Now().UTC().Format(time.RFC3339),
	})
}

func (p *Publisher) SessionEnded(ctx context.Context, session *models.InterviewSession) {
	p.publish(ctx, ChannelSessionEnded, SessionEndedEvent{
		SessionID:      session.ID,
		Category:       session.Category,
		OverallScore:   session.OverallScore,
		IntegrityScore: session.IntegrityScore,
		Answered:       session.QuestionsAnswered,
		Skipped:        session.QuestionsSkipped,
		DurationSec:    session.DurationSec,
		EndedAt:        time.Now().UTC().Format(time.RFC3339),
	})
}

func (p *Publisher) ViolationDetected(ctx context.Context, v *models.Violation) {
	p.publish(ctx, ChannelViolation, ViolationEvent{
		SessionID:   v.SessionID,
		Type:        string(v.Type),
		OccurredAt:  v.OccurredAt.UTC().Format(time.RFC3339),
		DurationSec: v.DurationSec,
	})
}

// Close releases the underlying connection. Safe on nil.
func (p *Publisher) Close() error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Close()
}
