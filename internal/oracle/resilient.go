package oracle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"interviewlab/internal/models"
	"interviewlab/internal/retry"
)

// Resilient wraps a provider with bounded retries and the documented
// fallbacks. Callers of a Resilient provider never see an oracle error:
// scoring, follow-up and test-case failures all degrade to defaults. A nil
// inner provider serves the defaults unconditionally.
type Resilient struct {
	inner    Provider
	attempts int
	backoff  retry.Backoff
	logger   *zap.Logger
}

func NewResilient(inner Provider, attempts int, logger *zap.Logger) *Resilient {
	if attempts < 1 {
		attempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resilient{
		inner:    inner,
		attempts: attempts,
		backoff:  retry.Exponential(500 * time.Millisecond),
		logger:   logger,
	}
}

func (r *Resilient) ScoreAnswer(ctx context.Context, question models.Question, answer string) (Evaluation, error) {
	if r.inner == nil {
		return DefaultEvaluation(), nil
	}
	var eval Evaluation
	err := retry.Do(ctx, r.attempts, r.backoff, func(ctx context.Context) error {
		var err error
		eval, err = r.inner.ScoreAnswer(ctx, question, answer)
		return err
	})
	if err != nil {
		r.logger.Warn("oracle scoring failed, using neutral default", zap.Error(err))
		return DefaultEvaluation(), nil
	}
	eval.Score = ClampScore(eval.Score)
	return eval, nil
}

func (r *Resilient) GenerateFollowUps(ctx context.Context, question models.Question, code, language string) ([]string, error) {
	if r.inner == nil {
		return DefaultFollowUps(), nil
	}
	var questions []string
	err := retry.Do(ctx, r.attempts, r.backoff, func(ctx context.Context) error {
		var err error
		questions, err = r.inner.GenerateFollowUps(ctx, question, code, language)
		return err
	})
	if err != nil || len(questions) == 0 {
		r.logger.Warn("follow-up generation failed, using canned prompt", zap.Error(err))
		return DefaultFollowUps(), nil
	}
	return questions, nil
}

func (r *Resilient) GenerateTestCases(ctx context.Context, question models.Question, count int) ([]models.TestCase, error) {
	if r.inner == nil {
		return DefaultTestCases(count), nil
	}
	var cases []models.TestCase
	err := retry.Do(ctx, r.attempts, r.backoff, func(ctx context.Context) error {
		var err error
		cases, err = r.inner.GenerateTestCases(ctx, question, count)
		return err
	})
	if err != nil || len(cases) != count {
		r.logger.Warn("test-case generation failed, using canned pair", zap.Error(err))
		return DefaultTestCases(count), nil
	}
	return cases, nil
}

func (r *Resilient) GetProviderName() string {
	if r.inner == nil {
		return "disabled"
	}
	return r.inner.GetProviderName()
}
