// Package oracle is the text-generation interface used to score answers,
// generate code-review follow-ups and generate test cases. The oracle is
// fallible and non-authoritative: every operation has a documented default
// that callers receive instead of an error.
package oracle

import (
	"context"
	"fmt"

	"interviewlab/internal/models"
)

// Evaluation is a 0-100 score with free-text feedback.
type Evaluation struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// Provider is the oracle capability contract.
type Provider interface {
	ScoreAnswer(ctx context.Context, question models.Question, answer string) (Evaluation, error)
	GenerateFollowUps(ctx context.Context, question models.Question, code, language string) ([]string, error)
	GenerateTestCases(ctx context.Context, question models.Question, count int) ([]models.TestCase, error)
	GetProviderName() string
}

// Error codes for provider failures.
const (
	ErrCodeAPIKey       = "api_key"
	ErrCodeServiceDown  = "service_down"
	ErrCodeInvalidInput = "invalid_input"
	ErrCodeBadResponse  = "bad_response"
)

// ProviderError carries the failing provider and a stable code.
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Provider, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// DefaultEvaluation is the neutral score substituted when the oracle cannot
// produce one.
func DefaultEvaluation() Evaluation {
	return Evaluation{
		Score:    70,
		Feedback: "Your answer was recorded. Automated evaluation was unavailable for this response.",
	}
}

// DefaultFollowUps is the canned code-review prompt used when generation
// fails.
func DefaultFollowUps() []string {
	return []string{"Walk me through your solution. Why did you structure it this way?"}
}

// DefaultTestCases is the fixed canned pair (one baseline, one edge case)
// substituted when generation fails or returns malformed output.
func DefaultTestCases(count int) []models.TestCase {
	cases := []models.TestCase{
		{Input: "hello", ExpectedOutput: "hello"},
		{Input: "", ExpectedOutput: ""},
	}
	for len(cases) < count {
		cases = append(cases, models.TestCase{
			Input:          fmt.Sprintf("case-%d", len(cases)+1),
			ExpectedOutput: fmt.Sprintf("case-%d", len(cases)+1),
		})
	}
	return cases[:count]
}

// ClampScore bounds a reported score to the 0-100 range.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
