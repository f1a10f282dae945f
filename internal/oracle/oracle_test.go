package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewlab/internal/models"
	"interviewlab/internal/retry"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare object", `{"score": 85}`, `{"score": 85}`, true},
		{"prose around", "Sure! Here you go:\n{\"score\": 85}\nHope that helps.", `{"score": 85}`, true},
		{"nested braces", `result: {"a": {"b": 1}} trailing`, `{"a": {"b": 1}}`, true},
		{"braces inside strings", `{"feedback": "use {} sparingly"}`, `{"feedback": "use {} sparingly"}`, true},
		{"escaped quote", `{"feedback": "she said \"hi\""}`, `{"feedback": "she said \"hi\""}`, true},
		{"no object", "plain prose with no json", "", false},
		{"unbalanced", `{"score": 85`, "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeObject_MalformedNeverPanics(t *testing.T) {
	var eval Evaluation
	err := decodeObject("the model refused to answer in json today", &eval)
	require.Error(t, err)

	var pErr *ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, ErrCodeBadResponse, pErr.Code)
}

func TestDefaultTestCases(t *testing.T) {
	cases := DefaultTestCases(2)
	require.Len(t, cases, 2)
	// One baseline, one edge (empty input).
	assert.NotEmpty(t, cases[0].Input)
	assert.Empty(t, cases[1].Input)

	assert.Len(t, DefaultTestCases(4), 4)
	assert.Len(t, DefaultTestCases(1), 1)
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0, ClampScore(-20))
	assert.Equal(t, 55, ClampScore(55))
	assert.Equal(t, 100, ClampScore(640))
}

// failingProvider always errors; flakyProvider succeeds on the nth call.
type failingProvider struct{ calls int }

func (f *failingProvider) ScoreAnswer(ctx context.Context, q models.Question, a string) (Evaluation, error) {
	f.calls++
	return Evaluation{}, errors.New("oracle down")
}

func (f *failingProvider) GenerateFollowUps(ctx context.Context, q models.Question, code, lang string) ([]string, error) {
	f.calls++
	return nil, errors.New("oracle down")
}

func (f *failingProvider) GenerateTestCases(ctx context.Context, q models.Question, count int) ([]models.TestCase, error) {
	f.calls++
	return nil, errors.New("oracle down")
}

func (f *failingProvider) GetProviderName() string { return "failing" }

func newTestResilient(inner Provider) *Resilient {
	r := NewResilient(inner, 2, nil)
	r.backoff = retry.Exponential(time.Millisecond)
	return r
}

func TestResilient_ScoreFallsBackToNeutralDefault(t *testing.T) {
	inner := &failingProvider{}
	r := newTestResilient(inner)

	eval, err := r.ScoreAnswer(context.Background(), models.Question{}, "my answer")
	require.NoError(t, err)

	assert.Equal(t, DefaultEvaluation(), eval)
	assert.Equal(t, 2, inner.calls)
}

func TestResilient_FollowUpsFallBack(t *testing.T) {
	r := newTestResilient(&failingProvider{})

	qs, err := r.GenerateFollowUps(context.Background(), models.Question{}, "code", "python")
	require.NoError(t, err)
	assert.Equal(t, DefaultFollowUps(), qs)
}

func TestResilient_TestCasesFallBack(t *testing.T) {
	r := newTestResilient(&failingProvider{})

	cases, err := r.GenerateTestCases(context.Background(), models.Question{}, 2)
	require.NoError(t, err)
	assert.Equal(t, DefaultTestCases(2), cases)
}

type fixedProvider struct{ eval Evaluation }

func (f *fixedProvider) ScoreAnswer(ctx context.Context, q models.Question, a string) (Evaluation, error) {
	return f.eval, nil
}

func (f *fixedProvider) GenerateFollowUps(ctx context.Context, q models.Question, code, lang string) ([]string, error) {
	return []string{"why recursion?"}, nil
}

func (f *fixedProvider) GenerateTestCases(ctx context.Context, q models.Question, count int) ([]models.TestCase, error) {
	return []models.TestCase{{Input: "a", ExpectedOutput: "b"}}, nil
}

func (f *fixedProvider) GetProviderName() string { return "fixed" }

func TestResilient_PassesThroughAndClamps(t *testing.T) {
	r := newTestResilient(&fixedProvider{eval: Evaluation{Score: 250, Feedback: "great"}})

	eval, err := r.ScoreAnswer(context.Background(), models.Question{}, "answer")
	require.NoError(t, err)
	assert.Equal(t, 100, eval.Score)
	assert.Equal(t, "great", eval.Feedback)
}

func TestResilient_WrongCaseCountFallsBack(t *testing.T) {
	// Provider returned 1 case where policy demands 2.
	r := newTestResilient(&fixedProvider{})

	cases, err := r.GenerateTestCases(context.Background(), models.Question{}, 2)
	require.NoError(t, err)
	assert.Equal(t, DefaultTestCases(2), cases)
}
