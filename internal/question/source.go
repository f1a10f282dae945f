// Package question supplies the ordered question list for a session, from
// the bank when one is configured and from a deterministic default set
// otherwise.
package question

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"interviewlab/internal/models"
)

// Repository is the question-bank contract.
type Repository interface {
	ListByCategory(ctx context.Context, category string, limit int) ([]models.Question, error)
}

// Source prefers the bank and degrades to the default set when the bank is
// missing, empty or failing.
type Source struct {
	repo   Repository
	logger *zap.Logger
}

func NewSource(repo Repository, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{repo: repo, logger: logger}
}

// Load returns the ordered question list for the configuration.
func (s *Source) Load(ctx context.Context, cfg models.SessionConfig) []models.Question {
	count := cfg.QuestionCount
	if count <= 0 {
		count = len(DefaultSet(cfg))
	}

	if s.repo != nil {
		questions, err := s.repo.ListByCategory(ctx, cfg.Category, count)
		if err != nil {
			s.logger.Warn("question bank unavailable, using default set", zap.Error(err))
		} else if len(questions) >= count {
			return questions[:count]
		} else if len(questions) > 0 {
			s.logger.Warn("question bank underfilled, topping up with defaults",
				zap.Int("got", len(questions)), zap.Int("want", count))
			return append(questions, DefaultSet(cfg)[:count-len(questions)]...)
		}
	}

	set := DefaultSet(cfg)
	if count < len(set) {
		return set[:count]
	}
	return set
}

// DefaultSet is the deterministic fallback question list: an introduction,
// two behavioral questions, a technical question and a coding question.
func DefaultSet(cfg models.SessionConfig) []models.Question {
	role := cfg.TargetRole
	if role == "" {
		role = "software engineer"
	}

	return []models.Question{
		{
			ID:         "default-intro",
			Type:       models.QuestionIntroduction,
			Prompt:     fmt.Sprintf("Tell me about yourself and why you are interested in this %s role.", role),
			Difficulty: models.DifficultyEasy,
		},
		{
			ID:         "default-behavioral-1",
			Type:       models.QuestionBehavioral,
			Prompt:     "Describe a time you disagreed with a teammate about a technical decision. How did you resolve it?",
			Difficulty: models.DifficultyMedium,
		},
		{
			ID:         "default-behavioral-2",
			Type:       models.QuestionBehavioral,
			Prompt:     "Tell me about a project that did not go as planned. What did you change afterwards?",
			Difficulty: models.DifficultyMedium,
		},
		{
			ID:         "default-technical",
			Type:       models.QuestionTechnical,
			Prompt:     "Explain the difference between a process and a thread, and when you would reach for each.",
			Difficulty: models.DifficultyMedium,
		},
		{
			ID:               "default-coding",
			Type:             models.QuestionCoding,
			Prompt:           "Read a line from standard input and print it reversed.",
			Difficulty:       models.DifficultyMedium,
			RequiresCoding:   true,
			AllowedLanguages: []string{"python", "javascript", "java", "cpp"},
			DefaultLanguage:  "python",
		},
	}
}
