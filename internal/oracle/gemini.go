package oracle

import (
	"context"
	"encoding/json"
	"strconv"

	"google.golang.org/genai"

	"interviewlab/internal/models"
	"interviewlab/internal/oracle/prompts"
)

// Gemini is the hosted text-generation provider.
type Gemini struct {
	client  *genai.Client
	model   string
	prompts *prompts.Manager
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &ProviderError{
			Provider: "gemini",
			Code:     ErrCodeAPIKey,
			Message:  "Failed to create Gemini client",
			Err:      err,
		}
	}

	pm, err := prompts.NewManager()
	if err != nil {
		return nil, err
	}

	return &Gemini{client: client, model: model, prompts: pm}, nil
}

func (g *Gemini) GetProviderName() string { return "gemini" }

func (g *Gemini) ScoreAnswer(ctx context.Context, question models.Question, answer string) (Evaluation, error) {
	prompt, err := g.prompts.Build("score", map[string]string{
		"Type":       string(question.Type),
		"Difficulty": string(question.Difficulty),
		"Question":   question.Prompt,
		"Answer":     answer,
	})
	if err != nil {
		return Evaluation{}, err
	}

	raw, err := g.generate(ctx, prompt)
	if err != nil {
		return Evaluation{}, err
	}

	var eval Evaluation
	if err := decodeObject(raw, &eval); err != nil {
		return Evaluation{}, err
	}
	eval.Score = ClampScore(eval.Score)
	return eval, nil
}

func (g *Gemini) GenerateFollowUps(ctx context.Context, question models.Question, code, language string) ([]string, error) {
	prompt, err := g.prompts.Build("followups", map[string]string{
		"Language": language,
		"Code":     code,
		"Question": question.Prompt,
	})
	if err != nil {
		return nil, err
	}

	raw, err := g.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var out struct {
		Questions []string `json:"questions"`
	}
	if err := decodeObject(raw, &out); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

func (g *Gemini) GenerateTestCases(ctx context.Context, question models.Question, count int) ([]models.TestCase, error) {
	prompt, err := g.prompts.Build("testcases", map[string]string{
		"Count":    strconv.Itoa(count),
		"Question": question.Prompt,
	})
	if err != nil {
		return nil, err
	}

	raw, err := g.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var out struct {
		TestCases []models.TestCase `json:"testCases"`
	}
	if err := decodeObject(raw, &out); err != nil {
		return nil, err
	}
	return out.TestCases, nil
}

func (g *Gemini) generate(ctx context.Context, prompt string) (string, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", &ProviderError{
			Provider: "gemini",
			Code:     ErrCodeServiceDown,
			Message:  "Failed to generate content",
			Err:      err,
		}
	}
	if result == nil {
		return "", &ProviderError{
			Provider: "gemini",
			Code:     ErrCodeBadResponse,
			Message:  "No response generated",
		}
	}

	text, err := result.Text()
	if err != nil {
		return "", &ProviderError{
			Provider: "gemini",
			Code:     ErrCodeBadResponse,
			Message:  "Failed to extract response text",
			Err:      err,
		}
	}
	if text == "" {
		return "", &ProviderError{
			Provider: "gemini",
			Code:     ErrCodeBadResponse,
			Message:  "Empty response generated",
		}
	}
	return text, nil
}

// decodeObject extracts the first {...} block from free text and parses it
// into out.
func decodeObject(text string, out any) error {
	block, ok := ExtractJSONObject(text)
	if !ok {
		return &ProviderError{
			Provider: "gemini",
			Code:     ErrCodeBadResponse,
			Message:  "No JSON object in response",
		}
	}
	if err := json.Unmarshal([]byte(block), out); err != nil {
		return &ProviderError{
			Provider: "gemini",
			Code:     ErrCodeBadResponse,
			Message:  "Malformed JSON in response",
			Err:      err,
		}
	}
	return nil
}
