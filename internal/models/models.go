package models

import (
	"time"
)

type QuestionType string

const (
	QuestionIntroduction QuestionType = "introduction"
	QuestionBehavioral   QuestionType = "behavioral"
	QuestionTechnical    QuestionType = "technical"
	QuestionCoding       QuestionType = "coding"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

type AnswerKind string

const (
	AnswerText  AnswerKind = "text"
	AnswerCode  AnswerKind = "code"
	AnswerVoice AnswerKind = "voice"
)

type ViolationType string

const (
	ViolationTabSwitch      ViolationType = "tab-switch"
	ViolationWindowBlur     ViolationType = "window-blur"
	ViolationFullscreenExit ViolationType = "fullscreen-exit"
)

// SessionConfig is the interview configuration chosen before the session starts.
type SessionConfig struct {
	Category      string `json:"category"`
	TargetRole    string `json:"targetRole"`
	TargetCompany string `json:"targetCompany"`
	Domain        string `json:"domain"`
	DurationSec   int    `json:"durationSeconds"`
	QuestionCount int    `json:"questionCount"`
}

// Question is immutable once selected into a session.
type Question struct {
	ID               string       `json:"id"`
	Type             QuestionType `json:"type"`
	Prompt           string       `gorm:"type:text" json:"prompt"`
	Difficulty       Difficulty   `json:"difficulty"`
	RequiresCoding   bool         `json:"requiresCoding"`
	AllowedLanguages []string     `gorm:"-" json:"allowedLanguages,omitempty"`
	DefaultLanguage  string       `json:"defaultLanguage,omitempty"`
	TestCaseTemplate string       `gorm:"type:text" json:"testCaseTemplate,omitempty"`
}

// TestCase is an input/expected-output pair generated per coding question.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
}

// ExecutionResult extends its TestCase with what actually happened in the
// sandbox. Results are matched back to test cases by value (input +
// expected output), never by array position.
type ExecutionResult struct {
	TestCase
	ActualOutput    string `json:"actualOutput"`
	Passed          bool   `json:"passed"`
	ExecutionTimeMs int64  `json:"executionTimeMs"`
	Error           string `json:"error,omitempty"`
}

// Matches reports whether the result belongs to the given test case.
func (r ExecutionResult) Matches(tc TestCase) bool {
	return r.Input == tc.Input && r.ExpectedOutput == tc.ExpectedOutput
}

// Response records the outcome of exactly one question's capture stage,
// including skips.
type Response struct {
	ID            string     `gorm:"primaryKey" json:"id"`
	SessionID     string     `gorm:"not null;index" json:"sessionId"`
	QuestionID    string     `gorm:"not null;index" json:"questionId"`
	Order         int        `json:"order"`
	Kind          AnswerKind `json:"kind"`
	Content       string     `gorm:"type:text" json:"content"`
	Language      string     `json:"language,omitempty"`
	Feedback      string     `gorm:"type:text" json:"feedback,omitempty"`
	Score         int        `json:"score"`
	DurationSec   int        `json:"durationSeconds"`
	AutoSubmitted bool       `json:"autoSubmitted"`
	WasSkipped    bool       `json:"wasSkipped"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Violation is a detected loss of exclusive session attention. Appended to
// the session's violation log, never mutated or removed.
type Violation struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	SessionID   string        `gorm:"not null;index" json:"sessionId"`
	Type        ViolationType `gorm:"not null" json:"type"`
	OccurredAt  time.Time     `json:"occurredAt"`
	DurationSec float64       `json:"durationSeconds"`
}

// IntegrityMetrics is the cumulative proctoring state carried by a session.
type IntegrityMetrics struct {
	ViolationCount  int     `json:"violationCount"`
	TabSwitches     int     `json:"tabSwitches"`
	WindowBlurs     int     `json:"windowBlurs"`
	FullscreenExits int     `json:"fullscreenExits"`
	TimeAwaySec     float64 `json:"timeAwaySeconds"`
	IntegrityScore  int     `json:"integrityScore"`
}

// InterviewSession is the persistent record of one proctored session.
// Mutated only by the session controller.
type InterviewSession struct {
	ID                string     `gorm:"primaryKey" json:"id"`
	Category          string     `json:"category"`
	TargetRole        string     `json:"targetRole"`
	TargetCompany     string     `json:"targetCompany"`
	Domain            string     `json:"domain"`
	DurationSec       int        `json:"durationSeconds"`
	QuestionIDs       []string   `gorm:"serializer:json" json:"questionIds"`
	Stage             string     `json:"stage"`
	QuestionsAnswered int        `json:"questionsAnswered"`
	QuestionsSkipped  int        `json:"questionsSkipped"`
	ViolationCount    int        `json:"violationCount"`
	TimeAwaySec       float64    `json:"timeAwaySeconds"`
	IntegrityScore    int        `json:"integrityScore"`
	TimeRemainingSec  int        `json:"timeRemainingSeconds"`
	OverallScore      int        `json:"overallScore"`
	Completed         bool       `json:"completed"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
}
