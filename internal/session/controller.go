package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"interviewlab/internal/events"
	"interviewlab/internal/integrity"
	"interviewlab/internal/models"
	"interviewlab/internal/oracle"
	"interviewlab/internal/question"
	"interviewlab/internal/sandbox"
	"interviewlab/internal/store"
	"interviewlab/internal/synthesis"
)

var (
	ErrSessionCompleted = errors.New("session already completed")
	ErrSessionPaused    = errors.New("session is paused")
	ErrEmptyAnswer      = errors.New("answer is empty")
	ErrNoExecution      = errors.New("code must be run at least once before submitting")
)

// Capturer is the per-question speech capture contract. Satisfied by
// capture.Capture; tests supply fakes.
type Capturer interface {
	Start(ctx context.Context) error
	Transcript() string
	ResetTranscript()
	PushTranscript(text string, final bool)
	ProcessFrame(samples []float64, at time.Time)
	Countdown() time.Duration
	ArmWatchdog()
	DisarmWatchdog()
	Pause()
	Resume()
	Stop()
}

// CaptureFactory builds one capture per voice question, wired to the
// controller's auto-submit path.
type CaptureFactory func(onAutoSubmit func()) Capturer

// Options carries the controller's injected collaborators.
type Options struct {
	Store         store.Store
	Oracle        oracle.Provider
	Engine        *sandbox.Engine
	Questions     *question.Source
	Synth         synthesis.Synthesizer
	Events        *events.Publisher
	Exclusive     integrity.ExclusiveMode
	NewCapture    CaptureFactory
	TestCaseCount int
	Logger        *zap.Logger
}

// Controller drives one session end to end. All mutation of the session
// record happens here; collaborators only observe or compute.
type Controller struct {
	opts   Options
	cfg    models.SessionConfig
	logger *zap.Logger

	monitor *integrity.Monitor

	mu        sync.Mutex
	machine   *Machine
	session   *models.InterviewSession
	questions []models.Question
	current   int
	paused    bool
	startedAt time.Time

	capture Capturer

	testCases   []models.TestCase
	execResults []models.ExecutionResult

	followUps   []string
	followUpIdx int
	reviewNotes []string
	reviewResp  *models.Response

	pending *models.Response
	scores  []int

	tickStop chan struct{}
	tickWG   sync.WaitGroup
	endOnce  sync.Once
}

func NewController(cfg models.SessionConfig, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Synth == nil {
		opts.Synth = synthesis.Noop{}
	}
	if opts.TestCaseCount < 1 {
		opts.TestCaseCount = 2
	}
	if opts.NewCapture == nil {
		opts.NewCapture = func(func()) Capturer { return nopCapture{} }
	}

	c := &Controller{
		opts:    opts,
		cfg:     cfg,
		logger:  opts.Logger,
		machine: NewMachine(),
	}
	c.monitor = integrity.NewMonitor(opts.Exclusive, c.onViolation, opts.Logger)
	return c
}

// Start loads the question list, persists the new session and presents the
// first question. The countdown timer begins here.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.machine.Stage() != StageLoading {
		c.mu.Unlock()
		return fmt.Errorf("session already started (stage %s)", c.machine.Stage())
	}

	questions := c.opts.Questions.Load(ctx, c.cfg)
	ids := make([]string, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}

	session := &models.InterviewSession{
		ID:               uuid.New().String(),
		Category:         c.cfg.Category,
		TargetRole:       c.cfg.TargetRole,
		TargetCompany:    c.cfg.TargetCompany,
		Domain:           c.cfg.Domain,
		DurationSec:      c.cfg.DurationSec,
		QuestionIDs:      ids,
		Stage:            string(StageReady),
		TimeRemainingSec: c.cfg.DurationSec,
	}
	if err := c.opts.Store.CreateSession(ctx, session); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to create session: %w", err)
	}

	c.session = session
	c.questions = questions
	_ = c.machine.Advance(StageReady)

	c.tickStop = make(chan struct{})
	c.tickWG.Add(1)
	go c.countdownLoop()
	c.mu.Unlock()

	if err := c.monitor.RequestExclusiveMode(); err != nil {
		c.logger.Warn("exclusive mode unavailable", zap.Error(err))
	}
	c.opts.Events.SessionStarted(ctx, session)

	return c.presentCurrent(ctx)
}

// Session returns a snapshot of the session record.
func (c *Controller) Session() models.InterviewSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.session
}

func (c *Controller) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.Stage()
}

func (c *Controller) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// CurrentQuestion returns the question currently being asked.
func (c *Controller) CurrentQuestion() (models.Question, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current >= len(c.questions) {
		return models.Question{}, false
	}
	return c.questions[c.current], true
}

// TestCases returns the generated cases for the current coding question.
func (c *Controller) TestCases() []models.TestCase {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.TestCase, len(c.testCases))
	copy(out, c.testCases)
	return out
}

// Results returns the latest execution results.
func (c *Controller) Results() []models.ExecutionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.ExecutionResult, len(c.execResults))
	copy(out, c.execResults)
	return out
}

// PendingFollowUp returns the follow-up question awaiting an answer.
func (c *Controller) PendingFollowUp() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.machine.Stage() != StageCodeReview || c.followUpIdx >= len(c.followUps) {
		return "", false
	}
	return c.followUps[c.followUpIdx], true
}

// FeedFrame forwards one audio frame to the current question's silence
// detector. Ignored outside the listening stage.
func (c *Controller) FeedFrame(samples []float64, at time.Time) {
	c.mu.Lock()
	capt := c.capture
	listening := c.machine.Stage() == StageListening
	c.mu.Unlock()
	if listening && capt != nil {
		capt.ProcessFrame(samples, at)
	}
}

// FeedTranscript forwards externally recognized speech to the current
// question's transcript. Ignored outside the listening stage.
func (c *Controller) FeedTranscript(text string, final bool) {
	c.mu.Lock()
	capt := c.capture
	listening := c.machine.Stage() == StageListening
	c.mu.Unlock()
	if listening && capt != nil {
		capt.PushTranscript(text, final)
	}
}

// Countdown reports the time left before auto-submit fires, zero outside
// listening.
func (c *Controller) Countdown() time.Duration {
	c.mu.Lock()
	capt := c.capture
	listening := c.machine.Stage() == StageListening
	c.mu.Unlock()
	if !listening || capt == nil {
		return 0
	}
	return capt.Countdown()
}

// Monitor exposes the integrity monitor so hosts can wire violation
// callbacks and full-screen control.
func (c *Controller) Monitor() *integrity.Monitor { return c.monitor }

// ReportViolation records a loss of exclusive attention. The monitor
// callback pauses the session and persists the violation.
func (c *Controller) ReportViolation(vType models.ViolationType, away time.Duration) {
	c.monitor.Report(vType, time.Now(), away)
}

// presentCurrent enters the question stage for the current index, then
// branches to listening or coding depending on the question kind.
func (c *Controller) presentCurrent(ctx context.Context) error {
	c.mu.Lock()
	if c.machine.Stage() == StageCompleted {
		c.mu.Unlock()
		return ErrSessionCompleted
	}
	q := c.questions[c.current]
	if err := c.advanceLocked(StageQuestion); err != nil {
		c.mu.Unlock()
		return err
	}
	c.startedAt = time.Now()
	c.mu.Unlock()

	go func() {
		if err := c.opts.Synth.Speak(q.Prompt, nil); err != nil {
			c.logger.Warn("voice synthesis failed", zap.Error(err))
		}
	}()

	if q.RequiresCoding {
		return c.enterCoding(ctx, q)
	}
	return c.enterListening(ctx)
}

func (c *Controller) enterCoding(ctx context.Context, q models.Question) error {
	cases, err := c.opts.Oracle.GenerateTestCases(ctx, q, c.opts.TestCaseCount)
	if err != nil {
		c.logger.Warn("test case generation failed, using defaults", zap.Error(err))
		cases = oracle.DefaultTestCases(c.opts.TestCaseCount)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.machine.Stage() == StageCompleted {
		return ErrSessionCompleted
	}
	c.testCases = cases
	c.execResults = nil
	return c.advanceLocked(StageCoding)
}

func (c *Controller) enterListening(ctx context.Context) error {
	capt := c.opts.NewCapture(c.autoSubmit)
	if err := capt.Start(ctx); err != nil {
		c.logger.Warn("speech capture failed to start, continuing without it", zap.Error(err))
	}
	capt.ResetTranscript()
	capt.ArmWatchdog()

	c.mu.Lock()
	if c.machine.Stage() == StageCompleted {
		c.mu.Unlock()
		capt.Stop()
		return ErrSessionCompleted
	}
	c.capture = capt
	err := c.advanceLocked(StageListening)
	paused := c.paused
	c.mu.Unlock()

	if paused {
		capt.Pause()
	}
	return err
}

// autoSubmit is the watchdog's firing path. It runs off the capture poll
// goroutine, so the submit happens asynchronously to avoid deadlocking on
// capture teardown.
func (c *Controller) autoSubmit() {
	go func() {
		if err := c.submitVoice(context.Background(), true); err != nil {
			c.logger.Warn("auto-submit failed", zap.Error(err))
		}
	}()
}

// SubmitAnswer is the manual submit for a voice question. It disarms the
// watchdog so auto-submit cannot also fire for this question.
func (c *Controller) SubmitAnswer(ctx context.Context) error {
	return c.submitVoice(ctx, false)
}

func (c *Controller) submitVoice(ctx context.Context, auto bool) error {
	c.mu.Lock()
	if c.machine.Stage() != StageListening {
		c.mu.Unlock()
		return fmt.Errorf("cannot submit in stage %s", c.machine.Stage())
	}
	if c.paused {
		// A fire that raced the pause re-arms, so auto-submit is not
		// lost for this question after resume.
		if auto && c.capture != nil {
			c.capture.ArmWatchdog()
		}
		c.mu.Unlock()
		return ErrSessionPaused
	}

	capt := c.capture
	q := c.questions[c.current]
	capt.DisarmWatchdog()

	transcript := strings.TrimSpace(capt.Transcript())
	if !auto && transcript == "" {
		capt.ArmWatchdog()
		c.mu.Unlock()
		return ErrEmptyAnswer
	}

	if err := c.advanceLocked(StageProcessing); err != nil {
		c.mu.Unlock()
		return err
	}
	c.capture = nil
	elapsed := int(time.Since(c.startedAt).Seconds())
	c.mu.Unlock()

	capt.Stop()

	eval, err := c.opts.Oracle.ScoreAnswer(ctx, q, transcript)
	if err != nil {
		c.logger.Warn("scoring failed, using neutral default", zap.Error(err))
		eval = oracle.DefaultEvaluation()
	}

	resp := &models.Response{
		ID:            uuid.New().String(),
		SessionID:     c.sessionID(),
		QuestionID:    q.ID,
		Order:         c.currentOrder(),
		Kind:          models.AnswerVoice,
		Content:       transcript,
		Feedback:      eval.Feedback,
		Score:         oracle.ClampScore(eval.Score),
		DurationSec:   elapsed,
		AutoSubmitted: auto,
	}
	return c.finishQuestion(ctx, resp)
}

// Skip ends the current question without scoring. A zero-score Response
// with wasSkipped set is saved immediately and the oracle is never called.
func (c *Controller) Skip(ctx context.Context) error {
	c.mu.Lock()
	stage := c.machine.Stage()
	if c.paused {
		c.mu.Unlock()
		return ErrSessionPaused
	}

	// A failed save leaves the session in processing; skipping there
	// converts the stuck response instead of losing the question.
	if stage == StageProcessing && c.pending != nil {
		c.pending.WasSkipped = true
		c.pending.Score = 0
		c.mu.Unlock()
		return c.persistPending(ctx)
	}

	switch stage {
	case StageQuestion, StageListening, StageCoding, StageCodeReview:
	default:
		c.mu.Unlock()
		return fmt.Errorf("cannot skip in stage %s", stage)
	}

	q := c.questions[c.current]
	capt := c.capture
	c.capture = nil
	if capt != nil {
		capt.DisarmWatchdog()
	}
	if err := c.advanceLocked(StageProcessing); err != nil {
		c.mu.Unlock()
		return err
	}
	elapsed := int(time.Since(c.startedAt).Seconds())
	c.reviewResp = nil
	c.reviewNotes = nil
	c.followUps = nil
	c.mu.Unlock()

	if capt != nil {
		capt.Stop()
	}

	kind := models.AnswerVoice
	if q.RequiresCoding {
		kind = models.AnswerCode
	}
	resp := &models.Response{
		ID:          uuid.New().String(),
		SessionID:   c.sessionID(),
		QuestionID:  q.ID,
		Order:       c.currentOrder(),
		Kind:        kind,
		DurationSec: elapsed,
		WasSkipped:  true,
	}
	return c.finishQuestion(ctx, resp)
}

// RunCode executes the candidate's code against the generated test cases
// and returns to coding with the results attached. Safe to call repeatedly.
func (c *Controller) RunCode(ctx context.Context, code, language string) (sandbox.Summary, error) {
	c.mu.Lock()
	if c.paused {
		c.mu.Unlock()
		return sandbox.Summary{}, ErrSessionPaused
	}
	if c.machine.Stage() != StageCoding {
		stage := c.machine.Stage()
		c.mu.Unlock()
		return sandbox.Summary{}, fmt.Errorf("cannot run code in stage %s", stage)
	}
	if err := c.advanceLocked(StageExecuting); err != nil {
		c.mu.Unlock()
		return sandbox.Summary{}, err
	}
	cases := make([]models.TestCase, len(c.testCases))
	copy(cases, c.testCases)
	c.mu.Unlock()

	// The run proceeds even if a pause lands while it is in flight; the
	// results are kept for when the session resumes.
	summary, err := c.opts.Engine.Execute(ctx, code, language, cases)

	c.mu.Lock()
	if c.machine.Stage() == StageExecuting {
		_ = c.advanceLocked(StageCoding)
	}
	if err == nil {
		c.execResults = summary.Results
	}
	c.mu.Unlock()

	return summary, err
}

// SubmitCode scores the submission and, when the oracle produces follow-up
// questions, enters code review before advancing. At least one execution
// must have happened.
func (c *Controller) SubmitCode(ctx context.Context, code, language string) error {
	c.mu.Lock()
	if c.paused {
		c.mu.Unlock()
		return ErrSessionPaused
	}
	if c.machine.Stage() != StageCoding {
		stage := c.machine.Stage()
		c.mu.Unlock()
		return fmt.Errorf("cannot submit code in stage %s", stage)
	}
	if len(c.execResults) == 0 {
		c.mu.Unlock()
		return ErrNoExecution
	}
	q := c.questions[c.current]
	elapsed := int(time.Since(c.startedAt).Seconds())
	c.mu.Unlock()

	eval, err := c.opts.Oracle.ScoreAnswer(ctx, q, code)
	if err != nil {
		c.logger.Warn("scoring failed, using neutral default", zap.Error(err))
		eval = oracle.DefaultEvaluation()
	}
	followUps, err := c.opts.Oracle.GenerateFollowUps(ctx, q, code, language)
	if err != nil {
		c.logger.Warn("follow-up generation failed, using defaults", zap.Error(err))
		followUps = oracle.DefaultFollowUps()
	}

	resp := &models.Response{
		ID:          uuid.New().String(),
		SessionID:   c.sessionID(),
		QuestionID:  q.ID,
		Order:       c.currentOrder(),
		Kind:        models.AnswerCode,
		Content:     code,
		Language:    language,
		Feedback:    eval.Feedback,
		Score:       oracle.ClampScore(eval.Score),
		DurationSec: elapsed,
	}

	c.mu.Lock()
	if c.machine.Stage() != StageCoding {
		// Completed (or skipped) while scoring was in flight.
		stage := c.machine.Stage()
		c.mu.Unlock()
		return fmt.Errorf("cannot submit code in stage %s", stage)
	}
	if len(followUps) > 0 {
		if err := c.advanceLocked(StageCodeReview); err != nil {
			c.mu.Unlock()
			return err
		}
		c.followUps = followUps
		c.followUpIdx = 0
		c.reviewNotes = nil
		c.reviewResp = resp
		first := followUps[0]
		c.mu.Unlock()

		go func() {
			if err := c.opts.Synth.Speak(first, nil); err != nil {
				c.logger.Warn("voice synthesis failed", zap.Error(err))
			}
		}()
		return nil
	}
	if err := c.advanceLocked(StageProcessing); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	return c.finishQuestion(ctx, resp)
}

// AnswerFollowUp records one code-review answer. After the last follow-up
// the code response is persisted with the review transcript appended.
func (c *Controller) AnswerFollowUp(ctx context.Context, answer string) error {
	c.mu.Lock()
	if c.paused {
		c.mu.Unlock()
		return ErrSessionPaused
	}
	if c.machine.Stage() != StageCodeReview {
		stage := c.machine.Stage()
		c.mu.Unlock()
		return fmt.Errorf("no follow-up pending in stage %s", stage)
	}
	if strings.TrimSpace(answer) == "" {
		c.mu.Unlock()
		return ErrEmptyAnswer
	}

	asked := c.followUps[c.followUpIdx]
	c.reviewNotes = append(c.reviewNotes, fmt.Sprintf("Q: %s\nA: %s", asked, strings.TrimSpace(answer)))
	c.followUpIdx++

	if c.followUpIdx < len(c.followUps) {
		next := c.followUps[c.followUpIdx]
		c.mu.Unlock()
		go func() {
			if err := c.opts.Synth.Speak(next, nil); err != nil {
				c.logger.Warn("voice synthesis failed", zap.Error(err))
			}
		}()
		return nil
	}

	resp := c.reviewResp
	resp.Feedback = strings.TrimSpace(resp.Feedback + "\n\nCode review:\n" + strings.Join(c.reviewNotes, "\n"))
	c.reviewResp = nil
	c.reviewNotes = nil
	c.followUps = nil
	if err := c.advanceLocked(StageProcessing); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	return c.finishQuestion(ctx, resp)
}

// RetrySave retries persisting a response whose save previously failed.
// The stage stays in processing until the save succeeds or the question is
// skipped.
func (c *Controller) RetrySave(ctx context.Context) error {
	return c.persistPending(ctx)
}

func (c *Controller) finishQuestion(ctx context.Context, resp *models.Response) error {
	c.mu.Lock()
	c.pending = resp
	c.mu.Unlock()
	return c.persistPending(ctx)
}

func (c *Controller) persistPending(ctx context.Context) error {
	c.mu.Lock()
	resp := c.pending
	c.mu.Unlock()
	if resp == nil {
		return nil
	}

	if err := c.opts.Store.SaveResponse(ctx, resp); err != nil {
		return fmt.Errorf("failed to save response: %w", err)
	}

	c.mu.Lock()
	c.pending = nil
	if resp.WasSkipped {
		c.session.QuestionsSkipped++
	} else {
		c.session.QuestionsAnswered++
		c.scores = append(c.scores, resp.Score)
	}
	answered := c.session.QuestionsAnswered
	skipped := c.session.QuestionsSkipped
	id := c.session.ID
	c.mu.Unlock()

	if err := c.opts.Store.UpdateSessionProgress(ctx, id, answered, skipped); err != nil {
		c.logger.Warn("failed to update session progress", zap.Error(err))
	}
	return c.advance(ctx)
}

func (c *Controller) advance(ctx context.Context) error {
	c.mu.Lock()
	if c.machine.Stage() == StageCompleted {
		c.mu.Unlock()
		return nil
	}
	c.current++
	c.testCases = nil
	c.execResults = nil
	done := c.current >= len(c.questions)
	c.mu.Unlock()

	if done {
		return c.complete(ctx, "all questions answered")
	}
	return c.presentCurrent(ctx)
}

// onViolation is the monitor's callback: persist the violation, publish it
// and pause the whole session. In-flight oracle and sandbox calls are not
// cancelled; their results are kept for after the resume.
func (c *Controller) onViolation(v models.Violation) {
	c.mu.Lock()
	if c.machine.Stage() == StageCompleted {
		c.mu.Unlock()
		return
	}
	v.SessionID = c.session.ID
	c.session.ViolationCount++
	c.session.TimeAwaySec += v.DurationSec
	c.paused = true
	capt := c.capture
	c.mu.Unlock()

	if capt != nil {
		capt.Pause()
	}
	c.opts.Synth.Pause()

	ctx := context.Background()
	if err := c.opts.Store.SaveViolation(ctx, &v); err != nil {
		c.logger.Warn("failed to save violation", zap.Error(err))
	}
	c.opts.Events.ViolationDetected(ctx, &v)
}

// Resume re-enters exclusive mode and unfreezes the countdown and silence
// polling at exactly the stage the violation interrupted.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	if c.machine.Stage() == StageCompleted {
		c.mu.Unlock()
		return ErrSessionCompleted
	}
	if !c.paused {
		c.mu.Unlock()
		return nil
	}
	c.paused = false
	capt := c.capture
	c.mu.Unlock()

	if err := c.monitor.RequestExclusiveMode(); err != nil {
		c.logger.Warn("exclusive mode unavailable on resume", zap.Error(err))
	}
	if capt != nil {
		capt.Resume()
	}
	c.opts.Synth.Resume()
	return nil
}

// End forces completion, the same path as countdown exhaustion. Idempotent.
func (c *Controller) End(ctx context.Context) error {
	return c.complete(ctx, "ended")
}

func (c *Controller) complete(ctx context.Context, reason string) error {
	var persistErr error
	c.endOnce.Do(func() {
		c.mu.Lock()
		if c.session == nil {
			_ = c.machine.Advance(StageCompleted)
			c.mu.Unlock()
			return
		}
		if c.tickStop != nil {
			close(c.tickStop)
		}
		capt := c.capture
		c.capture = nil
		_ = c.machine.Advance(StageCompleted)
		c.session.Stage = string(StageCompleted)
		c.paused = false
		scores := c.scores
		elapsed := c.session.DurationSec - c.session.TimeRemainingSec
		c.mu.Unlock()

		if capt != nil {
			capt.DisarmWatchdog()
			capt.Stop()
		}
		c.opts.Synth.Stop()
		if err := c.monitor.ExitExclusiveMode(); err != nil {
			c.logger.Warn("failed to exit exclusive mode", zap.Error(err))
		}

		// Skipped responses are excluded from the denominator, not
		// zero-weighted.
		overall := 0
		if len(scores) > 0 {
			sum := 0
			for _, s := range scores {
				sum += s
			}
			overall = int(math.Round(float64(sum) / float64(len(scores))))
		}
		metrics := c.monitor.Metrics()

		c.mu.Lock()
		now := time.Now()
		c.session.Completed = true
		c.session.CompletedAt = &now
		c.session.OverallScore = overall
		c.session.ViolationCount = metrics.ViolationCount
		c.session.TimeAwaySec = metrics.TimeAwaySec
		c.session.IntegrityScore = metrics.IntegrityScore
		snapshot := *c.session
		c.mu.Unlock()

		if err := c.opts.Store.CompleteSession(ctx, snapshot.ID, elapsed, overall, metrics); err != nil {
			persistErr = fmt.Errorf("failed to persist completion: %w", err)
		}
		c.opts.Events.SessionEnded(ctx, &snapshot)

		c.logger.Info("session completed",
			zap.String("sessionId", snapshot.ID),
			zap.String("reason", reason),
			zap.Int("overallScore", overall),
			zap.Int("integrityScore", metrics.IntegrityScore))
	})
	return persistErr
}

func (c *Controller) countdownLoop() {
	defer c.tickWG.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.tickStop:
			return
		case <-ticker.C:
			c.tick(context.Background())
		}
	}
}

// tick consumes one second of budget. The countdown is frozen while paused
// and in stages that do not consume time; exhaustion forces the terminal
// completion path.
func (c *Controller) tick(ctx context.Context) {
	c.mu.Lock()
	stage := c.machine.Stage()
	if c.paused || !CountsDown(stage) {
		c.mu.Unlock()
		return
	}
	c.session.TimeRemainingSec--
	expired := c.session.TimeRemainingSec <= 0
	c.mu.Unlock()

	if expired {
		if err := c.complete(ctx, "time expired"); err != nil {
			c.logger.Warn("forced completion failed to persist", zap.Error(err))
		}
	}
}

// advanceLocked moves the machine and mirrors the stage onto the session
// record. Callers hold c.mu.
func (c *Controller) advanceLocked(to Stage) error {
	if err := c.machine.Advance(to); err != nil {
		return err
	}
	if c.session != nil {
		c.session.Stage = string(to)
	}
	return nil
}

func (c *Controller) sessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ID
}

func (c *Controller) currentOrder() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// nopCapture is used when the host supplies no capture capability; the
// transcript is always empty and the watchdog never fires.
type nopCapture struct{}

func (nopCapture) Start(context.Context) error       { return nil }
func (nopCapture) Transcript() string                { return "" }
func (nopCapture) ResetTranscript()                  {}
func (nopCapture) PushTranscript(string, bool)       {}
func (nopCapture) ProcessFrame([]float64, time.Time) {}
func (nopCapture) Countdown() time.Duration          { return 0 }
func (nopCapture) ArmWatchdog()                      {}
func (nopCapture) DisarmWatchdog()                   {}
func (nopCapture) Pause()                            {}
func (nopCapture) Resume()                           {}
func (nopCapture) Stop()                             {}
