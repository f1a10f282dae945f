package capture

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"interviewlab/internal/config"
	"interviewlab/internal/retry"
)

// ErrCaptureUnavailable is surfaced once the transcriber reattach budget is
// exhausted. The session treats "no transcript" as an empty answer, never as
// a fatal condition.
var ErrCaptureUnavailable = errors.New("speech capture unavailable")

// Transcriber is the speech-recognition capability contract. Browser and
// headless hosts supply their own implementations.
type Transcriber interface {
	IsSupported() bool
	Start(onUpdate func(string), onFinal func(string), onError func(error)) error
	Stop()
}

// Recorder is a secondary, independent consumer of the same media stream.
// The stream is read-only to every consumer.
type Recorder interface {
	Start() error
	Stop() error
}

// Capture owns one question's worth of speech recognition, recording and
// silence detection, and drives the auto-submit watchdog from an internal
// poll loop.
type Capture struct {
	cfg    config.Detection
	logger *zap.Logger

	detector    *Detector
	watchdog    *Watchdog
	transcriber Transcriber
	recorder    Recorder

	maxReattach int
	clock       func() time.Time

	mu          sync.Mutex
	interim     string
	finals      []string
	unavailable bool
	paused      bool
	pausedAt    time.Time
	recording   bool

	cancel   context.CancelFunc
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Options carries the injected collaborators. Nil Recorder is allowed.
type Options struct {
	Detection    config.Detection
	Transcriber  Transcriber
	Recorder     Recorder
	MaxReattach  int
	OnAutoSubmit func()
	Clock        func() time.Time
	Logger       *zap.Logger
}

func New(opts Options) *Capture {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxReattach < 1 {
		opts.MaxReattach = 5
	}

	return &Capture{
		cfg:         opts.Detection,
		logger:      opts.Logger,
		detector:    NewDetector(opts.Detection),
		watchdog:    NewWatchdog(opts.Detection.SubmitThreshold, opts.OnAutoSubmit),
		transcriber: opts.Transcriber,
		recorder:    opts.Recorder,
		maxReattach: opts.MaxReattach,
		clock:       opts.Clock,
	}
}

// Start begins recognition, recording and the silence poll loop. A failed
// recorder degrades with a single warning; a missing transcriber marks the
// capture unavailable but does not fail the session.
func (c *Capture) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.detector.Start(c.clock())

	if c.transcriber == nil || !c.transcriber.IsSupported() {
		c.setUnavailable()
		c.logger.Warn("transcriber not supported, continuing without transcript")
	} else if err := c.transcriber.Start(c.onUpdate, c.onFinal, c.onTranscriberError(ctx)); err != nil {
		c.logger.Warn("transcriber failed to start", zap.Error(err))
		c.reattach(ctx)
	}

	if c.recorder != nil {
		if err := c.recorder.Start(); err != nil {
			c.logger.Warn("recording unavailable, continuing without it", zap.Error(err))
		} else {
			c.mu.Lock()
			c.recording = true
			c.mu.Unlock()
		}
	}

	c.wg.Add(1)
	go c.pollLoop(ctx)

	return nil
}

// ProcessFrame feeds one audio frame to the silence detector.
func (c *Capture) ProcessFrame(samples []float64, at time.Time) {
	c.mu.Lock()
	paused := c.paused
	c.mu.Unlock()
	if paused {
		return
	}
	c.detector.ProcessFrame(samples, at)
}

// PushTranscript feeds recognition text produced outside the transcriber,
// such as a browser client streaming results over a socket.
func (c *Capture) PushTranscript(text string, final bool) {
	if final {
		c.onFinal(text)
		return
	}
	c.onUpdate(text)
}

// ArmWatchdog re-arms auto-submission for a new question.
func (c *Capture) ArmWatchdog() { c.watchdog.Arm() }

// DisarmWatchdog prevents auto-submission, used when a manual submit or
// skip wins the race.
func (c *Capture) DisarmWatchdog() { c.watchdog.Disarm() }

// Pause freezes silence polling and the silence clock without tearing
// anything down.
func (c *Capture) Pause() {
	c.mu.Lock()
	if !c.paused {
		c.paused = true
		c.pausedAt = c.clock()
	}
	c.mu.Unlock()
}

// Resume restarts silence polling in the exact state it was interrupted.
// Time spent paused is shifted out of the detector, so the auto-submit
// countdown continues from its frozen value.
func (c *Capture) Resume() {
	c.mu.Lock()
	if c.paused {
		c.paused = false
		c.detector.Shift(c.clock().Sub(c.pausedAt))
	}
	c.mu.Unlock()
}

// Transcript returns the accumulated transcript, finals first.
func (c *Capture) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	parts := make([]string, 0, len(c.finals)+1)
	parts = append(parts, c.finals...)
	if c.interim != "" {
		parts = append(parts, c.interim)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// ResetTranscript clears accumulated text for the next question.
func (c *Capture) ResetTranscript() {
	c.mu.Lock()
	c.interim = ""
	c.finals = nil
	c.mu.Unlock()
}

// SilenceFor exposes the detector's silence counter. While paused it reports
// the value frozen at the pause instant.
func (c *Capture) SilenceFor() time.Duration {
	c.mu.Lock()
	now := c.clock()
	if c.paused {
		now = c.pausedAt
	}
	c.mu.Unlock()
	return c.detector.SilenceFor(now)
}

// Countdown reports the time left until auto-submit.
func (c *Capture) Countdown() time.Duration {
	return c.watchdog.Countdown(c.SilenceFor())
}

// Unavailable reports whether recognition is terminally down.
func (c *Capture) Unavailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unavailable
}

// Recording reports whether the recording sink is active.
func (c *Capture) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// Stop tears down recognition, recording and the poll loop. Safe to call
// more than once.
func (c *Capture) Stop() {
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		if c.transcriber != nil {
			c.transcriber.Stop()
		}
		c.mu.Lock()
		rec := c.recording
		c.recording = false
		c.mu.Unlock()
		if rec && c.recorder != nil {
			if err := c.recorder.Stop(); err != nil {
				c.logger.Warn("recorder stop failed", zap.Error(err))
			}
		}
		c.wg.Wait()
	})
}

func (c *Capture) pollLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			paused := c.paused
			c.mu.Unlock()
			if paused {
				continue
			}
			c.watchdog.Observe(c.detector.SilenceFor(c.clock()))
		}
	}
}

func (c *Capture) onUpdate(text string) {
	c.mu.Lock()
	c.interim = text
	c.mu.Unlock()
}

func (c *Capture) onFinal(text string) {
	c.mu.Lock()
	if text != "" {
		c.finals = append(c.finals, text)
	}
	c.interim = ""
	c.mu.Unlock()
}

func (c *Capture) onTranscriberError(ctx context.Context) func(error) {
	return func(err error) {
		c.logger.Warn("transcriber error", zap.Error(err))
		go c.reattach(ctx)
	}
}

// reattach retries recognition with exponential backoff, up to the bound.
// Exhausting the bound marks the capture unavailable without crashing the
// session.
func (c *Capture) reattach(ctx context.Context) {
	err := retry.Do(ctx, c.maxReattach, retry.Exponential(200*time.Millisecond), func(ctx context.Context) error {
		c.transcriber.Stop()
		return c.transcriber.Start(c.onUpdate, c.onFinal, func(err error) {
			c.logger.Warn("transcriber error after reattach", zap.Error(err))
		})
	})
	if err != nil {
		c.setUnavailable()
		c.logger.Warn("transcriber reattach budget exhausted", zap.Error(err))
	}
}

func (c *Capture) setUnavailable() {
	c.mu.Lock()
	c.unavailable = true
	c.mu.Unlock()
}
