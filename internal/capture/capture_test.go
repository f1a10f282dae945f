package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewlab/internal/config"
)

// scriptedTranscriber is a controllable capability double.
type scriptedTranscriber struct {
	mu        sync.Mutex
	supported bool
	failStart bool
	starts    int
	onFinal   func(string)
	onError   func(error)
}

func (s *scriptedTranscriber) IsSupported() bool { return s.supported }

func (s *scriptedTranscriber) Start(onUpdate func(string), onFinal func(string), onError func(error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	if s.failStart {
		return errors.New("recognition service unreachable")
	}
	s.onFinal = onFinal
	s.onError = onError
	return nil
}

func (s *scriptedTranscriber) Stop() {}

func (s *scriptedTranscriber) emitFinal(text string) {
	s.mu.Lock()
	fn := s.onFinal
	s.mu.Unlock()
	if fn != nil {
		fn(text)
	}
}

type countingRecorder struct {
	mu       sync.Mutex
	started  int
	stopped  int
	failNext bool
}

func (r *countingRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext {
		return errors.New("permission denied")
	}
	r.started++
	return nil
}

func (r *countingRecorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped++
	return nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestCapture(t *testing.T, tr Transcriber, rec Recorder, onAuto func()) *Capture {
	t.Helper()
	det := testDetection()
	det.PollInterval = 5 * time.Millisecond
	c := New(Options{
		Detection:    det,
		Transcriber:  tr,
		Recorder:     rec,
		MaxReattach:  2,
		OnAutoSubmit: onAuto,
	})
	t.Cleanup(c.Stop)
	return c
}

func TestCapture_AccumulatesTranscript(t *testing.T) {
	tr := &scriptedTranscriber{supported: true}
	c := newTestCapture(t, tr, nil, nil)
	require.NoError(t, c.Start(context.Background()))

	tr.emitFinal("tell me about")
	tr.emitFinal("your last project")
	c.onUpdate("and the")

	assert.Equal(t, "tell me about your last project and the", c.Transcript())

	c.ResetTranscript()
	assert.Equal(t, "", c.Transcript())
}

func TestCapture_UnsupportedTranscriberDegrades(t *testing.T) {
	tr := &scriptedTranscriber{supported: false}
	c := newTestCapture(t, tr, nil, nil)
	require.NoError(t, c.Start(context.Background()))

	assert.True(t, c.Unavailable())
	assert.Equal(t, "", c.Transcript())
}

func TestCapture_ReattachBudgetExhausted(t *testing.T) {
	tr := &scriptedTranscriber{supported: true, failStart: true}
	c := newTestCapture(t, tr, nil, nil)
	require.NoError(t, c.Start(context.Background()))

	assert.Eventually(t, c.Unavailable, time.Second, 5*time.Millisecond)

	tr.mu.Lock()
	starts := tr.starts
	tr.mu.Unlock()
	// Initial attempt plus the bounded reattach budget.
	assert.Equal(t, 3, starts)
}

func TestCapture_RecorderFailureIsNonFatal(t *testing.T) {
	tr := &scriptedTranscriber{supported: true}
	rec := &countingRecorder{failNext: true}
	c := newTestCapture(t, tr, rec, nil)

	require.NoError(t, c.Start(context.Background()))
	assert.False(t, c.Recording())
	assert.False(t, c.Unavailable())
}

func TestCapture_WatchdogAutoSubmitOnce(t *testing.T) {
	var mu sync.Mutex
	fired := 0
	tr := &scriptedTranscriber{supported: true}
	c := newTestCapture(t, tr, nil, func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	clk := &fakeClock{t: time.Unix(0, 0)}
	c.clock = clk.Now

	require.NoError(t, c.Start(context.Background()))

	// Calibrate, then leave the line silent past the submit threshold.
	for i := 0; i < 11; i++ {
		c.ProcessFrame(frame(0.005), clk.Now())
		clk.Advance(100 * time.Millisecond)
	}
	c.ArmWatchdog()
	clk.Advance(6 * time.Second)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fired == 1
	}, time.Second, 5*time.Millisecond)

	// Hold silence a while longer: the watchdog must not re-fire.
	clk.Advance(10 * time.Second)
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, fired)
	mu.Unlock()
}

func TestCapture_PauseFreezesWatchdog(t *testing.T) {
	var mu sync.Mutex
	fired := 0
	tr := &scriptedTranscriber{supported: true}
	c := newTestCapture(t, tr, nil, func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	clk := &fakeClock{t: time.Unix(0, 0)}
	c.clock = clk.Now

	require.NoError(t, c.Start(context.Background()))
	for i := 0; i < 11; i++ {
		c.ProcessFrame(frame(0.005), clk.Now())
		clk.Advance(100 * time.Millisecond)
	}
	c.ArmWatchdog()
	clk.Advance(time.Second)
	before := c.Countdown()
	require.Greater(t, before, 3*time.Second)

	c.Pause()
	clk.Advance(time.Minute)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, 0, fired)
	mu.Unlock()
	assert.Equal(t, before, c.Countdown())

	// The countdown continues from its frozen value, so resuming after a
	// long pause must not fire on the first poll tick.
	c.Resume()
	assert.InDelta(t, before.Seconds(), c.Countdown().Seconds(), 0.5)
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 0, fired)
	mu.Unlock()

	// Silence accrued after resume still drives auto-submit.
	clk.Advance(6 * time.Second)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fired == 1
	}, time.Second, 5*time.Millisecond)
}

func TestCapture_StopIsIdempotent(t *testing.T) {
	tr := &scriptedTranscriber{supported: true}
	rec := &countingRecorder{}
	c := newTestCapture(t, tr, rec, nil)
	require.NoError(t, c.Start(context.Background()))

	c.Stop()
	c.Stop()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.stopped)
}

var _ Transcriber = (*FileTranscriber)(nil)
var _ Recorder = NoopRecorder{}

func TestConfigDetectionDefaultsUsable(t *testing.T) {
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	d := NewDetector(cfg.Detection)
	assert.NotNil(t, d)
}
