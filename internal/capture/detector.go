package capture

import (
	"math"
	"sync"
	"time"

	"interviewlab/internal/config"
)

// Detector turns a stream of audio frames into a continuously updated
// "seconds of uninterrupted silence" value.
//
// On start it measures the local noise floor over a short calibration
// window. After that, a frame counts as speech when its RMS amplitude
// exceeds max(calibratedFloor * multiplier, absoluteFloor). A hangover
// interval suppresses flapping at the speech/silence boundary and a
// minimum-speech-duration filter rejects transient noise blips. The silence
// counter resets on every confirmed speech onset and otherwise grows
// monotonically.
//
// Timestamps are supplied by the caller, so the detector is deterministic
// under test.
type Detector struct {
	mu  sync.Mutex
	cfg config.Detection

	started    bool
	calibUntil time.Time
	calibSum   float64
	calibCount int
	floor      float64
	calibrated bool

	speaking       bool
	candidateSince time.Time
	lastSpeechAt   time.Time
	silenceSince   time.Time

	onsets int
}

func NewDetector(cfg config.Detection) *Detector {
	return &Detector{cfg: cfg}
}

// Start begins the calibration window. Must be called before ProcessFrame.
func (d *Detector) Start(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.started = true
	d.calibUntil = now.Add(d.cfg.CalibrationWindow)
	d.calibSum = 0
	d.calibCount = 0
	d.calibrated = false
	d.speaking = false
	d.candidateSince = time.Time{}
	d.lastSpeechAt = time.Time{}
	d.silenceSince = time.Time{}
	d.onsets = 0
}

// ProcessFrame classifies one sampling frame taken at the given instant.
func (d *Detector) ProcessFrame(samples []float64, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return
	}

	amp := rms(samples)

	if !d.calibrated {
		if now.Before(d.calibUntil) {
			d.calibSum += amp
			d.calibCount++
			return
		}
		if d.calibCount > 0 {
			d.floor = d.calibSum / float64(d.calibCount)
		}
		d.calibrated = true
		d.silenceSince = now
	}

	if amp > d.threshold() {
		if d.speaking {
			d.lastSpeechAt = now
			return
		}
		if d.candidateSince.IsZero() {
			d.candidateSince = now
		}
		if now.Sub(d.candidateSince) >= d.cfg.MinSpeechDuration {
			// Confirmed onset: silence counter resets here.
			d.speaking = true
			d.lastSpeechAt = now
			d.candidateSince = time.Time{}
			d.onsets++
		}
		return
	}

	d.candidateSince = time.Time{}
	if d.speaking && now.Sub(d.lastSpeechAt) >= d.cfg.Hangover {
		d.speaking = false
		d.silenceSince = now
	}
}

// SilenceFor reports how long the signal has been continuously silent.
// It is zero while calibrating and while speech (or its hangover) is active.
func (d *Detector) SilenceFor(now time.Time) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.calibrated || d.speaking || d.silenceSince.IsZero() {
		return 0
	}
	s := now.Sub(d.silenceSince)
	if s < 0 {
		return 0
	}
	return s
}

// Shift moves every internal timestamp forward by delta. Used on resume so
// wall-clock time spent paused counts toward neither silence nor
// calibration.
func (d *Detector) Shift(delta time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if delta <= 0 {
		return
	}
	if !d.calibUntil.IsZero() {
		d.calibUntil = d.calibUntil.Add(delta)
	}
	if !d.candidateSince.IsZero() {
		d.candidateSince = d.candidateSince.Add(delta)
	}
	if !d.lastSpeechAt.IsZero() {
		d.lastSpeechAt = d.lastSpeechAt.Add(delta)
	}
	if !d.silenceSince.IsZero() {
		d.silenceSince = d.silenceSince.Add(delta)
	}
}

// Speaking reports the current confirmed classification.
func (d *Detector) Speaking() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.speaking
}

// Onsets reports how many confirmed speech onsets were observed.
func (d *Detector) Onsets() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.onsets
}

// Floor reports the calibrated noise floor.
func (d *Detector) Floor() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.floor
}

func (d *Detector) threshold() float64 {
	t := d.floor * d.cfg.FloorMultiplier
	if t < d.cfg.AbsoluteFloor {
		t = d.cfg.AbsoluteFloor
	}
	return t
}

func rms(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}
