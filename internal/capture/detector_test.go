package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"interviewlab/internal/config"
)

func testDetection() config.Detection {
	return config.Detection{
		CalibrationWindow: time.Second,
		FloorMultiplier:   2.8,
		AbsoluteFloor:     0.035,
		Hangover:          300 * time.Millisecond,
		MinSpeechDuration: 250 * time.Millisecond,
		PollInterval:      100 * time.Millisecond,
		SubmitThreshold:   5 * time.Second,
	}
}

func frame(amplitude float64) []float64 {
	f := make([]float64, 160)
	for i := range f {
		f[i] = amplitude
	}
	return f
}

// feedQuiet runs the full calibration window with near-silent frames and
// returns the instant just past it.
func feedQuiet(d *Detector, start time.Time) time.Time {
	d.Start(start)
	now := start
	for i := 0; i < 11; i++ {
		d.ProcessFrame(frame(0.005), now)
		now = now.Add(100 * time.Millisecond)
	}
	return now
}

func TestDetector_CalibratesNoiseFloor(t *testing.T) {
	d := NewDetector(testDetection())
	start := time.Unix(0, 0)

	feedQuiet(d, start)

	assert.InDelta(t, 0.005, d.Floor(), 0.0005)
	assert.False(t, d.Speaking())
}

func TestDetector_SilenceGrowsMonotonically(t *testing.T) {
	d := NewDetector(testDetection())
	start := time.Unix(0, 0)
	now := feedQuiet(d, start)

	s1 := d.SilenceFor(now.Add(time.Second))
	s2 := d.SilenceFor(now.Add(3 * time.Second))
	assert.Greater(t, s2, s1)
}

func TestDetector_ShiftExcludesSuspendedTime(t *testing.T) {
	d := NewDetector(testDetection())
	start := time.Unix(0, 0)
	now := feedQuiet(d, start)

	now = now.Add(time.Second)
	before := d.SilenceFor(now)

	// A minute of suspension shifted out leaves the counter unchanged.
	d.Shift(time.Minute)
	assert.Equal(t, before, d.SilenceFor(now.Add(time.Minute)))
}

func TestDetector_SpeechOnsetResetsSilence(t *testing.T) {
	d := NewDetector(testDetection())
	start := time.Unix(0, 0)
	now := feedQuiet(d, start)

	// Hold silence for a while, then speak long enough to clear the
	// min-speech filter.
	now = now.Add(2 * time.Second)
	for i := 0; i < 4; i++ {
		d.ProcessFrame(frame(0.2), now)
		now = now.Add(100 * time.Millisecond)
	}

	assert.True(t, d.Speaking())
	assert.Equal(t, 1, d.Onsets())
	assert.Equal(t, time.Duration(0), d.SilenceFor(now))
}

func TestDetector_TransientBlipIsNotSpeech(t *testing.T) {
	d := NewDetector(testDetection())
	start := time.Unix(0, 0)
	now := feedQuiet(d, start)

	// A single 100ms loud frame is below the 250ms min-speech filter.
	d.ProcessFrame(frame(0.5), now)
	now = now.Add(100 * time.Millisecond)
	d.ProcessFrame(frame(0.005), now)

	assert.False(t, d.Speaking())
	assert.Equal(t, 0, d.Onsets())
}

func TestDetector_HangoverSuppressesFlapping(t *testing.T) {
	d := NewDetector(testDetection())
	start := time.Unix(0, 0)
	now := feedQuiet(d, start)

	for i := 0; i < 4; i++ {
		d.ProcessFrame(frame(0.2), now)
		now = now.Add(100 * time.Millisecond)
	}
	assert.True(t, d.Speaking())

	// A 200ms quiet gap since the last speech frame is inside the 300ms
	// hangover.
	d.ProcessFrame(frame(0.005), now.Add(100*time.Millisecond))
	assert.True(t, d.Speaking())

	// Past the hangover the classification flips to silence.
	d.ProcessFrame(frame(0.005), now.Add(300*time.Millisecond))
	assert.False(t, d.Speaking())
}

func TestDetector_AbsoluteFloorAppliesInQuietRooms(t *testing.T) {
	d := NewDetector(testDetection())
	start := time.Unix(0, 0)
	d.Start(start)
	now := start
	// Calibrate in a nearly silent room: floor*multiplier would be tiny.
	for i := 0; i < 11; i++ {
		d.ProcessFrame(frame(0.001), now)
		now = now.Add(100 * time.Millisecond)
	}

	// 0.02 exceeds floor*multiplier but not the 0.035 absolute floor.
	for i := 0; i < 4; i++ {
		d.ProcessFrame(frame(0.02), now)
		now = now.Add(100 * time.Millisecond)
	}
	assert.False(t, d.Speaking())
}

func TestDetector_ZeroSilenceBeforeCalibration(t *testing.T) {
	d := NewDetector(testDetection())
	start := time.Unix(0, 0)
	d.Start(start)
	d.ProcessFrame(frame(0.005), start)

	assert.Equal(t, time.Duration(0), d.SilenceFor(start.Add(10*time.Second)))
}

func TestPCMFrame(t *testing.T) {
	out := PCMFrame([]int16{0, 16384, -32768})
	assert.InDelta(t, 0, out[0], 1e-9)
	assert.InDelta(t, 0.5, out[1], 1e-9)
	assert.InDelta(t, -1.0, out[2], 1e-9)
}
