package integrity

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"interviewlab/internal/models"
)

// Integrity score deductions. Flat per violation, plus a smaller deduction
// per 10 seconds of accumulated time away.
const (
	tabSwitchPenalty      = 5
	windowBlurPenalty     = 5
	fullscreenExitPenalty = 10
	timeAwayPenaltyPer10s = 2
)

// ExclusiveMode is the full-screen capability contract supplied by the host.
type ExclusiveMode interface {
	Request() error
	Exit() error
}

// NoopExclusiveMode is used by headless hosts.
type NoopExclusiveMode struct{}

func (NoopExclusiveMode) Request() error { return nil }
func (NoopExclusiveMode) Exit() error    { return nil }

// Monitor keeps the append-only violation log and cumulative time-away for
// one session, and notifies the controller when attention is lost.
type Monitor struct {
	mu         sync.Mutex
	logger     *zap.Logger
	exclusive  ExclusiveMode
	violations []models.Violation
	timeAway   time.Duration
	onViolate  func(models.Violation)
}

func NewMonitor(exclusive ExclusiveMode, onViolate func(models.Violation), logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if exclusive == nil {
		exclusive = NoopExclusiveMode{}
	}
	return &Monitor{
		logger:    logger,
		exclusive: exclusive,
		onViolate: onViolate,
	}
}

// RequestExclusiveMode asks the host to enter full-screen.
func (m *Monitor) RequestExclusiveMode() error { return m.exclusive.Request() }

// ExitExclusiveMode asks the host to leave full-screen.
func (m *Monitor) ExitExclusiveMode() error { return m.exclusive.Exit() }

// Report appends a violation and notifies the controller. Violations are
// never mutated or removed once recorded.
func (m *Monitor) Report(vType models.ViolationType, at time.Time, away time.Duration) models.Violation {
	v := models.Violation{
		Type:        vType,
		OccurredAt:  at,
		DurationSec: away.Seconds(),
	}

	m.mu.Lock()
	m.violations = append(m.violations, v)
	m.timeAway += away
	notify := m.onViolate
	m.mu.Unlock()

	m.logger.Warn("integrity violation",
		zap.String("type", string(vType)),
		zap.Duration("away", away))

	if notify != nil {
		notify(v)
	}
	return v
}

// Violations returns a copy of the violation log.
func (m *Monitor) Violations() []models.Violation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Violation, len(m.violations))
	copy(out, m.violations)
	return out
}

// Metrics summarizes the session's integrity state, including the derived
// score.
func (m *Monitor) Metrics() models.IntegrityMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := models.IntegrityMetrics{
		ViolationCount: len(m.violations),
		TimeAwaySec:    m.timeAway.Seconds(),
	}
	for _, v := range m.violations {
		switch v.Type {
		case models.ViolationTabSwitch:
			metrics.TabSwitches++
		case models.ViolationWindowBlur:
			metrics.WindowBlurs++
		case models.ViolationFullscreenExit:
			metrics.FullscreenExits++
		}
	}
	metrics.IntegrityScore = Score(metrics)
	return metrics
}

// Score derives the 0-100 integrity score from violation counts and total
// time away.
func Score(m models.IntegrityMetrics) int {
	score := 100
	score -= m.TabSwitches * tabSwitchPenalty
	score -= m.WindowBlurs * windowBlurPenalty
	score -= m.FullscreenExits * fullscreenExitPenalty
	score -= int(m.TimeAwaySec/10) * timeAwayPenaltyPer10s

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
