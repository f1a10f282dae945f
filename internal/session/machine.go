// Package session drives one proctored interview: the stage state machine,
// the countdown budget, speech capture and auto-submit, code execution,
// scoring and integrity pauses.
package session

import (
	"fmt"
)

// Stage is the controller's position in the question lifecycle.
type Stage string

const (
	StageLoading    Stage = "loading"
	StageReady      Stage = "ready"
	StageQuestion   Stage = "question"
	StageListening  Stage = "listening"
	StageCoding     Stage = "coding"
	StageExecuting  Stage = "executing"
	StageCodeReview Stage = "code_review"
	StageProcessing Stage = "processing"
	StageCompleted  Stage = "completed"
)

// transitions is the legal stage graph. Completion is reachable from every
// stage because timeout and "end now" can fire at any moment. Pausing is an
// orthogonal flag on the controller, never a stage.
var transitions = map[Stage][]Stage{
	StageLoading:    {StageReady, StageCompleted},
	StageReady:      {StageQuestion, StageCompleted},
	StageQuestion:   {StageListening, StageCoding, StageProcessing, StageCompleted},
	StageListening:  {StageProcessing, StageCompleted},
	StageCoding:     {StageExecuting, StageCodeReview, StageProcessing, StageCompleted},
	StageExecuting:  {StageCoding, StageCompleted},
	StageCodeReview: {StageProcessing, StageCompleted},
	StageProcessing: {StageQuestion, StageCompleted},
	StageCompleted:  {},
}

// Machine is the pure stage state machine, unit-testable with no
// collaborators.
type Machine struct {
	stage Stage
}

func NewMachine() *Machine {
	return &Machine{stage: StageLoading}
}

func (m *Machine) Stage() Stage { return m.stage }

// Advance moves to the target stage, or fails without changing state when
// the transition is not in the stage graph.
func (m *Machine) Advance(to Stage) error {
	for _, allowed := range transitions[m.stage] {
		if allowed == to {
			m.stage = to
			return nil
		}
	}
	return fmt.Errorf("illegal stage transition %s -> %s", m.stage, to)
}

// CountsDown reports whether the session budget is consumed in this stage.
func CountsDown(s Stage) bool {
	switch s {
	case StageLoading, StageReady, StageCompleted:
		return false
	}
	return true
}
