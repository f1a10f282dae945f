// Package synthesis defines the voice output capability used to read
// question and review text aloud.
package synthesis

// Synthesizer speaks text and reports speaking/idle transitions through the
// onSpeakingChange callback. Hosts supply the concrete implementation.
type Synthesizer interface {
	IsSupported() bool
	Speak(text string, onSpeakingChange func(speaking bool)) error
	Pause()
	Resume()
	Stop()
}

// Noop satisfies the contract for headless hosts. Speak reports an
// immediate speaking/idle transition so stage logic keyed on it still runs.
type Noop struct{}

func (Noop) IsSupported() bool { return true }

func (Noop) Speak(text string, onSpeakingChange func(bool)) error {
	if onSpeakingChange != nil {
		onSpeakingChange(true)
		onSpeakingChange(false)
	}
	return nil
}

func (Noop) Pause()  {}
func (Noop) Resume() {}
func (Noop) Stop()   {}
