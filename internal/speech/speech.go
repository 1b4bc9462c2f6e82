// Package speech abstracts the device text-to-speech and speech-to-text
// capabilities. The turn engine depends only on the interfaces here, so tests
// drive it with fake implementations that fire callbacks deterministically.
package speech

import (
	"errors"
	"fmt"
	"os/exec"
)

// ErrCaptureUnsupported is the one fatal, user-visible condition: the host
// has no speech capture capability, so no session can be created.
var ErrCaptureUnsupported = errors.New("speech capture is not supported on this system")

// NarrationEvents are the callbacks fired by a narration. All of them are
// optional.
type NarrationEvents struct {
	OnStart func()
	OnEnd   func()
	OnError func(error)
}

// Narrator speaks text aloud. Implementations are session-scoped singletons:
// starting a new narration must cancel the previous one.
type Narrator interface {
	// Speak starts narrating asynchronously and fires the events from a
	// background goroutine. The returned error covers start failures only.
	Speak(text string, ev NarrationEvents) error
	// Stop cancels the active narration, if any.
	Stop()
}

// CaptureOptions mirror the capture capability contract.
type CaptureOptions struct {
	Continuous     bool
	InterimResults bool
	Language       string
}

// Transcriber records the user's spoken answer and exposes the running
// transcript. At most one capture session is active at a time.
type Transcriber interface {
	Start(opts CaptureOptions) error
	Stop() error
	// Listening reports whether a capture session is active. The engine
	// queries it to decide whether to skip the countdown.
	Listening() bool
	// Transcript returns the text recognized so far.
	Transcript() string
	// Reset clears the transcript buffer between turns.
	Reset()
}

// Detect verifies that the given capture command exists on the host. It must
// be called before any session is created.
func Detect(command string) error {
	if command == "" {
		return ErrCaptureUnsupported
	}
	if _, err := exec.LookPath(command); err != nil {
		return fmt.Errorf("%w: %s not found", ErrCaptureUnsupported, command)
	}
	return nil
}
