// Package completion defines the remote text-generation contract used for
// question generation and feedback evaluation. Callers treat any error as a
// single failure class and fall back to locally computed results.
package completion

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse signals that the service answered without usable text.
var ErrEmptyResponse = errors.New("completion service returned an empty response")

// Message is a role-tagged entry of the conversation history supplied by the
// caller. The history is owned by the caller, not by the service.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Service generates text from prompts. Implementations must return an error
// on transport failure, non-success status or empty output, without exposing
// further detail; callers use the error purely to decide whether to fall back.
type Service interface {
	// Complete sends the prompt with optional conversation history and
	// returns the raw generated text.
	Complete(ctx context.Context, prompt string, history []Message) (string, error)
	// Feedback requests an interview evaluation for the given transcript
	// summary and interview mode.
	Feedback(ctx context.Context, summary, mode string) (string, error)
}
