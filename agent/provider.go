// Package agent drives the multi-turn exchange between the model and the
// tool registry: an explicit state machine per request (loop.go) and a
// bounded scheduler for running many independent requests (scheduler.go).
package agent

import (
	"context"
	"errors"

	"github.com/rosescout/rosescout"
	"github.com/rosescout/rosescout/conversation"
)

// ErrServiceUnavailable is returned by a Provider once its own retry policy
// is exhausted. The loop treats it as terminal for the request.
var ErrServiceUnavailable = errors.New("model service unavailable")

// ToolChoice controls the guard on the loop's first transition: whether the
// model may, must, or must not call tools.
type ToolChoice string

const (
	// ToolChoiceAuto lets the model decide whether to call tools.
	ToolChoiceAuto ToolChoice = "auto"
	// ToolChoiceRequired forces at least one tool call on the first round.
	ToolChoiceRequired ToolChoice = "required"
	// ToolChoiceNone forbids tool calls entirely.
	ToolChoiceNone ToolChoice = "none"
)

// Request is one model invocation: the transcript so far, the advertised
// tool set, and the tool-calling mode.
type Request struct {
	System     string
	Transcript []conversation.Turn
	Tools      []rosescout.Tool
	ToolChoice ToolChoice
}

// Reply is the model's turn: text, tool call requests, or both. Providers
// must mint a unique ID per call when the backend does not supply one.
type Reply struct {
	Text  string
	Calls []rosescout.ToolCall
}

// Provider is the model service boundary. Implementations own their retry
// policy for transient failures; Generate returns ErrServiceUnavailable
// (wrapped) once that policy is exhausted, and any other error for terminal
// failures. The loop performs no retries of its own.
type Provider interface {
	Generate(ctx context.Context, req *Request) (*Reply, error)
}
