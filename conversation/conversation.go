// Package conversation holds the append-only transcript of one screening
// request. A transcript is created per request, never shared across
// concurrent requests, and mutated only by appending turns in a legal order.
package conversation

import (
	"errors"
	"fmt"

	"github.com/rosescout/rosescout"
)

// ErrInvalidSequence reports a turn appended out of order: a programming
// contract violation in transcript construction, not a recoverable runtime
// condition.
var ErrInvalidSequence = errors.New("invalid turn sequence")

// Role identifies who contributed a turn.
type Role string

const (
	RoleUser       Role = "user"
	RoleModel      Role = "model"
	RoleToolResult Role = "tool"
)

// Turn is one atomic contribution to a conversation. Exactly one of the
// concrete types below implements it.
type Turn interface {
	Role() Role
}

// UserTurn is free text from the requester (the compiled screening prompt).
type UserTurn struct {
	Text string
}

func (UserTurn) Role() Role { return RoleUser }

// ModelTurn is the model's contribution: text, zero or more tool call
// requests, or both.
type ModelTurn struct {
	Text  string
	Calls []rosescout.ToolCall
}

func (ModelTurn) Role() Role { return RoleModel }

// ToolResultTurn carries the results for every call requested by the
// immediately preceding ModelTurn, one result per request id.
type ToolResultTurn struct {
	Results []rosescout.ToolResult
}

func (ToolResultTurn) Role() Role { return RoleToolResult }

// Transcript is an ordered, append-only sequence of turns. It enforces the
// required alternation: a ToolResultTurn must immediately follow a ModelTurn
// that issued at least one call and must resolve exactly its outstanding
// request ids; no other turn may be appended while requests are unresolved.
//
// Transcript is not safe for concurrent use; each request owns its own.
type Transcript struct {
	turns   []Turn
	pending map[string]bool // outstanding call ids from the last ModelTurn
}

// New returns an empty transcript.
func New() *Transcript {
	return &Transcript{}
}

// Append adds a turn, or fails with ErrInvalidSequence when the turn's role
// violates the alternation contract.
func (t *Transcript) Append(turn Turn) error {
	switch v := turn.(type) {
	case UserTurn:
		if len(t.pending) > 0 {
			return fmt.Errorf("%w: user turn while %d tool calls unresolved", ErrInvalidSequence, len(t.pending))
		}
		t.turns = append(t.turns, v)
		return nil
	case ModelTurn:
		return t.appendModel(v)
	case ToolResultTurn:
		return t.appendToolResults(v)
	default:
		return fmt.Errorf("%w: unknown turn type %T", ErrInvalidSequence, turn)
	}
}

func (t *Transcript) appendModel(turn ModelTurn) error {
	if len(t.pending) > 0 {
		return fmt.Errorf("%w: model turn while %d tool calls unresolved", ErrInvalidSequence, len(t.pending))
	}
	if len(t.turns) == 0 {
		return fmt.Errorf("%w: model turn before any user turn", ErrInvalidSequence)
	}
	seen := make(map[string]bool, len(turn.Calls))
	for _, call := range turn.Calls {
		if call.ID == "" {
			return fmt.Errorf("%w: tool call with empty id", ErrInvalidSequence)
		}
		if seen[call.ID] {
			return fmt.Errorf("%w: duplicate tool call id %q", ErrInvalidSequence, call.ID)
		}
		seen[call.ID] = true
	}
	t.turns = append(t.turns, turn)
	if len(seen) > 0 {
		t.pending = seen
	}
	return nil
}

func (t *Transcript) appendToolResults(turn ToolResultTurn) error {
	if len(t.pending) == 0 {
		return fmt.Errorf("%w: tool results with no outstanding requests", ErrInvalidSequence)
	}
	if len(turn.Results) != len(t.pending) {
		return fmt.Errorf("%w: got %d results for %d outstanding requests", ErrInvalidSequence, len(turn.Results), len(t.pending))
	}
	seen := make(map[string]bool, len(turn.Results))
	for _, res := range turn.Results {
		if !t.pending[res.CallID] {
			return fmt.Errorf("%w: result for unknown call id %q", ErrInvalidSequence, res.CallID)
		}
		if seen[res.CallID] {
			return fmt.Errorf("%w: duplicate result for call id %q", ErrInvalidSequence, res.CallID)
		}
		seen[res.CallID] = true
	}
	t.turns = append(t.turns, turn)
	t.pending = nil
	return nil
}

// Pending returns the number of unresolved tool call requests.
func (t *Transcript) Pending() int { return len(t.pending) }

// Len returns the number of turns.
func (t *Transcript) Len() int { return len(t.turns) }

// Snapshot returns a copy of the turn sequence for rendering to the model.
// The returned slice is owned by the caller; the turns themselves are value
// types and safe to read.
func (t *Transcript) Snapshot() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// LastModelText returns the text of the final ModelTurn, or "" if none.
func (t *Transcript) LastModelText() string {
	for i := len(t.turns) - 1; i >= 0; i-- {
		if mt, ok := t.turns[i].(ModelTurn); ok {
			return mt.Text
		}
	}
	return ""
}

// ToolOutputs returns the payloads of every successful tool result in order.
// The sanitizer uses them for best-effort quote verification.
func (t *Transcript) ToolOutputs() []string {
	return ToolOutputs(t.turns)
}

// ToolOutputs collects successful tool result payloads from a turn slice,
// e.g. a snapshot carried on a finished request.
func ToolOutputs(turns []Turn) []string {
	var out []string
	for _, turn := range turns {
		trt, ok := turn.(ToolResultTurn)
		if !ok {
			continue
		}
		for _, res := range trt.Results {
			if !res.Failed() && len(res.Result) > 0 {
				out = append(out, string(res.Result))
			}
		}
	}
	return out
}
