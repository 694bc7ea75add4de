package rosescout

import (
	"context"
	"encoding/json"
	"time"
)

// Tool is the contract for a model-callable instrument. Implementations are
// provider-agnostic: the registry advertises Name/Description/Parameters to
// the model and Execute receives the raw JSON arguments the model produced.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns a valid JSON Schema as a map (compatible with LLM
	// function declarations).
	Parameters() map[string]any
	// Execute validates argsJSON, runs the tool, and returns the JSON result.
	// Errors must be ClientError (model-visible, self-correction) or
	// SystemError (internals redacted); see errors.go.
	Execute(ctx context.Context, argsJSON []byte) ([]byte, error)
}

// ToolMetadata is implemented by tools created with NewTool and
// NewDeclaredTool. The registry uses Timeout() to override its default
// execution timeout; tags and version are exposed for discovery.
type ToolMetadata interface {
	Timeout() time.Duration
	Tags() []string
	Version() string
	IsDangerous() bool
}

// ToolCall is a single execution request as produced by the model. ID is the
// correlation key: the matching ToolResult carries the same ID regardless of
// execution order.
type ToolCall struct {
	ID       string
	ToolName string
	Args     json.RawMessage
}

// ToolResult is the outcome of one ToolCall. Exactly one result exists per
// call, correlated by CallID. A failed call carries Err and no Result; the
// failure never aborts sibling calls in the same batch.
type ToolResult struct {
	CallID   string
	ToolName string
	Result   json.RawMessage
	Err      error
}

// Failed reports whether the call produced a failure outcome.
func (r ToolResult) Failed() bool { return r.Err != nil }

// FailureText returns the model-visible description of a failure. ClientError
// messages pass through so the model can self-correct; SystemError and the
// sentinels already redact internals, so Err.Error() is safe to expose.
func (r ToolResult) FailureText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// ModelPayload returns the JSON to feed back into the conversation: the raw
// result on success, or an {"error": ...} object on failure.
func (r ToolResult) ModelPayload() json.RawMessage {
	if r.Err == nil {
		if len(r.Result) == 0 {
			return json.RawMessage(`null`)
		}
		return r.Result
	}
	b, err := json.Marshal(map[string]string{"error": r.FailureText()})
	if err != nil {
		return json.RawMessage(`{"error":"tool execution failed"}`)
	}
	return b
}
