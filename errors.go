package rosescout

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to check.
var (
	// ErrToolNotFound is returned by Lookup and recorded as a call failure
	// when the model requests an unregistered tool.
	ErrToolNotFound = errors.New("tool not found")
	// ErrDuplicateTool is returned by Register when a tool with the same
	// name is already present. Registration-time, fatal.
	ErrDuplicateTool = errors.New("duplicate tool name")
	// ErrDuplicateField is returned by NewDeclaredTool when the parameter
	// field list contains two fields with the same name.
	ErrDuplicateField = errors.New("duplicate schema field name")
	ErrTimeout        = errors.New("tool execution timeout")
	ErrValidation     = errors.New("validation failed")
	ErrShutdown       = errors.New("registry is shutting down")
)

// ClientError is an error that should be sent back to the model for
// self-correction (invalid JSON, schema validation failure, bad enum value).
// It must not expose stack traces or internal details.
// Err optionally wraps a sentinel (e.g. ErrValidation) for errors.Is.
type ClientError struct {
	Reason string
	// Retryable is set by the application, not by this package. When true,
	// the orchestrator may retry the same call without changing arguments.
	Retryable bool
	Err       error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("invalid tool input: %s", e.Reason)
}

func (e *ClientError) Unwrap() error { return e.Err }

// NewClientError creates a model-visible error. Tool handlers use it to
// report conditions the model can react to, e.g. an address with no
// geocoding results.
func NewClientError(reason string, retryable bool) *ClientError {
	return &ClientError{Reason: reason, Retryable: retryable}
}

// SystemError represents an internal failure (backend down, panic, bug).
// The model never sees the underlying error message.
type SystemError struct {
	Err error
}

func (e *SystemError) Error() string {
	return "internal system error during tool execution"
}

func (e *SystemError) Unwrap() error { return e.Err }

// IsClientError reports whether err is or wraps a ClientError.
func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// IsSystemError reports whether err is or wraps a SystemError.
func IsSystemError(err error) bool {
	var se *SystemError
	return errors.As(err, &se)
}

// wrapJSONParseError returns a ClientError for JSON unmarshal failures so the
// model sees a consistent message across Extractor and declared tools.
func wrapJSONParseError(err error) error {
	return &ClientError{Reason: "json parse error: " + err.Error()}
}

// panicError wraps a recovered panic value for SystemError.
type panicError struct{ p any }

func (e *panicError) Error() string {
	return "panic: " + fmt.Sprint(e.p)
}
