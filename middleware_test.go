package rosescout

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	type A struct{}
	tool, err := NewTool("logged", "Logged", func(_ context.Context, _ A) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)

	reg := NewRegistry()
	reg.Use(WithLogging(logger))
	require.NoError(t, reg.Register(tool))

	res := reg.Execute(context.Background(), ToolCall{ID: "1", ToolName: "logged", Args: raw(`{}`)})
	require.NoError(t, res.Err)
	assert.Contains(t, buf.String(), "tool start")
	assert.Contains(t, buf.String(), "tool end")
	assert.Contains(t, buf.String(), `"tool":"logged"`)
}

func TestWithRecovery(t *testing.T) {
	type A struct{}
	tool, err := NewTool("boomer", "Panics", func(_ context.Context, _ A) (string, error) {
		panic("kaboom")
	})
	require.NoError(t, err)

	wrapped := WithRecovery()(tool)
	_, err = wrapped.Execute(context.Background(), raw(`{}`))
	require.Error(t, err)
	assert.True(t, IsSystemError(err))
}

func TestWithTimeoutMiddleware(t *testing.T) {
	type A struct{}
	tool, err := NewTool("slowpoke", "Sleeps", func(ctx context.Context, _ A) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
			return "late", nil
		}
	})
	require.NoError(t, err)

	wrapped := WithTimeoutMiddleware(10 * time.Millisecond)(tool)
	_, err = wrapped.Execute(context.Background(), raw(`{}`))
	require.Error(t, err)

	meta, ok := wrapped.(ToolMetadata)
	require.True(t, ok)
	assert.Equal(t, 10*time.Millisecond, meta.Timeout())
}

func TestWithTimeoutMiddleware_MinimumOfBoth(t *testing.T) {
	type A struct{}
	tool, err := NewTool("timed", "Timed", func(_ context.Context, _ A) (string, error) {
		return "ok", nil
	}, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	// Middleware looser than the tool option: the tool's own timeout wins.
	meta, ok := WithTimeoutMiddleware(time.Second)(tool).(ToolMetadata)
	require.True(t, ok)
	assert.Equal(t, 50*time.Millisecond, meta.Timeout())

	// Middleware tighter than the tool option: the middleware wins.
	meta, ok = WithTimeoutMiddleware(10 * time.Millisecond)(tool).(ToolMetadata)
	require.True(t, ok)
	assert.Equal(t, 10*time.Millisecond, meta.Timeout())

	// Zero middleware duration defers to the tool entirely.
	meta, ok = WithTimeoutMiddleware(0)(tool).(ToolMetadata)
	require.True(t, ok)
	assert.Equal(t, 50*time.Millisecond, meta.Timeout())
}

func TestRegistry_Use_Rewraps(t *testing.T) {
	var buf bytes.Buffer
	type A struct{}
	tool, err := NewTool("rewrapped", "Target", func(_ context.Context, _ A) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)

	reg := NewRegistry()
	require.NoError(t, reg.Register(tool))

	// Calling Use twice must not double-wrap: a single execution logs one
	// start line.
	reg.Use(WithLogging(zerolog.New(&buf)))
	reg.Use(WithLogging(zerolog.New(&buf)))

	res := reg.Execute(context.Background(), ToolCall{ID: "1", ToolName: "rewrapped", Args: raw(`{}`)})
	require.NoError(t, res.Err)
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("tool start")))
}
