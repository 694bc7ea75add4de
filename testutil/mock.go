// Package testutil provides fakes for exercising the engine without real
// tools or a real model service.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/rosescout/rosescout"
	"github.com/rosescout/rosescout/agent"
)

// MockTool is a configurable Tool for tests. The zero value is not usable;
// set at least NameValue.
type MockTool struct {
	NameValue        string
	DescriptionValue string
	ParametersValue  map[string]any
	ExecuteFunc      func(ctx context.Context, argsJSON []byte) ([]byte, error)
	// TimeoutValue overrides the registry default when positive.
	TimeoutValue time.Duration

	mu    sync.Mutex
	calls [][]byte
}

var _ rosescout.Tool = (*MockTool)(nil)
var _ rosescout.ToolMetadata = (*MockTool)(nil)

func (m *MockTool) Name() string        { return m.NameValue }
func (m *MockTool) Description() string { return m.DescriptionValue }

func (m *MockTool) Parameters() map[string]any {
	if m.ParametersValue != nil {
		return m.ParametersValue
	}
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (m *MockTool) Execute(ctx context.Context, argsJSON []byte) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]byte(nil), argsJSON...))
	m.mu.Unlock()
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, argsJSON)
	}
	return []byte(`{}`), nil
}

func (m *MockTool) Timeout() time.Duration { return m.TimeoutValue }
func (m *MockTool) Tags() []string         { return nil }
func (m *MockTool) Version() string        { return "" }
func (m *MockTool) IsDangerous() bool      { return false }

// CallCount returns how many times Execute ran.
func (m *MockTool) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns the recorded argument payloads.
func (m *MockTool) Calls() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.calls))
	copy(out, m.calls)
	return out
}

// Step is one scripted provider response.
type Step struct {
	Reply *agent.Reply
	Err   error
}

// ScriptedProvider returns its steps in order and records every request it
// sees. Safe for concurrent use; concurrent callers consume steps in
// arrival order.
type ScriptedProvider struct {
	mu       sync.Mutex
	steps    []Step
	next     int
	requests []*agent.Request
}

// NewScriptedProvider creates a provider that plays back the given steps.
func NewScriptedProvider(steps ...Step) *ScriptedProvider {
	return &ScriptedProvider{steps: steps}
}

func (p *ScriptedProvider) Generate(_ context.Context, req *agent.Request) (*agent.Reply, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.next >= len(p.steps) {
		return &agent.Reply{Text: "done"}, nil
	}
	step := p.steps[p.next]
	p.next++
	return step.Reply, step.Err
}

// Requests returns every request the provider received, in order.
func (p *ScriptedProvider) Requests() []*agent.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*agent.Request, len(p.requests))
	copy(out, p.requests)
	return out
}
