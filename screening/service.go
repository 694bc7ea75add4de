package screening

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/rosescout/rosescout"
	"github.com/rosescout/rosescout/agent"
	"github.com/rosescout/rosescout/conversation"
	"github.com/rosescout/rosescout/sanitize"
)

// Outcome is the end-to-end result of screening one profile. Report is nil
// when the request failed or the model output could not be parsed; Err then
// explains why. MissingFields lists required report keys the model omitted.
type Outcome struct {
	Report        *RiskReport
	MissingFields []string
	RawText       string
	Reason        agent.TerminationReason
	Err           error
}

// ServiceConfig configures a screening Service.
type ServiceConfig struct {
	// MaxRounds limits tool rounds per request. Default: 8.
	MaxRounds int
	// RoundTimeout bounds each batch of tool calls. Zero disables it.
	RoundTimeout time.Duration
	// MaxConcurrent bounds requests in flight at once. Default: 4.
	MaxConcurrent int
	// RequestTimeout bounds one request end to end. Zero disables it.
	RequestTimeout time.Duration
	// Logger defaults to a disabled logger.
	Logger zerolog.Logger
}

// Service screens customer profiles. It is safe for concurrent use.
type Service struct {
	loop      *agent.Loop
	scheduler *agent.Scheduler
	sanitizer *sanitize.Sanitizer
}

// NewService wires the provider and tool registry into a ready service. The
// registry must already hold the research tools.
func NewService(provider agent.Provider, registry *rosescout.Registry, cfg ServiceConfig) *Service {
	loop := agent.NewLoop(provider, registry, agent.LoopConfig{
		MaxRounds:    cfg.MaxRounds,
		RoundTimeout: cfg.RoundTimeout,
		System:       SystemPrompt,
		Logger:       cfg.Logger,
	})
	scheduler := agent.NewScheduler(loop, agent.SchedulerConfig{
		MaxConcurrent:  cfg.MaxConcurrent,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         cfg.Logger,
	})
	return &Service{
		loop:      loop,
		scheduler: scheduler,
		sanitizer: sanitize.New(requiredFields...),
	}
}

// Screen runs one profile synchronously.
func (s *Service) Screen(ctx context.Context, p Profile) (*Outcome, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	prompt, err := RenderPrompt(p)
	if err != nil {
		return nil, err
	}
	return s.outcome(s.loop.Run(ctx, prompt)), nil
}

// Submit enqueues a profile for background screening and returns a handle
// for Poll.
func (s *Service) Submit(ctx context.Context, p Profile) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	prompt, err := RenderPrompt(p)
	if err != nil {
		return "", err
	}
	return s.scheduler.Submit(ctx, prompt)
}

// Poll reports the outcome for a handle. done is false while the request is
// still in flight.
func (s *Service) Poll(handle string) (out *Outcome, done bool, err error) {
	res, done, err := s.scheduler.Poll(handle)
	if err != nil || !done {
		return nil, done, err
	}
	return s.outcome(res), true, nil
}

// Requests lists all known screening requests, newest first.
func (s *Service) Requests() []agent.RequestInfo {
	return s.scheduler.List()
}

// Close stops accepting submissions and waits for in-flight requests.
func (s *Service) Close() {
	s.scheduler.Close()
}

// outcome shapes a finished loop result into a screening outcome: extract
// the JSON payload, verify quotes against tool output, map onto the report
// type, and validate its enums.
func (s *Service) outcome(res *agent.Result) *Outcome {
	out := &Outcome{
		RawText: res.FinalText,
		Reason:  res.Reason,
		Err:     res.Err,
	}
	if !res.Completed() {
		return out
	}

	rec, err := s.sanitizer.Extract(res.FinalText)
	if err != nil {
		out.Err = err
		return out
	}
	sanitize.VerifyQuotes(rec, conversation.ToolOutputs(res.Transcript))

	report, err := reportFromRecord(rec)
	if err != nil {
		out.Err = err
		return out
	}
	if err := report.Validate(); err != nil {
		out.Err = err
		return out
	}
	out.Report = report
	out.MissingFields = rec.MissingFields
	return out
}
