package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rosescout/rosescout"
	"github.com/rosescout/rosescout/conversation"
)

// state of the orchestration loop. The machine moves
// awaitingModel → awaitingTools → awaitingModel ... until a model turn with
// no tool calls (done) or a limit/service failure (failed).
type state int

const (
	awaitingModel state = iota
	awaitingTools
	stateDone
	stateFailed
)

// TerminationReason explains how a request ended.
type TerminationReason string

const (
	ReasonCompleted        TerminationReason = "completed"
	ReasonToolLimitReached TerminationReason = "tool_limit_reached"
	ReasonError            TerminationReason = "error"
)

// Result is the outcome of one orchestrated request. A failed request is a
// Result with ReasonToolLimitReached or ReasonError and the last coherent
// transcript for diagnosis, never a partial success or a panic.
type Result struct {
	FinalText  string
	Transcript []conversation.Turn
	Reason     TerminationReason
	Err        error
}

// Completed reports whether the loop reached a terminal model answer.
func (r *Result) Completed() bool { return r.Reason == ReasonCompleted }

// LoopConfig configures loop behavior. The zero value is usable; defaults
// are applied by NewLoop.
type LoopConfig struct {
	// MaxRounds limits tool-call rounds per request. Exceeding it ends the
	// request with ReasonToolLimitReached. Default: 8.
	MaxRounds int
	// ToolChoice guards the first transition (see ToolChoice). After the
	// first round the mode always falls back to auto so the model can
	// produce a final answer. Default: ToolChoiceAuto.
	ToolChoice ToolChoice
	// RoundTimeout bounds each batch of tool calls. Calls still outstanding
	// at expiry become failure outcomes. Zero means the registry default
	// per-call timeout alone applies.
	RoundTimeout time.Duration
	// System is the system instruction passed to the provider.
	System string
	// Logger defaults to a disabled logger.
	Logger zerolog.Logger
}

// Loop runs the orchestration state machine for single requests. It is
// stateless across requests and safe for concurrent use: each Run creates
// its own transcript.
type Loop struct {
	provider Provider
	registry *rosescout.Registry
	cfg      LoopConfig
}

// NewLoop creates a Loop. The registry's tool set must be fully registered
// before the first Run; the loop snapshots the advertised tools once per
// request so the model never sees the capability list reorder mid-dialogue.
func NewLoop(provider Provider, registry *rosescout.Registry, cfg LoopConfig) *Loop {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 8
	}
	if cfg.ToolChoice == "" {
		cfg.ToolChoice = ToolChoiceAuto
	}
	return &Loop{provider: provider, registry: registry, cfg: cfg}
}

// Run drives one request to completion. userText seeds the transcript; ctx
// carries the per-request deadline, whose expiry ends the request with
// ReasonError. Run never returns a Go error for in-band failures: everything
// is reported on the Result.
func (l *Loop) Run(ctx context.Context, userText string) *Result {
	log := l.cfg.Logger
	transcript := conversation.New()
	if err := transcript.Append(conversation.UserTurn{Text: userText}); err != nil {
		return l.fail(transcript, err)
	}

	tools := l.registry.All()
	choice := l.cfg.ToolChoice
	st := awaitingModel
	rounds := 0

	for {
		if err := ctx.Err(); err != nil {
			return l.fail(transcript, fmt.Errorf("request cancelled: %w", err))
		}

		switch st {
		case awaitingModel:
			reply, err := l.provider.Generate(ctx, &Request{
				System:     l.cfg.System,
				Transcript: transcript.Snapshot(),
				Tools:      tools,
				ToolChoice: choice,
			})
			if err != nil {
				return l.fail(transcript, err)
			}
			turn := conversation.ModelTurn{Text: reply.Text, Calls: reply.Calls}
			if err := transcript.Append(turn); err != nil {
				return l.fail(transcript, err)
			}
			if len(reply.Calls) == 0 {
				if rounds == 0 && choice == ToolChoiceRequired {
					return l.fail(transcript, fmt.Errorf("tool use required but model returned no tool calls"))
				}
				st = stateDone
				break
			}
			if choice == ToolChoiceNone {
				return l.fail(transcript, fmt.Errorf("tool use forbidden but model requested %d tool calls", len(reply.Calls)))
			}
			rounds++
			if rounds > l.cfg.MaxRounds {
				log.Warn().Int("max_rounds", l.cfg.MaxRounds).Msg("tool round limit exceeded")
				return &Result{
					Transcript: transcript.Snapshot(),
					Reason:     ReasonToolLimitReached,
					Err:        fmt.Errorf("tool round limit of %d exceeded", l.cfg.MaxRounds),
				}
			}
			st = awaitingTools

		case awaitingTools:
			results := l.dispatch(ctx, transcript)
			if err := transcript.Append(conversation.ToolResultTurn{Results: results}); err != nil {
				return l.fail(transcript, err)
			}
			// The mode only guards the first transition; later rounds run
			// auto so the model can stop calling tools.
			choice = ToolChoiceAuto
			st = awaitingModel

		case stateDone:
			return &Result{
				FinalText:  transcript.LastModelText(),
				Transcript: transcript.Snapshot(),
				Reason:     ReasonCompleted,
			}
		}
	}
}

// dispatch executes the outstanding calls of the last model turn as one
// batch, under the per-round timeout when configured.
func (l *Loop) dispatch(ctx context.Context, transcript *conversation.Transcript) []rosescout.ToolResult {
	turns := transcript.Snapshot()
	last := turns[len(turns)-1].(conversation.ModelTurn)

	if l.cfg.RoundTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.RoundTimeout)
		defer cancel()
	}
	for _, call := range last.Calls {
		l.cfg.Logger.Debug().Str("tool", call.ToolName).Str("call_id", call.ID).Msg("dispatching tool call")
	}
	return l.registry.ExecuteBatch(ctx, last.Calls)
}

func (l *Loop) fail(transcript *conversation.Transcript, err error) *Result {
	l.cfg.Logger.Error().Err(err).Msg("request failed")
	return &Result{
		Transcript: transcript.Snapshot(),
		Reason:     ReasonError,
		Err:        err,
	}
}
