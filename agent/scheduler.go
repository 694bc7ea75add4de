package agent

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrUnknownRequest is returned by Poll and Cancel for a handle the scheduler
// never issued.
var ErrUnknownRequest = errors.New("unknown request handle")

// ErrSchedulerClosed is returned by Submit after Close.
var ErrSchedulerClosed = errors.New("scheduler closed")

// Status of a scheduled request.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
)

// RequestInfo is the externally visible snapshot of one scheduled request.
type RequestInfo struct {
	Handle      string
	Status      Status
	SubmittedAt time.Time
}

// SchedulerConfig configures a Scheduler. The zero value is usable; defaults
// are applied by NewScheduler.
type SchedulerConfig struct {
	// MaxConcurrent bounds the number of requests in flight at once. Further
	// submissions are accepted immediately but wait for a slot. Default: 4.
	MaxConcurrent int
	// RequestTimeout bounds one request from admission to completion. Zero
	// means no per-request deadline beyond the caller's context.
	RequestTimeout time.Duration
	// Logger defaults to a disabled logger.
	Logger zerolog.Logger
}

type request struct {
	handle      string
	status      Status
	submittedAt time.Time
	result      *Result
}

// Scheduler runs independent screening requests through a shared Loop with a
// bounded admission gate. Submit returns a handle at once; the request runs
// in the background and its Result becomes available through Poll. Requests
// share no conversation state: the loop builds a fresh transcript per run.
type Scheduler struct {
	loop *Loop
	cfg  SchedulerConfig
	sem  chan struct{}

	mu       sync.Mutex
	requests map[string]*request
	closed   bool
	wg       sync.WaitGroup
}

// NewScheduler creates a Scheduler over the given loop.
func NewScheduler(loop *Loop, cfg SchedulerConfig) *Scheduler {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &Scheduler{
		loop:     loop,
		cfg:      cfg,
		sem:      make(chan struct{}, cfg.MaxConcurrent),
		requests: make(map[string]*request),
	}
}

// Submit enqueues one request and returns its handle. The request starts as
// soon as a concurrency slot frees up; ctx cancellation before admission, or
// the per-request timeout after it, ends the request with ReasonError.
func (s *Scheduler) Submit(ctx context.Context, userText string) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrSchedulerClosed
	}
	handle := uuid.NewString()
	req := &request{handle: handle, status: StatusPending, submittedAt: time.Now()}
	s.requests[handle] = req
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(ctx, req, userText)
	return handle, nil
}

func (s *Scheduler) run(ctx context.Context, req *request, userText string) {
	defer s.wg.Done()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		s.finish(req, &Result{Reason: ReasonError, Err: ctx.Err()})
		return
	}
	defer func() { <-s.sem }()

	s.mu.Lock()
	req.status = StatusRunning
	s.mu.Unlock()
	s.cfg.Logger.Info().Str("handle", req.handle).Msg("request admitted")

	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}
	s.finish(req, s.loop.Run(ctx, userText))
}

func (s *Scheduler) finish(req *request, res *Result) {
	s.mu.Lock()
	req.status = StatusDone
	req.result = res
	s.mu.Unlock()
	s.cfg.Logger.Info().
		Str("handle", req.handle).
		Str("reason", string(res.Reason)).
		Msg("request finished")
}

// Poll returns the result for a handle. done is false while the request is
// still pending or running; once true, the same Result is returned on every
// subsequent poll.
func (s *Scheduler) Poll(handle string) (res *Result, done bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[handle]
	if !ok {
		return nil, false, ErrUnknownRequest
	}
	if req.status != StatusDone {
		return nil, false, nil
	}
	return req.result, true, nil
}

// Wait blocks until the request completes or ctx is cancelled, polling at the
// given interval.
func (s *Scheduler) Wait(ctx context.Context, handle string, interval time.Duration) (*Result, error) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		res, done, err := s.Poll(handle)
		if err != nil {
			return nil, err
		}
		if done {
			return res, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// List returns a snapshot of all known requests, newest submission first.
func (s *Scheduler) List() []RequestInfo {
	s.mu.Lock()
	out := make([]RequestInfo, 0, len(s.requests))
	for _, req := range s.requests {
		out = append(out, RequestInfo{
			Handle:      req.handle,
			Status:      req.status,
			SubmittedAt: req.submittedAt,
		})
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return out
}

// Close stops accepting submissions and waits for in-flight requests to
// finish.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}
