package agent_test

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rosescout/rosescout"
	"github.com/rosescout/rosescout/agent"
	"github.com/rosescout/rosescout/testutil"
)

// countingProvider answers immediately after a random delay and tracks how
// many requests run at once.
type countingProvider struct {
	cur  atomic.Int32
	peak atomic.Int32
	mu   sync.Mutex
	rng  *rand.Rand
}

func (p *countingProvider) Generate(ctx context.Context, _ *agent.Request) (*agent.Reply, error) {
	n := p.cur.Add(1)
	defer p.cur.Add(-1)
	for {
		old := p.peak.Load()
		if n <= old || p.peak.CompareAndSwap(old, n) {
			break
		}
	}
	p.mu.Lock()
	delay := time.Duration(p.rng.Intn(20)) * time.Millisecond
	p.mu.Unlock()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(delay):
	}
	return &agent.Reply{Text: "done"}, nil
}

func TestScheduler_AdmissionLimit(t *testing.T) {
	defer goleak.VerifyNone(t)

	provider := &countingProvider{rng: rand.New(rand.NewSource(42))}
	loop := agent.NewLoop(provider, rosescout.NewRegistry(), agent.LoopConfig{})
	sched := agent.NewScheduler(loop, agent.SchedulerConfig{MaxConcurrent: 3})

	handles := make([]string, 20)
	for i := range handles {
		h, err := sched.Submit(context.Background(), "request")
		require.NoError(t, err)
		handles[i] = h
	}
	for _, h := range handles {
		res, err := sched.Wait(context.Background(), h, 5*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, res.Completed())
	}
	sched.Close()

	assert.LessOrEqual(t, provider.peak.Load(), int32(3),
		"admission gate must bound concurrent requests")
}

func TestScheduler_SubmitPoll(t *testing.T) {
	defer goleak.VerifyNone(t)

	provider := testutil.NewScriptedProvider(
		testutil.Step{Reply: &agent.Reply{Text: "report"}},
	)
	loop := agent.NewLoop(provider, rosescout.NewRegistry(), agent.LoopConfig{})
	sched := agent.NewScheduler(loop, agent.SchedulerConfig{})

	h, err := sched.Submit(context.Background(), "screen")
	require.NoError(t, err)

	res, err := sched.Wait(context.Background(), h, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "report", res.FinalText)

	// Poll is stable after completion.
	again, done, err := sched.Poll(h)
	require.NoError(t, err)
	require.True(t, done)
	assert.Same(t, res, again)

	sched.Close()
}

func TestScheduler_UnknownHandle(t *testing.T) {
	loop := agent.NewLoop(testutil.NewScriptedProvider(), rosescout.NewRegistry(), agent.LoopConfig{})
	sched := agent.NewScheduler(loop, agent.SchedulerConfig{})
	defer sched.Close()

	_, _, err := sched.Poll("nope")
	assert.ErrorIs(t, err, agent.ErrUnknownRequest)
}

func TestScheduler_ClosedRejectsSubmit(t *testing.T) {
	loop := agent.NewLoop(testutil.NewScriptedProvider(), rosescout.NewRegistry(), agent.LoopConfig{})
	sched := agent.NewScheduler(loop, agent.SchedulerConfig{})
	sched.Close()

	_, err := sched.Submit(context.Background(), "late")
	assert.ErrorIs(t, err, agent.ErrSchedulerClosed)
}

func TestScheduler_RequestTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	slow := &stallProvider{}
	loop := agent.NewLoop(slow, rosescout.NewRegistry(), agent.LoopConfig{})
	sched := agent.NewScheduler(loop, agent.SchedulerConfig{
		RequestTimeout: 30 * time.Millisecond,
	})

	h, err := sched.Submit(context.Background(), "never finishes")
	require.NoError(t, err)
	res, err := sched.Wait(context.Background(), h, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, agent.ReasonError, res.Reason)
	require.Error(t, res.Err)

	sched.Close()
}

func TestScheduler_ListNewestFirst(t *testing.T) {
	provider := &countingProvider{rng: rand.New(rand.NewSource(7))}
	loop := agent.NewLoop(provider, rosescout.NewRegistry(), agent.LoopConfig{})
	sched := agent.NewScheduler(loop, agent.SchedulerConfig{MaxConcurrent: 1})

	var handles []string
	for i := 0; i < 3; i++ {
		h, err := sched.Submit(context.Background(), "req")
		require.NoError(t, err)
		handles = append(handles, h)
		time.Sleep(2 * time.Millisecond)
	}

	infos := sched.List()
	require.Len(t, infos, 3)
	assert.Equal(t, handles[2], infos[0].Handle)
	assert.Equal(t, handles[0], infos[2].Handle)
	for i := 1; i < len(infos); i++ {
		assert.False(t, infos[i-1].SubmittedAt.Before(infos[i].SubmittedAt))
	}

	sched.Close()
}

// stallProvider blocks until its context is cancelled.
type stallProvider struct{}

func (stallProvider) Generate(ctx context.Context, _ *agent.Request) (*agent.Reply, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
