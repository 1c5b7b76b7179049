package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fiffu/versionwatch/lib/notifier"
	"github.com/fiffu/versionwatch/lib/poller"
	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
	ran   chan struct{}

	pollErr error
}

func (r *recorder) record(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) PollAll(ctx context.Context) ([]*poller.PollSummary, error) {
	r.record("poll")
	return nil, r.pollErr
}

func (r *recorder) RunBatch(ctx context.Context) (*notifier.BatchSummary, error) {
	r.record("notify")
	if r.ran != nil {
		r.ran <- struct{}{}
	}
	return &notifier.BatchSummary{}, nil
}

func TestRunCycle_PollsBeforeNotifying(t *testing.T) {
	r := &recorder{pollErr: errors.New("aws unreachable")}
	s := New(zap.NewNop(), r, r, testclock.NewClock(time.Now()), time.Hour)

	s.RunCycle(context.Background())

	assert.Equal(t, []string{"poll", "notify"}, r.Calls())
}

func TestStartStop(t *testing.T) {
	r := &recorder{ran: make(chan struct{}, 1)}
	clk := testclock.NewClock(time.Now())
	s := New(zap.NewNop(), r, r, clk, time.Hour)

	s.Start()
	s.Start()

	waitRun := func() {
		t.Helper()
		select {
		case <-r.ran:
		case <-time.After(5 * time.Second):
			t.Fatal("cycle did not run")
		}
	}

	waitRun()
	require.NoError(t, clk.WaitAdvance(time.Hour, 5*time.Second, 1))
	waitRun()

	s.Stop()
	assert.Equal(t, []string{"poll", "notify", "poll", "notify"}, r.Calls())
}

func TestStopBeforeStart(t *testing.T) {
	s := New(zap.NewNop(), &recorder{}, &recorder{}, testclock.NewClock(time.Now()), time.Hour)
	s.Stop()
}

func TestStopRightAfterStart(t *testing.T) {
	r := &recorder{}
	clk := testclock.NewClock(time.Now())
	s := New(zap.NewNop(), r, r, clk, time.Hour)

	s.Start()
	s.Stop()

	stopped := r.Calls()
	assert.Contains(t, [][]string{nil, {"poll"}, {"poll", "notify"}}, stopped, "at most the in-flight cycle completes")

	clk.Advance(2 * time.Hour)
	assert.Equal(t, stopped, r.Calls(), "no cycle runs after Stop returns")
}
