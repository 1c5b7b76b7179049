// Package scheduler runs the poll-then-notify cycle on an interval while the
// server is up.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/fiffu/versionwatch/config"
	"github.com/fiffu/versionwatch/lib/notifier"
	"github.com/fiffu/versionwatch/lib/poller"
	"github.com/juju/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Poller interface {
	PollAll(ctx context.Context) ([]*poller.PollSummary, error)
}

type Batcher interface {
	RunBatch(ctx context.Context) (*notifier.BatchSummary, error)
}

type Scheduler struct {
	log      *zap.Logger
	poller   Poller
	batcher  Batcher
	clock    clock.Clock
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(log *zap.Logger, p Poller, b Batcher, clk clock.Clock, interval time.Duration) *Scheduler {
	return &Scheduler{log: log, poller: p, batcher: b, clock: clk, interval: interval}
}

func NewScheduler(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, p *poller.Poller, b *notifier.Batcher, clk clock.Clock) *Scheduler {
	s := New(log, p, b, clk, cfg.Poll.Interval)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Sugar().Info("Trying to stop scheduler")
			s.Stop()
			return nil
		},
	})
	return s
}

// Start launches the loop, which runs a cycle immediately and then once per
// interval until Stop. Calling Start again while running does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel, s.done = cancel, done

	go s.loop(ctx, done)
}

func (s *Scheduler) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		s.RunCycle(ctx)

		select {
		case <-ctx.Done():
		case <-s.clock.After(s.interval):
		}
	}
	s.log.Sugar().Info("Scheduler stopped")
}

// Stop cancels the loop and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunCycle polls every platform and then sends the digests that became due.
func (s *Scheduler) RunCycle(ctx context.Context) {
	log := s.log.Sugar()
	start := s.clock.Now()

	summaries, err := s.poller.PollAll(ctx)
	if err != nil {
		log.Errorw("Polling failed", "err", err)
	}
	changed := 0
	for _, summary := range summaries {
		changed += len(summary.Changed())
	}

	if ctx.Err() != nil {
		return
	}

	batch, err := s.batcher.RunBatch(ctx)
	if err != nil {
		log.Errorw("Notification batch failed", "err", err)
		return
	}

	log.Infow("Cycle complete",
		"changed_services", changed,
		"notified", len(batch.Sent),
		"failed_deliveries", len(batch.Failed),
		"elapsed_msecs", int(s.clock.Now().Sub(start).Milliseconds()),
	)
}
