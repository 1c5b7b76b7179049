package notifier

import (
	"context"
	"time"

	"github.com/fiffu/versionwatch/config"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
)

// RetryPolicy bounds how hard the dispatcher tries to deliver one digest.
// Delays grow by BackoffFactor from Delay up to MaxDelay.
type RetryPolicy struct {
	Attempts      int
	Delay         time.Duration
	MaxDelay      time.Duration
	MaxDuration   time.Duration
	BackoffFactor float64
	Jitter        bool
	Clock         clock.Clock
}

func NewRetryPolicy(cfg *config.Config, clk clock.Clock) *RetryPolicy {
	return &RetryPolicy{
		Attempts:      cfg.Retry.Attempts,
		Delay:         cfg.Retry.Delay,
		MaxDelay:      cfg.Retry.MaxDelay,
		MaxDuration:   cfg.Retry.MaxDuration,
		BackoffFactor: 2,
		Jitter:        true,
		Clock:         clk,
	}
}

// Do calls fn until it succeeds, the policy is exhausted or ctx is done.
// notify is called after every failed attempt. The returned error is the last
// error from fn.
func (p *RetryPolicy) Do(ctx context.Context, fn func() error, notify func(err error, attempt int)) error {
	maxDelay := p.MaxDelay
	if maxDelay < p.Delay {
		maxDelay = p.Delay
	}
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 1
	}

	err := retry.Call(retry.CallArgs{
		Func:        fn,
		NotifyFunc:  notify,
		Attempts:    p.Attempts,
		Delay:       p.Delay,
		MaxDelay:    maxDelay,
		MaxDuration: p.MaxDuration,
		BackoffFunc: retry.ExpBackoff(p.Delay, maxDelay, factor, p.Jitter),
		Clock:       p.Clock,
		Stop:        ctx.Done(),
	})
	if err == nil {
		return nil
	}
	if retry.IsRetryStopped(err) && ctx.Err() != nil {
		return errors.Annotate(ctx.Err(), "retry stopped")
	}
	if last := retry.LastError(err); last != nil {
		return last
	}
	return err
}
