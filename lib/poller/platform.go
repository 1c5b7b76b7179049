package poller

import (
	"context"
	"sort"
	"sync"

	"github.com/juju/errors"
	"golang.org/x/sync/errgroup"
)

// PollSummary is the outcome of polling every service of one platform.
type PollSummary struct {
	Platform string
	Results  map[string]*PollResult
	Failed   map[string]error
	Skipped  []string
}

func newPollSummary(platform string) *PollSummary {
	return &PollSummary{
		Platform: platform,
		Results:  make(map[string]*PollResult),
		Failed:   make(map[string]error),
	}
}

// Changed returns the results that added or deprecated something, by key.
func (s *PollSummary) Changed() []*PollResult {
	keys := make([]string, 0, len(s.Results))
	for k, r := range s.Results {
		if r.Changed() {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]*PollResult, len(keys))
	for i, k := range keys {
		out[i] = s.Results[k]
	}
	return out
}

// PollPlatform polls every catalog service of the platform that has a
// fetcher, on a bounded pool of workers. A service that fails is recorded in
// the summary and never stops the others.
func (p *Poller) PollPlatform(ctx context.Context, platform string) (*PollSummary, error) {
	if _, ok := p.catalog.Platform(platform); !ok {
		return nil, errors.NotFoundf("platform %q", platform)
	}

	log := p.log.Sugar().With("platform", platform)
	log.Infof("Starting polling %s", platform)
	start := p.clock.Now()

	summary := newPollSummary(platform)
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for _, svc := range p.catalog.ForPlatform(platform) {
		fetcher, ok := p.fetchers.Lookup(svc.Key)
		if !ok {
			log.Debugw("No fetcher registered, skipping", "service", svc.Key)
			summary.Skipped = append(summary.Skipped, svc.Key)
			continue
		}

		svc := svc
		g.Go(func() error {
			result, err := p.Poll(ctx, svc, fetcher)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed[svc.Key] = err
			} else {
				summary.Results[svc.Key] = result
			}
			return nil
		})
	}
	_ = g.Wait()

	elapsed := p.clock.Now().Sub(start)
	p.metrics.PollDuration.WithLabelValues(platform).Observe(elapsed.Seconds())
	log.Infow("Finished polling "+platform,
		"polled", len(summary.Results),
		"changed", len(summary.Changed()),
		"failed", len(summary.Failed),
		"skipped", len(summary.Skipped),
		"elapsed_msecs", int(elapsed.Milliseconds()),
	)
	return summary, nil
}

// PollAll polls the platforms one after another, in catalog order.
func (p *Poller) PollAll(ctx context.Context) ([]*PollSummary, error) {
	var summaries []*PollSummary
	for _, platform := range p.catalog.Platforms() {
		summary, err := p.PollPlatform(ctx, platform.Name)
		if err != nil {
			return summaries, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
