// Package poller reconciles the versions a provider currently supports with
// the versions recorded in the database.
package poller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fiffu/versionwatch/config"
	"github.com/fiffu/versionwatch/lib/adapters"
	"github.com/fiffu/versionwatch/lib/catalog"
	"github.com/fiffu/versionwatch/lib/metrics"
	"github.com/fiffu/versionwatch/lib/models"
	"github.com/fiffu/versionwatch/senders"
	"github.com/juju/clock"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const ErrFetchFailed = errors.ConstError("fetch failed")

// PollResult lists the labels whose lifecycle changed in one poll, sorted.
// A reinstated label was deprecated and is supported again; it is also
// reported as added.
type PollResult struct {
	Service    catalog.Service
	Added      []string
	Deprecated []string
	Reinstated []string
}

func (r *PollResult) Changed() bool {
	return len(r.Added) > 0 || len(r.Deprecated) > 0
}

type Poller struct {
	db          *gorm.DB
	log         *zap.Logger
	catalog     *catalog.Catalog
	fetchers    adapters.Registry
	alerter     senders.OperatorAlerter
	metrics     *metrics.Metrics
	clock       clock.Clock
	concurrency int
}

func NewPoller(
	cfg *config.Config,
	log *zap.Logger,
	db *gorm.DB,
	cat *catalog.Catalog,
	fetchers adapters.Registry,
	alerter senders.OperatorAlerter,
	m *metrics.Metrics,
	clk clock.Clock,
) *Poller {
	concurrency := cfg.Poll.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Poller{db, log, cat, fetchers, alerter, m, clk, concurrency}
}

// Poll fetches the supported versions of svc and applies the difference to
// the stored versions in one transaction. A failed or empty fetch leaves the
// stored versions untouched and returns an error satisfying ErrFetchFailed.
func (p *Poller) Poll(ctx context.Context, svc catalog.Service, fetcher adapters.Fetcher) (*PollResult, error) {
	log := p.log.Sugar().With("service", svc.Key, "platform", svc.Platform.Name)
	log.Infof("Polling service %s", svc.Key)

	fetched, err := fetcher.Fetch(ctx)
	if err == nil {
		fetched = normalize(fetched)
		if len(fetched) == 0 {
			err = adapters.ErrNoVersions
		}
	}
	if err != nil {
		p.metrics.PollOutcomes.WithLabelValues(svc.Key, "failed").Inc()
		message := fmt.Sprintf("Error occurred while polling service %s", svc.Key)
		log.Errorw(message, "err", err)
		p.alerter.NotifyOperator(ctx, fmt.Sprintf("%s: %v", message, err))
		return nil, errors.WithType(errors.Annotatef(err, "polling %s", svc.Key), ErrFetchFailed)
	}

	result := &PollResult{Service: svc}
	now := p.clock.Now().UTC()
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return reconcile(tx, svc.Key, set.NewStrings(fetched...), now, result)
	})
	if err != nil {
		p.metrics.PollOutcomes.WithLabelValues(svc.Key, "error").Inc()
		log.Errorw("Failed to store polled versions", "err", err)
		return nil, errors.Annotatef(err, "storing versions of %s", svc.Key)
	}

	p.metrics.PollOutcomes.WithLabelValues(svc.Key, "ok").Inc()
	p.record(svc.Key, "added", result.Added)
	p.record(svc.Key, "deprecated", result.Deprecated)
	p.record(svc.Key, "reinstated", result.Reinstated)

	if len(result.Added) > 0 {
		log.Infow("Added versions", "versions", result.Added, "reinstated", result.Reinstated)
	}
	if len(result.Deprecated) > 0 {
		log.Infow("Deprecated versions", "versions", result.Deprecated)
	}
	return result, nil
}

func (p *Poller) record(serviceKey, change string, labels []string) {
	if len(labels) > 0 {
		p.metrics.VersionChanges.WithLabelValues(serviceKey, change).Add(float64(len(labels)))
	}
}

// reconcile deprecates stored labels that are no longer fetched, reinstates
// deprecated labels that are fetched again and inserts the rest.
func reconcile(tx *gorm.DB, serviceKey string, fetched set.Strings, now time.Time, result *PollResult) error {
	var labels []string
	q := tx.Model(&models.Version{}).
		Scopes(models.Available).
		Where("service_key = ?", serviceKey).
		Pluck("version_label", &labels)
	if err := q.Error; err != nil {
		return err
	}
	current := set.NewStrings(labels...)

	toDeprecate := current.Difference(fetched).SortedValues()
	if len(toDeprecate) > 0 {
		q := tx.Model(&models.Version{}).
			Where("service_key = ? AND version_label IN ?", serviceKey, toDeprecate).
			Update("deprecated_at", now)
		if err := q.Error; err != nil {
			return err
		}
	}

	toAdd := fetched.Difference(current)
	var stale []string
	if !toAdd.IsEmpty() {
		q := tx.Model(&models.Version{}).
			Scopes(models.Unsupported).
			Where("service_key = ? AND version_label IN ?", serviceKey, toAdd.SortedValues()).
			Pluck("version_label", &stale)
		if err := q.Error; err != nil {
			return err
		}
	}
	reinstated := set.NewStrings(stale...)

	if !reinstated.IsEmpty() {
		q := tx.Model(&models.Version{}).
			Where("service_key = ? AND version_label IN ?", serviceKey, reinstated.SortedValues()).
			Update("deprecated_at", nil)
		if err := q.Error; err != nil {
			return err
		}
	}

	fresh := toAdd.Difference(reinstated).SortedValues()
	if len(fresh) > 0 {
		rows := make([]models.Version, len(fresh))
		for i, label := range fresh {
			rows[i] = models.Version{ServiceKey: serviceKey, VersionLabel: label, CreatedAt: now}
		}
		q := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
		if err := q.Error; err != nil {
			return err
		}
	}

	result.Added = toAdd.SortedValues()
	result.Deprecated = toDeprecate
	result.Reinstated = reinstated.SortedValues()
	return nil
}

func normalize(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
