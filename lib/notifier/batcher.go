// Package notifier turns version changes into per-user digests and delivers
// them.
package notifier

import (
	"context"
	"sort"

	"github.com/fiffu/versionwatch/lib/catalog"
	"github.com/fiffu/versionwatch/lib/models"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Delta is what one user has not yet been told about one service.
type Delta struct {
	Service    catalog.Service
	Added      []models.Version
	Deprecated []models.Version
}

func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Deprecated) == 0
}

func (d Delta) VersionIDs() []string {
	ids := make([]string, 0, len(d.Added)+len(d.Deprecated))
	for _, v := range d.Added {
		ids = append(ids, v.ID)
	}
	for _, v := range d.Deprecated {
		ids = append(ids, v.ID)
	}
	return ids
}

type BatchSummary struct {
	Users  int
	Sent   []string
	Failed map[uint]error
}

type Batcher struct {
	db         *gorm.DB
	log        *zap.Logger
	catalog    *catalog.Catalog
	ledger     *Ledger
	dispatcher *Dispatcher
	clock      clock.Clock
}

func NewBatcher(log *zap.Logger, db *gorm.DB, cat *catalog.Catalog, ledger *Ledger, dispatcher *Dispatcher, clk clock.Clock) *Batcher {
	return &Batcher{db, log, cat, ledger, dispatcher, clk}
}

type dueSubscription struct {
	UserID     uint
	ServiceKey string
}

// ComputeDue returns, per user, the version changes on followed public
// services that the user has not been told about. Users and services with
// nothing to report are left out.
func (b *Batcher) ComputeDue(ctx context.Context) (map[uint][]Delta, error) {
	db := b.db.WithContext(ctx)
	now := b.clock.Now().UTC()

	var subs []dueSubscription
	tx := db.Model(&models.Subscription{}).
		Scopes(models.ActiveSubscriptions).
		Joins("JOIN users ON users.id = subscriptions.user_id").
		Where("users.is_active = ? AND users.deleted_at IS NULL", true).
		Distinct("subscriptions.user_id", "subscriptions.service_key").
		Order("subscriptions.user_id").
		Scan(&subs)
	if err := tx.Error; err != nil {
		return nil, errors.Annotate(err, "loading active subscriptions")
	}

	due := make(map[uint][]Delta)
	for _, sub := range subs {
		svc, ok := b.catalog.Lookup(sub.ServiceKey)
		if !ok || !svc.Public {
			continue
		}

		delta := Delta{Service: svc}
		tx := db.Scopes(models.Available).
			Where("service_key = ?", svc.Key).
			Where("(released_on IS NULL OR released_on <= ?)", now).
			Where("id NOT IN (?)", b.ledger.Announced(db, sub.UserID)).
			Order("version_label").
			Find(&delta.Added)
		if err := tx.Error; err != nil {
			return nil, errors.Annotatef(err, "computing added versions of %s for user %d", svc.Key, sub.UserID)
		}

		tx = db.Scopes(models.Unsupported).
			Where("service_key = ?", svc.Key).
			Where("id NOT IN (?)", b.ledger.AnnouncedDeprecations(db, sub.UserID)).
			Order("version_label").
			Find(&delta.Deprecated)
		if err := tx.Error; err != nil {
			return nil, errors.Annotatef(err, "computing deprecated versions of %s for user %d", svc.Key, sub.UserID)
		}

		if !delta.Empty() {
			due[sub.UserID] = append(due[sub.UserID], delta)
		}
	}

	for _, deltas := range due {
		sort.Slice(deltas, func(i, j int) bool {
			x, y := deltas[i].Service, deltas[j].Service
			if x.Platform.Label != y.Platform.Label {
				return x.Platform.Label < y.Platform.Label
			}
			return x.Label < y.Label
		})
	}
	return due, nil
}

// RunBatch notifies every user with due changes, in ascending user id. A
// failed delivery is recorded and the batch moves on.
func (b *Batcher) RunBatch(ctx context.Context) (*BatchSummary, error) {
	log := b.log.Sugar()

	due, err := b.ComputeDue(ctx)
	if err != nil {
		return nil, err
	}

	userIDs := make([]uint, 0, len(due))
	for id := range due {
		userIDs = append(userIDs, id)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })

	var users []models.User
	if len(userIDs) > 0 {
		if err := b.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&users).Error; err != nil {
			return nil, errors.Annotate(err, "loading users")
		}
	}
	byID := make(map[uint]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	summary := &BatchSummary{Users: len(userIDs), Failed: make(map[uint]error)}
	for _, id := range userIDs {
		user, ok := byID[id]
		if !ok {
			continue
		}

		var versionIDs []string
		for _, d := range due[id] {
			versionIDs = append(versionIDs, d.VersionIDs()...)
		}

		notif, err := b.dispatcher.Notify(ctx, user, versionIDs)
		if err != nil {
			summary.Failed[id] = err
			continue
		}
		if notif != nil {
			summary.Sent = append(summary.Sent, notif.ID)
		}
	}

	log.Infow("Finished notification batch",
		"users", summary.Users,
		"sent", len(summary.Sent),
		"failed", len(summary.Failed),
	)
	return summary, nil
}
