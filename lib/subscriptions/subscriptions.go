// Package subscriptions maintains which users follow which catalog services.
package subscriptions

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

const ErrUnknownService = errors.ConstError("unknown service")

type Index struct {
	db      *gorm.DB
	log     *zap.Logger
	catalog *catalog.Catalog
	clock   clock.Clock
}

func NewIndex(log *zap.Logger, db *gorm.DB, cat *catalog.Catalog, clk clock.Clock) *Index {
	return &Index{db, log, cat, clk}
}

func (idx *Index) checkService(serviceKey string) error {
	if !idx.catalog.Has(serviceKey) {
		return errors.WithType(errors.NotFoundf("service %q", serviceKey), ErrUnknownService)
	}
	return nil
}

// Subscribe returns the user's active subscription to the service, creating
// it if needed. A new subscription is seeded with an initial notification
// covering every version already known, so the user is only told about what
// happens afterwards.
func (idx *Index) Subscribe(ctx context.Context, userID uint, serviceKey string) (*models.Subscription, error) {
	if err := idx.checkService(serviceKey); err != nil {
		return nil, err
	}

	var (
		sub     *models.Subscription
		created bool
	)
	err := idx.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findActive(tx, userID, serviceKey)
		if err != nil {
			return err
		}
		if existing != nil {
			sub = existing
			return nil
		}

		now := idx.clock.Now().UTC()
		sub = &models.Subscription{UserID: userID, ServiceKey: serviceKey, CreatedAt: now}
		if err := tx.Create(sub).Error; err != nil {
			return err
		}
		created = true
		_, err = SeedInitialNotification(tx, userID, serviceKey, now)
		return err
	})
	if err != nil {
		return nil, errors.Annotatef(err, "subscribing user %d to %s", userID, serviceKey)
	}

	if created {
		idx.log.Sugar().Infow("Created subscription", "user_id", userID, "service", serviceKey, "subscription_id", sub.ID)
	}
	return sub, nil
}

// Unsubscribe disables the user's active subscription to the service. It
// returns nil if there was none.
func (idx *Index) Unsubscribe(ctx context.Context, userID uint, serviceKey string) (*models.Subscription, error) {
	if err := idx.checkService(serviceKey); err != nil {
		return nil, err
	}

	var sub *models.Subscription
	err := idx.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findActive(tx, userID, serviceKey)
		if err != nil || existing == nil {
			return err
		}
		existing.DisabledAt.Time = idx.clock.Now().UTC()
		existing.DisabledAt.Valid = true
		sub = existing
		return tx.Model(existing).Update("disabled_at", existing.DisabledAt).Error
	})
	if err != nil {
		return nil, errors.Annotatef(err, "unsubscribing user %d from %s", userID, serviceKey)
	}

	if sub != nil {
		idx.log.Sugar().Infow("Disabled subscription", "user_id", userID, "service", serviceKey, "subscription_id", sub.ID)
	}
	return sub, nil
}

// ActiveServicesFor returns the sorted keys of the services the user follows.
func (idx *Index) ActiveServicesFor(ctx context.Context, userID uint) ([]string, error) {
	var keys []string
	tx := idx.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Scopes(models.ActiveSubscriptions).
		Where("user_id = ?", userID).
		Distinct().
		Pluck("service_key", &keys)
	if err := tx.Error; err != nil {
		return nil, errors.Trace(err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (idx *Index) ListActive(ctx context.Context, userID uint) (models.Subscriptions, error) {
	var subs models.Subscriptions
	tx := idx.db.WithContext(ctx).
		Scopes(models.ActiveSubscriptions).
		Where("user_id = ?", userID).
		Order("service_key").
		Find(&subs)
	if err := tx.Error; err != nil {
		return nil, errors.Trace(err)
	}
	return subs, nil
}

func findActive(tx *gorm.DB, userID uint, serviceKey string) (*models.Subscription, error) {
	var subs models.Subscriptions
	q := tx.Scopes(models.ActiveSubscriptions).
		Where("user_id = ? AND service_key = ?", userID, serviceKey).
		Limit(1).
		Find(&subs)
	if err := q.Error; err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, nil
	}
	return &subs[0], nil
}
