// Package lib assembles the tracking components into the operations exposed
// by the HTTP API and the CLI.
package lib

import (
	"context"

	"github.com/fiffu/versionwatch/config"
	"github.com/fiffu/versionwatch/lib/catalog"
	"github.com/fiffu/versionwatch/lib/models"
	"github.com/fiffu/versionwatch/lib/notifier"
	"github.com/fiffu/versionwatch/lib/poller"
	"github.com/fiffu/versionwatch/lib/subscriptions"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const AllPlatforms = "all"

type Service struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *gorm.DB
	catalog *catalog.Catalog
	clock   clock.Clock

	*poller.Poller
	*subscriptions.Index
	*notifier.Batcher
}

func NewService(
	cfg *config.Config,
	log *zap.Logger,
	db *gorm.DB,
	cat *catalog.Catalog,
	clk clock.Clock,
	p *poller.Poller,
	idx *subscriptions.Index,
	b *notifier.Batcher,
) *Service {
	return &Service{cfg, log, db, cat, clk, p, idx, b}
}

func (svc *Service) Catalog() *catalog.Catalog {
	return svc.catalog
}

// PollPlatforms polls one platform, or all of them when given AllPlatforms.
func (svc *Service) PollPlatforms(ctx context.Context, platform string) ([]*poller.PollSummary, error) {
	if platform == AllPlatforms {
		return svc.PollAll(ctx)
	}
	summary, err := svc.PollPlatform(ctx, platform)
	if err != nil {
		return nil, err
	}
	return []*poller.PollSummary{summary}, nil
}

func (svc *Service) FindUser(ctx context.Context, userID uint) (*models.User, error) {
	var users []models.User
	tx := svc.db.WithContext(ctx).Where("id = ?", userID).Limit(1).Find(&users)
	if err := tx.Error; err != nil {
		return nil, errors.Trace(err)
	}
	if len(users) == 0 {
		return nil, errors.NotFoundf("user %d", userID)
	}
	return &users[0], nil
}

// ServiceVersions lists every recorded version of a catalog service,
// deprecated ones included.
func (svc *Service) ServiceVersions(ctx context.Context, serviceKey string) (models.Versions, error) {
	if !svc.catalog.Has(serviceKey) {
		return nil, errors.WithType(errors.NotFoundf("service %q", serviceKey), subscriptions.ErrUnknownService)
	}

	var versions models.Versions
	tx := svc.db.WithContext(ctx).
		Where("service_key = ?", serviceKey).
		Order("created_at desc").
		Order("version_label").
		Find(&versions)
	if err := tx.Error; err != nil {
		return nil, errors.Trace(err)
	}
	return versions, nil
}

// RecordPixel stores one open of a digest.
func (svc *Service) RecordPixel(ctx context.Context, notificationID string, metadata map[string]any) (*models.NotificationPixel, error) {
	var count int64
	tx := svc.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", notificationID).Count(&count)
	if err := tx.Error; err != nil {
		return nil, errors.Trace(err)
	}
	if count == 0 {
		return nil, errors.NotFoundf("notification %q", notificationID)
	}

	pixel := &models.NotificationPixel{
		NotificationID: notificationID,
		CreatedAt:      svc.clock.Now().UTC(),
		Metadata:       datatypes.JSONMap(metadata),
	}
	if err := svc.db.WithContext(ctx).Create(pixel).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return pixel, nil
}

// RegisterUser records an active user, or reactivates an existing one with the
// same email.
func (svc *Service) RegisterUser(ctx context.Context, email string) (*models.User, error) {
	if email == "" {
		return nil, errors.NotValidf("empty email")
	}

	user := &models.User{}
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where(models.User{Email: email}).
			Assign(map[string]any{"is_active": true}).
			FirstOrCreate(user)
		return q.Error
	})
	if err != nil {
		return nil, errors.Annotatef(err, "registering %s", email)
	}
	svc.log.Sugar().Infow("Registered user", "user_id", user.ID, "email", email)
	return user, nil
}
