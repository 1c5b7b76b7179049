package notifier

import (
	"context"
	"fmt"
	"sort"

	"github.com/fiffu/versionwatch/config"
	"github.com/fiffu/versionwatch/lib/catalog"
	"github.com/fiffu/versionwatch/lib/metrics"
	"github.com/fiffu/versionwatch/lib/models"
	"github.com/fiffu/versionwatch/senders"
	"github.com/fiffu/versionwatch/senders/email"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ErrDeliveryFailed = errors.ConstError("delivery failed")
	errNotAccepted    = errors.ConstError("message not accepted")
)

type Dispatcher struct {
	cfg     *config.Config
	db      *gorm.DB
	log     *zap.Logger
	catalog *catalog.Catalog
	sender  senders.Sender
	retry   *RetryPolicy
	metrics *metrics.Metrics
	clock   clock.Clock
}

func NewDispatcher(
	cfg *config.Config,
	log *zap.Logger,
	db *gorm.DB,
	cat *catalog.Catalog,
	sender senders.Sender,
	policy *RetryPolicy,
	m *metrics.Metrics,
	clk clock.Clock,
) *Dispatcher {
	return &Dispatcher{cfg, db, log, cat, sender, policy, m, clk}
}

type digestVersion struct {
	version models.Version
	service catalog.Service
}

// Notify records a digest of the given versions for the user and emails it.
// Versions of services that are not public are left out; if nothing is left,
// no notification is created. When every delivery attempt fails the
// notification stays unsent and the error satisfies ErrDeliveryFailed.
func (d *Dispatcher) Notify(ctx context.Context, user *models.User, versionIDs []string) (*models.Notification, error) {
	if len(versionIDs) == 0 {
		return nil, nil
	}
	log := d.log.Sugar().With("user_id", user.ID)

	var versions models.Versions
	if err := d.db.WithContext(ctx).Where("id IN ?", versionIDs).Find(&versions).Error; err != nil {
		return nil, errors.Annotate(err, "loading versions")
	}

	var picked []digestVersion
	for _, v := range versions {
		svc, ok := d.catalog.Lookup(v.ServiceKey)
		if !ok || !svc.Public {
			continue
		}
		picked = append(picked, digestVersion{v, svc})
	}
	if len(picked) == 0 {
		log.Debugw("Nothing to notify")
		return nil, nil
	}

	notif, err := d.record(ctx, user, picked)
	if err != nil {
		return nil, errors.Annotatef(err, "recording notification for user %d", user.ID)
	}
	log = log.With("notification_id", notif.ID)

	format := d.digest(user, notif, picked)
	var receipt senders.Receipt
	err = d.retry.Do(ctx,
		func() error {
			d.metrics.DeliveryAttempts.Inc()
			r, err := d.sender.Send(ctx, format, []string{user.Email})
			if err != nil {
				return err
			}
			if !r.Accepted {
				return errNotAccepted
			}
			receipt = r
			return nil
		},
		func(err error, attempt int) {
			log.Warnw("Delivery attempt failed", "attempt", attempt, "err", err)
		},
	)
	if err != nil {
		d.metrics.Deliveries.WithLabelValues("failed").Inc()
		log.Errorw("Unresolved notification, giving up delivery", "err", err)
		return nil, errors.WithType(errors.Annotatef(err, "delivering notification %s", notif.ID), ErrDeliveryFailed)
	}

	notif.SentAt.Time = d.clock.Now().UTC()
	notif.SentAt.Valid = true
	if err := d.db.WithContext(ctx).Model(notif).Update("sent_at", notif.SentAt).Error; err != nil {
		d.metrics.Deliveries.WithLabelValues("error").Inc()
		return nil, errors.Annotatef(err, "marking notification %s sent", notif.ID)
	}

	d.metrics.Deliveries.WithLabelValues("sent").Inc()
	log.Infow("Notification sent", "message_id", receipt.MessageID, "items", len(notif.Items))
	return notif, nil
}

func (d *Dispatcher) record(ctx context.Context, user *models.User, picked []digestVersion) (*models.Notification, error) {
	now := d.clock.Now().UTC()
	notif := &models.Notification{UserID: user.ID, CreatedAt: now}

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(notif).Error; err != nil {
			return err
		}
		items := make(models.NotificationItems, len(picked))
		for i, p := range picked {
			items[i] = models.NotificationItem{
				NotificationID: notif.ID,
				VersionID:      p.version.ID,
				Change:         models.ChangeOf(&p.version),
				CreatedAt:      now,
			}
		}
		if err := tx.Omit("Version").Create(&items).Error; err != nil {
			return err
		}
		notif.Items = items
		return nil
	})
	return notif, err
}

func (d *Dispatcher) digest(user *models.User, notif *models.Notification, picked []digestVersion) *email.DigestFormat {
	sort.Slice(picked, func(i, j int) bool {
		x, y := picked[i], picked[j]
		if x.service.Platform.Label != y.service.Platform.Label {
			return x.service.Platform.Label < y.service.Platform.Label
		}
		if x.service.Label != y.service.Label {
			return x.service.Label < y.service.Label
		}
		return x.version.VersionLabel < y.version.VersionLabel
	})

	format := &email.DigestFormat{
		Recipient:        user.Email,
		SubscriptionsURL: fmt.Sprintf("%s/api/users/%d/subscriptions", d.cfg.ServerDNS, user.ID),
		Pixel:            PixelURL(d.cfg, notif.ID),
	}
	for _, p := range picked {
		entry := email.DigestEntry{
			PlatformLabel: p.service.Platform.Label,
			ServiceLabel:  p.service.Label,
			VersionLabel:  p.version.VersionLabel,
		}
		if p.version.IsDeprecated() {
			format.Deprecated = append(format.Deprecated, entry)
		} else {
			format.Added = append(format.Added, entry)
		}
	}
	return format
}

// PixelURL is where the digest's tracking image is served.
func PixelURL(cfg *config.Config, notificationID string) string {
	return fmt.Sprintf("%s/notifications/%s/pixel.gif", cfg.ServerDNS, notificationID)
}
