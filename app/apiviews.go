package app

import (
	"database/sql"
	"time"

	"github.com/fiffu/versionwatch/lib/catalog"
	"github.com/fiffu/versionwatch/lib/models"
	"github.com/fiffu/versionwatch/lib/notifier"
	"github.com/fiffu/versionwatch/lib/poller"
)

type UserView struct {
	ID       uint   `json:"id"`
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
}

func (view UserView) From(entity *models.User) UserView {
	return UserView{ID: entity.ID, Email: entity.Email, IsActive: entity.IsActive}
}

type SubscriptionView struct {
	ID         uint    `json:"id"`
	UserID     uint    `json:"user_id"`
	ServiceKey string  `json:"service_key"`
	CreatedAt  *string `json:"created_at"`
	DisabledAt *string `json:"disabled_at"`
}

func (view SubscriptionView) From(entity *models.Subscription) SubscriptionView {
	return SubscriptionView{
		ID:         entity.ID,
		UserID:     entity.UserID,
		ServiceKey: entity.ServiceKey,
		CreatedAt:  isoformat(sql.NullTime{Time: entity.CreatedAt, Valid: true}),
		DisabledAt: isoformat(entity.DisabledAt),
	}
}

type ServiceView struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Platform string `json:"platform"`
	Public   bool   `json:"public"`
}

func (view ServiceView) From(entity *catalog.Service) ServiceView {
	return ServiceView{
		Key:      entity.Key,
		Label:    entity.Label,
		Platform: entity.Platform.Name,
		Public:   entity.Public,
	}
}

type VersionView struct {
	ID           string  `json:"id"`
	Label        string  `json:"label"`
	CreatedAt    *string `json:"created_at"`
	ReleasedOn   *string `json:"released_on"`
	DeprecatedAt *string `json:"deprecated_at"`
}

func (view VersionView) From(entity *models.Version) VersionView {
	return VersionView{
		ID:           entity.ID,
		Label:        entity.VersionLabel,
		CreatedAt:    isoformat(sql.NullTime{Time: entity.CreatedAt, Valid: true}),
		ReleasedOn:   isoformat(entity.ReleasedOn),
		DeprecatedAt: isoformat(entity.DeprecatedAt),
	}
}

type PollSummaryView struct {
	Platform string              `json:"platform"`
	Changes  map[string][]string `json:"changes"`
	Failed   map[string]string   `json:"failed"`
	Skipped  []string            `json:"skipped"`
}

func (view PollSummaryView) From(entity *poller.PollSummary) PollSummaryView {
	out := PollSummaryView{
		Platform: entity.Platform,
		Changes:  make(map[string][]string),
		Failed:   make(map[string]string),
		Skipped:  entity.Skipped,
	}
	for _, r := range entity.Changed() {
		var lines []string
		for _, l := range r.Added {
			lines = append(lines, "+"+l)
		}
		for _, l := range r.Deprecated {
			lines = append(lines, "-"+l)
		}
		out.Changes[r.Service.Key] = lines
	}
	for key, err := range entity.Failed {
		out.Failed[key] = err.Error()
	}
	return out
}

type BatchSummaryView struct {
	Users  int             `json:"users"`
	Sent   []string        `json:"sent"`
	Failed map[uint]string `json:"failed"`
}

func (view BatchSummaryView) From(entity *notifier.BatchSummary) BatchSummaryView {
	out := BatchSummaryView{Users: entity.Users, Sent: entity.Sent, Failed: make(map[uint]string)}
	for id, err := range entity.Failed {
		out.Failed[id] = err.Error()
	}
	return out
}

type Fromable[Entity any, Repr any] interface {
	From(Entity) Repr
}

func FromMany[T any, U Fromable[*T, U]](elems []T) []U {
	out := make([]U, len(elems))
	for i := range elems {
		var u U
		out[i] = u.From(&elems[i])
	}
	return out
}

func isoformat(t sql.NullTime) *string {
	if !t.Valid {
		return nil
	}
	s := t.Time.UTC().Format(time.RFC3339)
	return &s
}
