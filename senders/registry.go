package senders

import (
	"context"
	"net/http"

	"github.com/fiffu/versionwatch/config"
	"github.com/fiffu/versionwatch/senders/email"
	"github.com/juju/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Receipt is what a backend reports back for one message. A message that was
// not accepted counts as a failed delivery even when no error is returned.
type Receipt struct {
	Accepted  bool
	MessageID string
}

//go:generate go run go.uber.org/mock/mockgen -destination mocks/sender.go -package mocks . Sender,OperatorAlerter

type Sender interface {
	Send(ctx context.Context, f email.Format, to []string) (Receipt, error)
}

type Registry map[string]Sender

func NewSenderRegistry(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config, transport http.RoundTripper, renderer *email.Renderer) Registry {
	base := base{log, cfg, transport, renderer}
	return map[string]Sender{
		"mailgun": &mailgunSender{base},
		"smtp":    &smtpSender{base},
		"log":     &logSender{base},
	}
}

// NewSender picks the backend named by EMAIL_BACKEND.
func NewSender(cfg *config.Config, registry Registry) (Sender, error) {
	sender, ok := registry[cfg.Email.Backend]
	if !ok {
		return nil, errors.NotSupportedf("email backend %q", cfg.Email.Backend)
	}
	return sender, nil
}

type base struct {
	log       *zap.Logger
	cfg       *config.Config
	transport http.RoundTripper
	renderer  *email.Renderer
}
