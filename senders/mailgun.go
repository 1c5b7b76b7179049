package senders

import (
	"context"
	"time"

	"github.com/fiffu/versionwatch/senders/email"
	"github.com/juju/errors"
	"github.com/mailgun/mailgun-go/v4"
)

type mailgunSender struct {
	base
}

func (e *mailgunSender) Send(ctx context.Context, f email.Format, to []string) (Receipt, error) {
	html, text, err := e.renderer.Render(f)
	if err != nil {
		return Receipt{}, err
	}

	mg := mailgun.NewMailgun(e.cfg.Mailgun.Domain, e.cfg.Mailgun.APIKey)
	if e.cfg.Mailgun.EU {
		mg.SetAPIBase(mailgun.APIBaseEU)
	}
	mg.Client().Transport = e.transport

	message := mg.NewMessage(e.cfg.Email.From, f.Subject(), text, to...)
	// SetHtml adds the html alternative next to the text part.
	message.SetHtml(html)
	message.AddTag(f.Key())

	timeout := time.Duration(e.cfg.Mailgun.TimeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, id, err := mg.Send(ctx, message)
	if err != nil {
		return Receipt{}, errors.Annotatef(err, "mailgun send %s", f.Key())
	}
	return Receipt{Accepted: id != "", MessageID: id}, nil
}
