package senders

import (
	"context"
	"fmt"

	"github.com/fiffu/versionwatch/senders/email"
	"github.com/google/uuid"
	"github.com/juju/errors"
	"gopkg.in/gomail.v2"
)

type smtpSender struct {
	base
}

func (e *smtpSender) Send(ctx context.Context, f email.Format, to []string) (Receipt, error) {
	html, text, err := e.renderer.Render(f)
	if err != nil {
		return Receipt{}, err
	}

	id := fmt.Sprintf("<%s@versionwatch>", uuid.NewString())

	m := gomail.NewMessage()
	m.SetHeader("From", e.cfg.Email.From)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", f.Subject())
	m.SetHeader("Message-ID", id)
	m.SetBody("text/plain", text)
	m.AddAlternative("text/html", html)

	// gomail has no context support; give up before dialing if already cancelled.
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	d := gomail.NewDialer(e.cfg.SMTP.Host, e.cfg.SMTP.Port, e.cfg.SMTP.Username, e.cfg.SMTP.Password)
	if err := d.DialAndSend(m); err != nil {
		return Receipt{}, errors.Annotatef(err, "smtp send %s", f.Key())
	}
	return Receipt{Accepted: true, MessageID: id}, nil
}
