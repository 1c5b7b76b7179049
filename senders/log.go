package senders

import (
	"context"

	"github.com/fiffu/versionwatch/senders/email"
	"github.com/google/uuid"
)

// logSender renders messages and writes them to the log instead of sending.
type logSender struct {
	base
}

func (e *logSender) Send(ctx context.Context, f email.Format, to []string) (Receipt, error) {
	_, text, err := e.renderer.Render(f)
	if err != nil {
		return Receipt{}, err
	}

	id := uuid.NewString()
	e.log.Sugar().Infow("Email",
		"message_id", id,
		"template", f.Key(),
		"to", to,
		"subject", f.Subject(),
		"text", text,
	)
	return Receipt{Accepted: true, MessageID: id}, nil
}
