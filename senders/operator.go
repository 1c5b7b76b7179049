package senders

import (
	"context"

	"github.com/fiffu/versionwatch/config"
	"github.com/fiffu/versionwatch/senders/email"
	"go.uber.org/zap"
)

// OperatorAlerter tells the people running versionwatch that something went
// wrong. It never fails the caller.
type OperatorAlerter interface {
	NotifyOperator(ctx context.Context, message string)
}

type emailAlerter struct {
	log    *zap.Logger
	sender Sender
	to     []string
}

func NewOperatorAlerter(cfg *config.Config, log *zap.Logger, sender Sender) OperatorAlerter {
	return &emailAlerter{log, sender, cfg.Email.Operators}
}

func (a *emailAlerter) NotifyOperator(ctx context.Context, message string) {
	if len(a.to) == 0 {
		a.log.Sugar().Warnw("No operators configured, dropping alert", "message", message)
		return
	}

	receipt, err := a.sender.Send(ctx, &email.OperatorAlertFormat{Message: message}, a.to)
	switch {
	case err != nil:
		a.log.Sugar().Errorw("Failed to alert operators", "message", message, "err", err)
	case !receipt.Accepted:
		a.log.Sugar().Errorw("Operator alert was not accepted", "message", message)
	}
}
