// internal/channel/email_smtp.go
package channel

import (
	"context"

	mail "gopkg.in/mail.v2"

	"notification-service/internal/common/errors"
	"notification-service/internal/models"
)

// SMTPEmailAdapter delivers EMAIL notifications through an SMTP relay.
// A nil dialer means the transport was never configured; the adapter still
// registers so the failure is recorded per-delivery instead of at startup.
type SMTPEmailAdapter struct {
	dialer *mail.Dialer
	from   string
}

func NewSMTPEmailAdapter(host string, port int, username, password, from string) *SMTPEmailAdapter {
	if host == "" || username == "" || password == "" {
		return &SMTPEmailAdapter{}
	}
	return &SMTPEmailAdapter{
		dialer: mail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// NewUnconfiguredEmailAdapter returns an email adapter with no transport.
func NewUnconfiguredEmailAdapter() *SMTPEmailAdapter {
	return &SMTPEmailAdapter{}
}

func (a *SMTPEmailAdapter) Send(ctx context.Context, n *models.Notification) error {
	if a.dialer == nil {
		return errors.NewChannelUnconfiguredError("email")
	}
	if err := ctx.Err(); err != nil {
		return errors.NewEmailDeliveryError(err)
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", a.from)
	msg.SetHeader("To", n.To)
	msg.SetHeader("Subject", n.Subject)
	msg.SetBody("text/plain", n.Message)

	if err := a.dialer.DialAndSend(msg); err != nil {
		return errors.NewEmailDeliveryError(err)
	}
	return nil
}
