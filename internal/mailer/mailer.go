// Package mailer delivers notification emails over SMTP.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"

	"finwatch/internal/config"
	"finwatch/internal/logger"

	"github.com/jordan-wright/email"
)

// Message is one outgoing plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender sends a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP sender when cfg has SMTP configured and a no-op
// sender otherwise.
func New(cfg *config.Config) Sender {
	if cfg == nil || !cfg.MailEnabled() {
		return Nop{}
	}
	return &SMTPSender{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPSender,
	}
}

// SMTPSender sends email through a single SMTP relay.
type SMTPSender struct {
	host     string
	port     string
	username string
	password string
	from     string
}

// Send delivers msg. The context is only checked before dialing; net/smtp
// has no cancellation hook.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = s.from
	e.To = []string{msg.To}
	e.Subject = msg.Subject
	e.Text = []byte(msg.Body)

	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}
	if err := e.Send(addr, auth); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	logger.Named("mailer").Infow("email sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

// Nop discards every message.
type Nop struct{}

// Send implements Sender.
func (Nop) Send(context.Context, Message) error { return nil }
