// SMTP mailer for password reset links.
//
// Environment:
//   - SMTP_HOST, SMTP_PORT (default: 587)
//   - SMTP_USER, SMTP_PASS: PLAIN auth, skipped when SMTP_USER is empty
//   - SMTP_FROM_EMAIL
//   - SMTP_SECURE: true for implicit TLS, otherwise opportunistic STARTTLS

package client

import (
	"context"
	"fmt"
	"time"

	"github.com/PeraltaFrian/photo-sharing/internal/config"
	"github.com/wneessen/go-mail"
)

type SMTPMailer struct {
	cfg     config.SMTPConfig
	timeout time.Duration
}

func NewSMTPMailer(cfg config.SMTPConfig) (*SMTPMailer, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("SMTP_HOST and SMTP_FROM_EMAIL are required")
	}
	return &SMTPMailer{cfg: cfg, timeout: 15 * time.Second}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg, err := newMessage(m.cfg.From, to, subject, htmlBody)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(m.cfg.Host, m.clientOptions()...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (m *SMTPMailer) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTimeout(m.timeout),
	}
	if m.cfg.Secure {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	return opts
}

func newMessage(from, to, subject, htmlBody string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)
	return msg, nil
}
