package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/hasanarpat/memento-mori/pkg/config"
	"github.com/hasanarpat/memento-mori/pkg/logger"
)

// Mailer sends transactional storefront email.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, msg OrderConfirmation) error
	SendVerification(ctx context.Context, to, name, link string) error
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer delivers mail through a plain SMTP relay.
type SMTPMailer struct {
	addr string
	from string
	auth smtp.Auth
	send sendFunc
}

// New returns an SMTP mailer when mail is enabled and a logging no-op otherwise.
func New(cfg config.MailConfig, logg *logger.Logger) Mailer {
	if !cfg.Enabled {
		return &LogMailer{logg: logg}
	}
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPMailer{
		addr: fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		from: cfg.From,
		auth: auth,
		send: smtp.SendMail,
	}
}

func (m *SMTPMailer) SendOrderConfirmation(_ context.Context, msg OrderConfirmation) error {
	body, err := renderOrderConfirmation(msg)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Your order %s is confirmed", msg.OrderNumber)
	return m.deliver(msg.To, subject, body)
}

func (m *SMTPMailer) SendVerification(_ context.Context, to, name, link string) error {
	body, err := renderVerification(name, link)
	if err != nil {
		return err
	}
	return m.deliver(to, "Confirm your email", body)
}

func (m *SMTPMailer) deliver(to, subject, body string) error {
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("invalid mail header")
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		m.from, to, subject, body)
	if err := m.send(m.addr, m.auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// LogMailer records what would have been sent. Used when mail is disabled.
type LogMailer struct {
	logg *logger.Logger
}

func (m *LogMailer) SendOrderConfirmation(ctx context.Context, msg OrderConfirmation) error {
	if m.logg != nil {
		m.logg.Info(m.logg.WithFields(ctx, map[string]any{
			"to":           msg.To,
			"order_number": msg.OrderNumber,
		}), "mail disabled; order confirmation skipped")
	}
	return nil
}

func (m *LogMailer) SendVerification(ctx context.Context, to, _, _ string) error {
	if m.logg != nil {
		m.logg.Info(m.logg.WithField(ctx, "to", to), "mail disabled; verification email skipped")
	}
	return nil
}
