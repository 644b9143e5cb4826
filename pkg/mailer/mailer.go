package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/fixersapp/fixers-backend/pkg/config"
	"github.com/fixersapp/fixers-backend/pkg/logger"
)

// Email is a single outbound plain-text message.
type Email struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers transactional email.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTP sends mail through a gomail dialer.
type SMTP struct {
	from   string
	dialer dialer
}

// New returns an SMTP sender, or a logging no-op sender when SMTP is not configured.
func New(cfg config.SMTPConfig, logg *logger.Logger) Sender {
	if !cfg.Enabled() {
		return &logOnly{logg: logg}
	}
	return &SMTP{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *SMTP) Send(ctx context.Context, email Email) error {
	if err := validate(email); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email.To)
	m.SetHeader("Subject", email.Subject)
	m.SetBody("text/plain", email.Body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func validate(email Email) error {
	if strings.TrimSpace(email.To) == "" {
		return errors.New("email recipient required")
	}
	if strings.TrimSpace(email.Subject) == "" {
		return errors.New("email subject required")
	}
	return nil
}

type logOnly struct {
	logg *logger.Logger
}

func (l *logOnly) Send(ctx context.Context, email Email) error {
	if err := validate(email); err != nil {
		return err
	}
	if l.logg != nil {
		ctx = l.logg.WithFields(ctx, map[string]any{"to": email.To, "subject": email.Subject})
		l.logg.Info(ctx, "smtp disabled; email not sent")
	}
	return nil
}
