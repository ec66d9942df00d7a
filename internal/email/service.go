package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

type Service interface {
	SendCustom(ctx context.Context, to string, subject string, content string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

// NewService returns an SMTP sender, or a no-op sender when no host is
// configured
func NewService(cfg Config) Service {
	if cfg.Host == "" {
		return NopService{}
	}
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpService) SendCustom(ctx context.Context, to string, subject string, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(newMessage(s.from, to, subject, content)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

func newMessage(from, to, subject, content string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", content)
	return m
}

// NopService drops every message
type NopService struct{}

func (NopService) SendCustom(context.Context, string, string, string) error {
	return nil
}
