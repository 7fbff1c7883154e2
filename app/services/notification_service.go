// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"github.com/amirphl/homecare-hr/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// ErrInvalidRecipient is returned when a phone number or address cannot be sent to
var ErrInvalidRecipient = errors.New("invalid recipient")

// NotificationService handles sending notifications via SMS and email
type NotificationService interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
	SendEmail(ctx context.Context, to []string, subject, html string) error
}

// NotificationServiceImpl implements NotificationService
type NotificationServiceImpl struct {
	smsService    SMSService
	emailProvider EmailProvider
}

// EmailProvider interface for email sending
type EmailProvider interface {
	SendEmail(ctx context.Context, to []string, subject, html string) error
}

// NewNotificationService creates a new notification service
func NewNotificationService(smsService SMSService, emailProvider EmailProvider) NotificationService {
	return &NotificationServiceImpl{
		smsService:    smsService,
		emailProvider: emailProvider,
	}
}

// SendSMS sends an SMS message to the specified phone number
func (s *NotificationServiceImpl) SendSMS(ctx context.Context, phone, message string) (string, error) {
	if s.smsService == nil {
		return "", fmt.Errorf("SMS provider not configured")
	}

	normalized := NormalizePhone(phone)
	if len(normalized) < 10 {
		return "", fmt.Errorf("%w: phone number %q", ErrInvalidRecipient, phone)
	}

	return s.smsService.SendSMS(ctx, normalized, message)
}

// SendEmail sends an HTML email to the given addresses
func (s *NotificationServiceImpl) SendEmail(ctx context.Context, to []string, subject, html string) error {
	if s.emailProvider == nil {
		return fmt.Errorf("email provider not configured")
	}
	if len(to) == 0 {
		return fmt.Errorf("%w: no addresses", ErrInvalidRecipient)
	}
	for _, addr := range to {
		if _, err := mail.ParseAddress(addr); err != nil {
			return fmt.Errorf("%w: email address %q", ErrInvalidRecipient, addr)
		}
	}

	return s.emailProvider.SendEmail(ctx, to, subject, html)
}

// NormalizePhone keeps the digits of phone and a leading plus sign
func NormalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SMTPEmailProvider delivers mail through an SMTP relay
type SMTPEmailProvider struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPEmailProvider builds a provider from the email configuration
func NewSMTPEmailProvider(cfg config.EmailConfig) EmailProvider {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.UseSSL

	from := cfg.FromEmail
	if cfg.FromName != "" {
		from = (&mail.Address{Name: cfg.FromName, Address: cfg.FromEmail}).String()
	}
	return &SMTPEmailProvider{dialer: d, from: from}
}

func (p *SMTPEmailProvider) SendEmail(ctx context.Context, to []string, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", p.from)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	if err := p.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email via SMTP: %w", err)
	}
	return nil
}

// MockEmailProvider records emails instead of sending them
type MockEmailProvider struct {
	mu   sync.Mutex
	log  logrus.FieldLogger
	sent []MockEmail
	err  error
}

// MockEmail is one recorded email
type MockEmail struct {
	To      []string
	Subject string
	HTML    string
}

func NewMockEmailProvider(log logrus.FieldLogger) *MockEmailProvider {
	return &MockEmailProvider{log: log}
}

// FailWith makes subsequent sends return err
func (p *MockEmailProvider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *MockEmailProvider) SendEmail(ctx context.Context, to []string, subject, html string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, MockEmail{To: append([]string(nil), to...), Subject: subject, HTML: html})
	if p.log != nil {
		p.log.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("Mock email sent")
	}
	return nil
}

// Sent returns the recorded emails
func (p *MockEmailProvider) Sent() []MockEmail {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]MockEmail, len(p.sent))
	copy(out, p.sent)
	return out
}
