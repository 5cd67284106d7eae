package ports

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// templates maps a template name to a minimal plain-text body. A richer
// implementation would render html/template files per EmailTemplate; the
// booking lifecycle only needs the four transactional notifications listed
// in internal/statemachine/intents.go.
var templates = map[string]string{
	"booking_confirmation": "Your session is confirmed for %v.",
	"booking_cancelled":    "Your session has been cancelled. Reason: %v",
	"booking_reminder":     "Reminder: your session starts soon, at %v.",
	"session_ended":        "Your session has ended.",
}

// SMTPEmail implements EmailPort by sending through an SMTP relay.
type SMTPEmail struct {
	dialer    *gomail.Dialer
	fromEmail string
	fromName  string
}

func NewSMTPEmail(host string, port int, username, password, fromEmail, fromName string) *SMTPEmail {
	return &SMTPEmail{
		dialer:    gomail.NewDialer(host, port, username, password),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (e *SMTPEmail) Send(ctx context.Context, to string, template string, data map[string]any) error {
	body, ok := templates[template]
	if !ok {
		return fmt.Errorf("smtp email: unknown template %q", template)
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", e.fromEmail, e.fromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Tutoring session update")
	m.SetBody("text/plain", fmt.Sprintf(body, data["start_time"]))

	if err := e.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp email: failed to send: %w", err)
	}
	return nil
}
