// Package mail delivers one-time codes to users.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"
)

// Sender delivers a message to one recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Dialer is the part of gomail.Dialer the SMTP sender uses.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender sends HTML mail through an SMTP relay.
type SMTPSender struct {
	dialer Dialer
	from   string
	log    *slog.Logger
}

func NewSMTPSender(host string, port int, username, password, from string, log *slog.Logger) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
		log:    log,
	}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	s.log.InfoContext(ctx, "mail sent", "to", to, "subject", subject)
	return nil
}

// LogSender writes messages to the log instead of sending them. Used when
// SMTP is not configured.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	s.log.WarnContext(ctx, "smtp not configured, mail not sent", "to", to, "subject", subject, "body", body)
	return nil
}

// OTPMessage renders the verification mail for code.
func OTPMessage(firstName, code string, validFor fmt.Stringer) (subject, body string) {
	name := firstName
	if name == "" {
		name = "there"
	}
	subject = "Your Lecture Notes verification code"
	body = fmt.Sprintf(
		"<p>Hi %s,</p><p>Your verification code is <strong>%s</strong>.</p><p>It expires in %s.</p>",
		name, code, validFor,
	)
	return subject, body
}
