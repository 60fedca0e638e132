// Package mail delivers account-confirmation messages. Delivery is a
// fire-and-forget collaborator of the session service: failures are logged
// by the caller, never propagated to the registrant.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

type Sender interface {
	SendConfirmation(ctx context.Context, recipient, token string) error
}

// SMTPSender sends confirmation links over plain SMTP with AUTH PLAIN.
type SMTPSender struct {
	host       string
	port       string
	username   string
	password   string
	from       string
	confirmURL string
}

func NewSMTPSender(host, port, username, password, from, confirmURL string) *SMTPSender {
	return &SMTPSender{
		host:       host,
		port:       port,
		username:   username,
		password:   password,
		from:       from,
		confirmURL: strings.TrimRight(confirmURL, "/"),
	}
}

func (s *SMTPSender) SendConfirmation(ctx context.Context, recipient, token string) error {
	link := fmt.Sprintf("%s/auth/confirm/%s", s.confirmURL, token)
	msg := strings.Join([]string{
		"From: " + s.from,
		"To: " + recipient,
		"Subject: Confirm your email",
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Welcome to the pet registry.",
		"",
		"Confirm your email by opening the link below:",
		link,
		"",
		"If you did not sign up, ignore this message.",
	}, "\r\n")

	done := make(chan error, 1)
	go func() {
		auth := smtp.PlainAuth("", s.username, s.password, s.host)
		done <- smtp.SendMail(s.host+":"+s.port, auth, s.from, []string{recipient}, []byte(msg))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send confirmation mail: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send confirmation mail: %w", ctx.Err())
	}
}

// LogSender is the no-mail-server fallback for local development and tests:
// it only records that a send would have happened.
type LogSender struct {
	logf func(recipient, token string)
}

func NewLogSender(logf func(recipient, token string)) *LogSender {
	return &LogSender{logf: logf}
}

func (s *LogSender) SendConfirmation(_ context.Context, recipient, token string) error {
	if s.logf != nil {
		s.logf(recipient, token)
	}
	return nil
}
