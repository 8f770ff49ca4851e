package notification

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// MailtoPrefix may precede an email target.
const MailtoPrefix = "mailto:"

// SMTPConfig holds outgoing mail server settings.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// Enabled reports whether enough is configured to send mail.
func (c SMTPConfig) Enabled() bool { return c.Host != "" && c.From != "" }

// EmailNotifier sends plain-text mail through an SMTP relay.
type EmailNotifier struct {
	cfg SMTPConfig

	// sendMail is smtp.SendMail; replaced in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier creates an SMTP notifier.
func NewEmailNotifier(cfg SMTPConfig) *EmailNotifier {
	if cfg.Port == "" {
		cfg.Port = "587"
	}
	return &EmailNotifier{cfg: cfg, sendMail: smtp.SendMail}
}

func (e *EmailNotifier) Send(ctx context.Context, msg Message) error {
	to := strings.TrimSpace(strings.TrimPrefix(msg.Target, MailtoPrefix))
	if to == "" || strings.ContainsAny(to, "\r\n") {
		return fmt.Errorf("email: invalid recipient %q", to)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := strings.NewReplacer("\r", " ", "\n", " ").Replace(msg.Subject)
	raw := []byte("From: " + e.cfg.From + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" +
		msg.Body + "\r\n")

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}
	addr := net.JoinHostPort(e.cfg.Host, e.cfg.Port)

	// smtp.SendMail has no context; run it aside so cancellation still
	// returns promptly.
	done := make(chan error, 1)
	go func() { done <- e.sendMail(addr, auth, e.cfg.From, []string{to}, raw) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("email: send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
