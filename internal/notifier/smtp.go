package notifier

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"careerbook/internal/config"

	"github.com/rs/zerolog"
)

// SMTPMailer delivers mail over plain SMTP with optional STARTTLS/implicit
// TLS. With an empty user it speaks unauthenticated SMTP, which is what a
// local Mailpit relay expects.
type SMTPMailer struct {
	host   string
	port   int
	from   string
	user   string
	pass   string
	useTLS bool
	logger *zerolog.Logger
}

func NewSMTPMailer(cfg config.NotifierConfig, logger *zerolog.Logger) *SMTPMailer {
	return &SMTPMailer{
		host:   strings.TrimSpace(cfg.SMTPHost),
		port:   cfg.SMTPPort,
		from:   strings.TrimSpace(cfg.From),
		user:   strings.TrimSpace(cfg.User),
		pass:   strings.TrimSpace(cfg.Password),
		useTLS: cfg.UseTLS,
		logger: logger,
	}
}

func (s *SMTPMailer) Send(ctx context.Context, to []string, subject, body string) error {
	recipients := make([]string, 0, len(to))
	for _, addr := range to {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	if len(recipients) == 0 {
		return fmt.Errorf("empty recipient list")
	}

	msg := buildMessage(s.from, recipients, subject, body)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	type result struct{ err error }
	done := make(chan result, 1)
	go func() {
		done <- result{err: s.deliver(addr, recipients, msg)}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("smtp send cancelled: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("smtp send failed: %w", r.err)
		}
	}

	s.logger.Debug().Strs("to", recipients).Str("subject", subject).Msg("email sent")
	return nil
}

func (s *SMTPMailer) deliver(addr string, recipients []string, msg []byte) error {
	// No auth, no TLS: local relay.
	if !s.useTLS && s.user == "" {
		return smtp.SendMail(addr, nil, s.from, recipients, msg)
	}

	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.pass, s.host)
	}

	// SendMail negotiates STARTTLS when the server advertises it.
	if err := smtp.SendMail(addr, auth, s.from, recipients, msg); err == nil {
		return nil
	}

	if !s.useTLS {
		return fmt.Errorf("smtp delivery to %s failed", addr)
	}

	// Implicit TLS fallback for servers on 465.
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.host})
	if err != nil {
		return err
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return err
	}
	defer c.Quit()

	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(s.from); err != nil {
		return err
	}
	for _, rcpt := range recipients {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}

func buildMessage(from string, to []string, subject, body string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n", body)
	return buf.Bytes()
}
