package email

import (
	"context"
	"fmt"
	"log"
	"net/smtp"

	"tvicl/server/internal/config"
)

// Sender delivers a fully composed message (see Compose).
type Sender interface {
	Send(ctx context.Context, to []string, subject string, rawMessage []byte) error
}

// SMTPSender delivers through the configured SMTP relay.
type SMTPSender struct {
	from string
	auth smtp.Auth
	addr string
}

// NewSMTPSender returns an SMTP sender, or a LoggingSender when no SMTP host is configured.
func NewSMTPSender(cfg *config.Config) Sender {
	if cfg.SmtpHost == "" {
		log.Println("SMTP host not configured, using logging email sender.")
		return &LoggingSender{from: cfg.SmtpFromAddress}
	}

	auth := smtp.PlainAuth("", cfg.SmtpUsername, cfg.SmtpPassword, cfg.SmtpHost)
	addr := fmt.Sprintf("%s:%d", cfg.SmtpHost, cfg.SmtpPort)

	return &SMTPSender{
		from: cfg.SmtpFromAddress,
		auth: auth,
		addr: addr,
	}
}

// Send hands the message to the relay. net/smtp has no context support, so ctx is
// only checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := smtp.SendMail(s.addr, s.auth, s.from, to, rawMessage); err != nil {
		log.Printf("SMTP delivery of %s email to %v failed: %v", KindOf(rawMessage), to, err)
		return fmt.Errorf("smtp error: %w", err)
	}
	log.Printf("%s email sent via SMTP to %v (Subject: %s)", KindOf(rawMessage), to, subject)
	return nil
}

// LoggingSender writes messages to the process log instead of delivering them.
type LoggingSender struct {
	from string
}

func (s *LoggingSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	log.Printf("--- Email (%s) ---", KindOf(rawMessage))
	log.Printf("To: %v", to)
	log.Printf("From: %s", s.from)
	log.Printf("Subject: %s", subject)
	log.Println("--- Raw Message ---")
	log.Println(string(rawMessage))
	log.Println("--- End Email ---")
	return nil
}
