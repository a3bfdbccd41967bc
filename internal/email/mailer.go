package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/config"
)

// Mailer delivers one-time codes to users.
type Mailer interface {
	SendOTP(ctx context.Context, to, code string) error
}

// SMTPMailer sends OTP messages over plain SMTP with STARTTLS-capable auth.
type SMTPMailer struct {
	cfg    config.SMTPConfig
	logger *zap.Logger
}

// NewSMTPMailer builds the mailer.
func NewSMTPMailer(cfg config.SMTPConfig, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, logger: logger}
}

// SendOTP delivers the verification code. The OTP row is committed before
// this runs, so a delivery failure leaves the code usable (at-least-once).
func (m *SMTPMailer) SendOTP(_ context.Context, to, code string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	msg := buildOTPMessage(m.cfg.From, to, code)
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
		m.logger.Error("smtp send failed", zap.String("to", to), zap.Error(err))
		return err
	}
	return nil
}

func buildOTPMessage(from, to, code string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	b.WriteString("Subject: Your OTP Code\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString("<h1>Email Verification</h1>")
	fmt.Fprintf(&b, "<p>Your OTP code is: <strong>%s</strong></p>", code)
	b.WriteString("<p>This code will expire in 5 minutes.</p>")
	return []byte(b.String())
}

// LogMailer logs codes instead of sending them. Used when SMTP is not
// configured, which keeps local development working without a mail relay.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer builds the fallback mailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendOTP logs the code at warn level so it is hard to miss in dev output.
func (m *LogMailer) SendOTP(_ context.Context, to, code string) error {
	m.logger.Warn("smtp not configured; logging OTP instead of sending",
		zap.String("to", to),
		zap.String("code", code))
	return nil
}

// NewMailer selects the SMTP mailer when a host is configured, otherwise the
// log-only fallback.
func NewMailer(cfg config.SMTPConfig, logger *zap.Logger) Mailer {
	if cfg.Host == "" {
		return NewLogMailer(logger)
	}
	return NewSMTPMailer(cfg, logger)
}
