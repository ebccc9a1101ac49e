package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"Gin_postgres_redis_loan_tracker/config"
)

// Mailer is the outbound transport. A nil error means the message was accepted.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NewMailer 未配置 SMTP 时退回开发模式：只打印，不报错
func NewMailer(cfg config.SMTPConfig, logger *slog.Logger) Mailer {
	if !cfg.Enabled() {
		return &LogMailer{logger: logger}
	}
	return &SMTPMailer{conf: cfg}
}

type SMTPMailer struct {
	conf config.SMTPConfig
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fromAddr := m.conf.From
	if fromAddr == "" {
		fromAddr = m.conf.Username
	}
	msg := buildMIMEWithFromName(m.conf.AppName, fromAddr, to, subject, body)

	var auth smtp.Auth
	if m.conf.Username != "" {
		auth = smtp.PlainAuth("", m.conf.Username, m.conf.Password, m.conf.Host)
	}
	addr := m.conf.Host + ":" + m.conf.Port
	if err := smtp.SendMail(addr, auth, fromAddr, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

func buildMIMEWithFromName(fromName, fromAddr, to, subject, body string) string {
	headers := []string{
		fmt.Sprintf("From: %s <%s>", fromName, fromAddr),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
	}
	return strings.Join(headers, "\r\n") + "\r\n\r\n" + strings.ReplaceAll(body, "\n", "\r\n")
}

// LogMailer is the dev-mode transport.
type LogMailer struct {
	logger *slog.Logger
}

func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	logger := m.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("dev mail", "to", to, "subject", subject, "body", body)
	return nil
}
