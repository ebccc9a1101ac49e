package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/template"
	"time"
	"unicode/utf8"

	"Gin_postgres_redis_loan_tracker/models"
)

var errNoRecipient = errors.New("recipient email is empty")

// LogStore persists one EmailLog per delivery attempt.
type LogStore interface {
	CreateEmailLog(ctx context.Context, l *models.EmailLog) error
}

// Dispatcher formats loan messages, sends them synchronously and records the
// outcome. Send failures are reported as false and never returned as errors.
type Dispatcher struct {
	mailer Mailer
	logs   LogStore
	now    func() time.Time
	logger *slog.Logger
}

func NewDispatcher(mailer Mailer, logs LogStore, now func() time.Time, logger *slog.Logger) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{mailer: mailer, logs: logs, now: now, logger: logger}
}

func (d *Dispatcher) CheckoutConfirmation(ctx context.Context, n LoanNotice) bool {
	subject := fmt.Sprintf("Equipment Checkout Confirmation - %s", n.EquipmentName)
	return d.dispatch(ctx, n, models.EmailCheckout, subject, checkoutTmpl, n)
}

func (d *Dispatcher) OverdueReminder(ctx context.Context, n OverdueNotice) bool {
	subject := fmt.Sprintf("OVERDUE NOTICE - Please Return %s", n.EquipmentName)
	return d.dispatch(ctx, n.LoanNotice, models.EmailOverdue, subject, overdueTmpl, n)
}

func (d *Dispatcher) ReturnConfirmation(ctx context.Context, n ReturnNotice) bool {
	subject := fmt.Sprintf("Equipment Return Confirmed - %s", n.EquipmentName)
	return d.dispatch(ctx, n.LoanNotice, models.EmailReturn, subject, returnTmpl, n)
}

func (d *Dispatcher) dispatch(ctx context.Context, n LoanNotice, kind models.EmailType, subject string, tmpl *template.Template, data any) bool {
	logger := d.logger.With("loan_id", n.LoanID, "email_type", kind)

	var err error
	switch body, rerr := render(tmpl, data); {
	case n.StudentEmail == "":
		err = errNoRecipient
	case rerr != nil:
		err = fmt.Errorf("render %s: %w", kind, rerr)
	default:
		err = d.mailer.Send(ctx, n.StudentEmail, subject, body)
	}

	entry := &models.EmailLog{
		LoanID:         n.LoanID,
		RecipientEmail: n.StudentEmail,
		EmailType:      kind,
		Status:         models.EmailSent,
		SentAt:         d.now().UTC(),
	}
	if err != nil {
		entry.Status = models.EmailFailed
		entry.Error = truncate(err.Error(), 255)
		logger.Warn("email delivery failed", "to", n.StudentEmail, "error", err)
	}
	if lerr := d.logs.CreateEmailLog(ctx, entry); lerr != nil {
		logger.Error("write email log", "error", lerr)
	}
	return err == nil
}

// truncate caps s at n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
