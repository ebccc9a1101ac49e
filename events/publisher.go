// Package events publishes loan lifecycle events to RabbitMQ. Publishing is
// best-effort: callers log failures and carry on.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
)

const (
	LoanCheckedOut = "loan.checked_out"
	LoanReturned   = "loan.returned"
	LoanRenewed    = "loan.renewed"
)

type LoanEvent struct {
	Type         string           `json:"type"`
	LoanID       string           `json:"loan_id"`
	StudentID    string           `json:"student_id"`
	EquipmentID  string           `json:"equipment_id"`
	DateDue      string           `json:"date_due"`
	DateReturned string           `json:"date_returned,omitempty"`
	DamageStatus string           `json:"damage_status,omitempty"`
	TotalFine    *decimal.Decimal `json:"total_fine,omitempty"`
	ActorID      string           `json:"actor_id,omitempty"`
	OccurredAt   time.Time        `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev LoanEvent) error
}

// New returns an AMQP publisher, or a no-op one when url is empty.
func New(url, queue string, logger *slog.Logger) Publisher {
	if url == "" {
		return Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPPublisher{url: url, queue: queue, logger: logger}
}

type Nop struct{}

func (Nop) Publish(context.Context, LoanEvent) error { return nil }

// AMQPPublisher dials per publish. Loan events are low volume.
type AMQPPublisher struct {
	url    string
	queue  string
	logger *slog.Logger
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev LoanEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// durable，broker 重启后消息还在
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.Type, err)
	}

	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         ev.Type,
		Timestamp:    ev.OccurredAt,
		Body:         body,
	}); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	p.logger.Debug("loan event published", "type", ev.Type, "loan_id", ev.LoanID)
	return nil
}
