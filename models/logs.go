package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	EmailLogTable = "email_logs"
	AuditLogTable = "audit_logs"
)

type EmailType string

const (
	EmailCheckout EmailType = "checkout"
	EmailOverdue  EmailType = "overdue"
	EmailReturn   EmailType = "return"
)

type EmailStatus string

const (
	EmailSent   EmailStatus = "sent"
	EmailFailed EmailStatus = "failed"
)

// EmailLog 每次发送尝试一条，只追加
type EmailLog struct {
	ID             string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	LoanID         string      `gorm:"type:varchar(36);index;not null" json:"loan_id"`
	RecipientEmail string      `gorm:"size:120;not null" json:"recipient_email"`
	EmailType      EmailType   `gorm:"size:50;not null" json:"email_type"`
	Status         EmailStatus `gorm:"size:20;not null" json:"status"`
	Error          string      `gorm:"size:255" json:"error,omitempty"`
	SentAt         time.Time   `gorm:"index" json:"sent_at"`
}

func (EmailLog) TableName() string { return EmailLogTable }

type AuditAction string

const (
	AuditCreate AuditAction = "CREATE"
	AuditUpdate AuditAction = "UPDATE"
	AuditDelete AuditAction = "DELETE"
)

// AuditLog 审计记录，只追加，不修改
type AuditLog struct {
	ID        string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Action    AuditAction    `gorm:"size:20;not null" json:"action"`
	Table     string         `gorm:"column:table_name;size:50;not null" json:"table_name"`
	RecordID  string         `gorm:"size:36" json:"record_id"`
	Details   datatypes.JSON `json:"details"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

func (AuditLog) TableName() string { return AuditLogTable }
