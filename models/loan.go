package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	LoanTable         = "loans"
	ReturnDetailTable = "return_details"
)

// DateLayout is the wire format of every civil date (due dates, reservation windows).
const DateLayout = "2006-01-02"

type LoanStatus string

const (
	LoanBorrowed LoanStatus = "Borrowed"
	LoanReturned LoanStatus = "Returned"
)

// Loan 借出记录。Student/Equipment 只在显式 Joins 的查询里填充
type Loan struct {
	ID           string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	StudentID    string     `gorm:"type:varchar(36);index;not null" json:"student_id"`
	EquipmentID  string     `gorm:"type:varchar(36);index;not null" json:"equipment_id"`
	DateBorrowed time.Time  `gorm:"type:date;not null" json:"date_borrowed"`
	DateDue      time.Time  `gorm:"type:date;not null;index" json:"date_due"`
	DateReturned *time.Time `gorm:"type:date" json:"date_returned,omitempty"`
	Status       LoanStatus `gorm:"size:20;not null;default:'Borrowed';index" json:"status"`
	CheckedOutBy string     `gorm:"type:varchar(36)" json:"checked_out_by,omitempty"`
	ReturnedBy   *string    `gorm:"type:varchar(36)" json:"returned_by,omitempty"`
	RenewCount   int        `gorm:"not null;default:0" json:"renew_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Student   *Student   `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Equipment *Equipment `gorm:"foreignKey:EquipmentID" json:"equipment,omitempty"`
}

func (Loan) TableName() string { return LoanTable }

func (l Loan) IsOpen() bool { return l.Status == LoanBorrowed }

type DamageStatus string

const (
	DamageNone  DamageStatus = "None"
	DamageMinor DamageStatus = "Minor"
	DamageMajor DamageStatus = "Major"
	DamageLost  DamageStatus = "Lost"
)

func (d DamageStatus) Valid() bool {
	switch d {
	case DamageNone, DamageMinor, DamageMajor, DamageLost:
		return true
	}
	return false
}

// ReturnDetail 归还时的损坏/罚款评估，每个 loan 最多一条
type ReturnDetail struct {
	ID                string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	LoanID            string          `gorm:"type:varchar(36);uniqueIndex;not null" json:"loan_id"`
	DamageStatus      DamageStatus    `gorm:"size:20;not null;default:'None'" json:"damage_status"`
	DamageNotes       string          `gorm:"type:text" json:"damage_notes"`
	ConditionOnReturn Condition       `gorm:"size:20" json:"condition_on_return"`
	DaysLate          int             `gorm:"not null;default:0" json:"days_late"`
	LateFine          decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"late_fine"`
	DamageFine        decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"damage_fine"`
	TotalFine         decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"total_fine"`
	CreatedAt         time.Time       `json:"created_at"`
}

func (ReturnDetail) TableName() string { return ReturnDetailTable }
