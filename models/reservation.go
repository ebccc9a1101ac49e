package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ReservationTable = "reservations"
	DamageLogTable   = "damage_logs"
)

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "Pending"
	ReservationConfirmed ReservationStatus = "Confirmed"
	ReservationCancelled ReservationStatus = "Cancelled"
	ReservationCompleted ReservationStatus = "Completed"
)

func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationPending, ReservationConfirmed, ReservationCancelled, ReservationCompleted:
		return true
	}
	return false
}

// Holds reports whether a reservation in this status blocks the equipment window.
func (s ReservationStatus) Holds() bool {
	return s == ReservationPending || s == ReservationConfirmed
}

// ActiveReservationStatuses are the statuses checked for window overlap.
var ActiveReservationStatuses = []ReservationStatus{ReservationPending, ReservationConfirmed}

type Reservation struct {
	ID          string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	StudentID   string            `gorm:"type:varchar(36);index;not null" json:"student_id"`
	EquipmentID string            `gorm:"type:varchar(36);index;not null" json:"equipment_id"`
	DateFrom    time.Time         `gorm:"type:date;not null" json:"date_from"`
	DateTo      time.Time         `gorm:"type:date;not null" json:"date_to"`
	Status      ReservationStatus `gorm:"size:20;not null;default:'Pending';index" json:"status"`
	Notes       string            `gorm:"type:text" json:"notes"`
	ConfirmedAt *time.Time        `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`

	Student   *Student   `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Equipment *Equipment `gorm:"foreignKey:EquipmentID" json:"equipment,omitempty"`
}

func (Reservation) TableName() string { return ReservationTable }

// Overlaps applies the inclusive interval test against [from, to].
func (r Reservation) Overlaps(from, to time.Time) bool {
	within := func(t time.Time) bool { return !t.Before(r.DateFrom) && !t.After(r.DateTo) }
	if within(from) || within(to) {
		return true
	}
	return !from.After(r.DateFrom) && !to.Before(r.DateTo)
}

type DamageType string

const (
	DamageTypeDamage DamageType = "Damage"
	DamageTypeLost   DamageType = "Lost"
)

func (d DamageType) Valid() bool { return d == DamageTypeDamage || d == DamageTypeLost }

type DamageLogStatus string

const (
	DamageOpen     DamageLogStatus = "Open"
	DamageInRepair DamageLogStatus = "In Repair"
	DamageResolved DamageLogStatus = "Resolved"
)

func (s DamageLogStatus) Valid() bool {
	switch s {
	case DamageOpen, DamageInRepair, DamageResolved:
		return true
	}
	return false
}

type DamageLog struct {
	ID              string              `gorm:"primaryKey;type:varchar(36)" json:"id"`
	EquipmentID     string              `gorm:"type:varchar(36);index;not null" json:"equipment_id"`
	StudentID       string              `gorm:"type:varchar(36);index;not null" json:"student_id"`
	LoanID          *string             `gorm:"type:varchar(36);index" json:"loan_id,omitempty"`
	DamageType      DamageType          `gorm:"size:20;not null" json:"damage_type"`
	Description     string              `gorm:"type:text;not null" json:"description"`
	ReportedBy      string              `gorm:"size:100" json:"reported_by"`
	Status          DamageLogStatus     `gorm:"size:20;not null;default:'Open';index" json:"status"`
	RepairCost      decimal.NullDecimal `gorm:"type:numeric(10,2)" json:"repair_cost"`
	ReplacementCost decimal.NullDecimal `gorm:"type:numeric(10,2)" json:"replacement_cost"`
	ResolvedAt      *time.Time          `json:"resolved_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`

	Student   *Student   `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Equipment *Equipment `gorm:"foreignKey:EquipmentID" json:"equipment,omitempty"`
}

func (DamageLog) TableName() string { return DamageLogTable }
