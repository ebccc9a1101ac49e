package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"Gin_postgres_redis_loan_tracker/db"
	"Gin_postgres_redis_loan_tracker/models"

	"github.com/shopspring/decimal"
)

type DamageStore interface {
	FindStudentByID(ctx context.Context, id string) (*models.Student, error)
	FindEquipmentByID(ctx context.Context, id string) (*models.Equipment, error)
	FindLoanByID(ctx context.Context, id string) (*models.Loan, error)
	CreateDamageLog(ctx context.Context, dl *models.DamageLog, effect db.EquipmentEffect) error
	UpdateDamageLog(ctx context.Context, id string, updates map[string]any) (*models.DamageLog, error)
	FindDamageLogByID(ctx context.Context, id string) (*models.DamageLog, error)
	ListDamageLogs(ctx context.Context, q db.DamageLogQuery) (*db.Page[models.DamageLog], error)
}

// Damage tracks damage and loss reports and applies them to the equipment.
type Damage struct {
	store   DamageStore
	auditor Auditor
	now     func() time.Time
	logger  *slog.Logger
}

func NewDamage(store DamageStore, auditor Auditor, now func() time.Time, logger *slog.Logger) *Damage {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Damage{store: store, auditor: auditor, now: now, logger: logger.With("service", "damage")}
}

type CreateDamageParams struct {
	ActorID         string
	EquipmentID     string
	StudentID       string
	LoanID          string
	DamageType      string
	Description     string
	ReportedBy      string
	RepairCost      *decimal.Decimal
	ReplacementCost *decimal.Decimal
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d.Round(2))
}

func (s *Damage) Create(ctx context.Context, p CreateDamageParams) (*models.DamageLog, error) {
	logger := s.logger.With("operation", "create", "equipment_id", p.EquipmentID)

	kind := models.DamageType(strings.TrimSpace(p.DamageType))
	verr := &ValidationError{}
	if strings.TrimSpace(p.EquipmentID) == "" {
		verr.add("equipment_id", "equipment_id is required")
	}
	if strings.TrimSpace(p.StudentID) == "" {
		verr.add("student_id", "student_id is required")
	}
	if !kind.Valid() {
		verr.add("damage_type", "damage_type must be Damage or Lost")
	}
	if strings.TrimSpace(p.Description) == "" {
		verr.add("description", "description is required")
	}
	if p.RepairCost != nil && p.RepairCost.IsNegative() {
		verr.add("repair_cost", "repair_cost must not be negative")
	}
	if p.ReplacementCost != nil && p.ReplacementCost.IsNegative() {
		verr.add("replacement_cost", "replacement_cost must not be negative")
	}
	if err := verr.errOrNil(); err != nil {
		return nil, err
	}

	equipment, err := s.store.FindEquipmentByID(ctx, p.EquipmentID)
	if err != nil {
		return nil, fromRepo(err, "equipment")
	}
	student, err := s.store.FindStudentByID(ctx, p.StudentID)
	if err != nil {
		return nil, fromRepo(err, "student")
	}
	var loanID *string
	if id := strings.TrimSpace(p.LoanID); id != "" {
		if _, err := s.store.FindLoanByID(ctx, id); err != nil {
			return nil, fromRepo(err, "loan")
		}
		loanID = &id
	}

	dl := &models.DamageLog{
		EquipmentID:     equipment.ID,
		StudentID:       student.ID,
		LoanID:          loanID,
		DamageType:      kind,
		Description:     p.Description,
		ReportedBy:      p.ReportedBy,
		Status:          models.DamageOpen,
		RepairCost:      nullDecimal(p.RepairCost),
		ReplacementCost: nullDecimal(p.ReplacementCost),
	}

	// Lost 强制设备为 Lost；Damage 只改成色
	effect := db.EquipmentEffect{Condition: models.ConditionDamaged}
	if kind == models.DamageTypeLost {
		effect = db.EquipmentEffect{Availability: models.Lost, Condition: models.ConditionLost}
	}
	if err := s.store.CreateDamageLog(ctx, dl, effect); err != nil {
		return nil, fromRepo(err, "equipment")
	}
	if effect.Availability != "" {
		equipment.AvailabilityStatus = effect.Availability
	}
	equipment.Condition = effect.Condition
	dl.Equipment, dl.Student = equipment, student

	s.auditor.Record(ctx, models.AuditCreate, models.DamageLogTable, dl.ID, map[string]any{
		"equipment_id": dl.EquipmentID,
		"student_id":   dl.StudentID,
		"loan_id":      dl.LoanID,
		"damage_type":  dl.DamageType,
		"actor_id":     p.ActorID,
	})
	logger.Info("damage log created", "damage_log_id", dl.ID, "damage_type", kind)
	return dl, nil
}

type UpdateDamageParams struct {
	ActorID         string
	ID              string
	Status          *string
	Description     *string
	RepairCost      *decimal.Decimal
	ReplacementCost *decimal.Decimal
}

// Update accepts any status order; reaching Resolved stamps resolved_at once.
func (s *Damage) Update(ctx context.Context, p UpdateDamageParams) (*models.DamageLog, error) {
	current, err := s.store.FindDamageLogByID(ctx, p.ID)
	if err != nil {
		return nil, fromRepo(err, "damage log")
	}

	updates := map[string]any{}
	verr := &ValidationError{}
	if p.Status != nil {
		st := models.DamageLogStatus(strings.TrimSpace(*p.Status))
		if !st.Valid() {
			verr.add("status", "status must be one of Open, In Repair, Resolved")
		} else {
			updates["status"] = st
			if st == models.DamageResolved && current.ResolvedAt == nil {
				updates["resolved_at"] = s.now().UTC()
			}
		}
	}
	if p.Description != nil {
		updates["description"] = *p.Description
	}
	if p.RepairCost != nil {
		if p.RepairCost.IsNegative() {
			verr.add("repair_cost", "repair_cost must not be negative")
		}
		updates["repair_cost"] = nullDecimal(p.RepairCost)
	}
	if p.ReplacementCost != nil {
		if p.ReplacementCost.IsNegative() {
			verr.add("replacement_cost", "replacement_cost must not be negative")
		}
		updates["replacement_cost"] = nullDecimal(p.ReplacementCost)
	}
	if err := verr.errOrNil(); err != nil {
		return nil, err
	}

	dl, err := s.store.UpdateDamageLog(ctx, p.ID, updates)
	if err != nil {
		return nil, fromRepo(err, "damage log")
	}
	details := map[string]any{"actor_id": p.ActorID}
	for k, v := range updates {
		details[k] = v
	}
	s.auditor.Record(ctx, models.AuditUpdate, models.DamageLogTable, dl.ID, details)
	return dl, nil
}

func (s *Damage) Get(ctx context.Context, id string) (*models.DamageLog, error) {
	dl, err := s.store.FindDamageLogByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "damage log")
	}
	return dl, nil
}

func (s *Damage) List(ctx context.Context, q db.DamageLogQuery) (*db.Page[models.DamageLog], error) {
	return s.store.ListDamageLogs(ctx, q)
}
