package db

import (
	"Gin_postgres_redis_loan_tracker/models"
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// activeReservations 读出设备上仍占用窗口的预约（Pending/Confirmed），exclude 跳过自身
func activeReservations(tx *gorm.DB, equipmentID, exclude string) ([]models.Reservation, error) {
	q := tx.Where("equipment_id = ? AND status IN ?", equipmentID, models.ActiveReservationStatuses)
	if exclude != "" {
		q = q.Where("id <> ?", exclude)
	}
	var out []models.Reservation
	err := q.Find(&out).Error
	return out, err
}

func overlapsAny(active []models.Reservation, from, to time.Time) bool {
	for _, r := range active {
		if r.Overlaps(from, to) {
			return true
		}
	}
	return false
}

// CreateReservation 锁住设备行把同一设备的预约串行化，再做重叠检查
func (r *Repo) CreateReservation(ctx context.Context, res *models.Reservation) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var e models.Equipment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&e, "id = ?", res.EquipmentID).Error; err != nil {
			return err
		}
		active, err := activeReservations(tx, e.ID, "")
		if err != nil {
			return err
		}
		if overlapsAny(active, res.DateFrom, res.DateTo) {
			return ErrReservationOverlap
		}
		if res.ID == "" {
			res.ID = uuid.NewString()
		}
		if res.Status == "" {
			res.Status = models.ReservationPending
		}
		return tx.Create(res).Error
	})
	return translate(err)
}

// UpdateReservation 重新进入 Pending/Confirmed 时要再查一次重叠
func (r *Repo) UpdateReservation(ctx context.Context, id string, updates map[string]any) (*models.Reservation, error) {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur models.Reservation
		if err := tx.First(&cur, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&models.Equipment{}, "id = ?", cur.EquipmentID).Error; err != nil {
			return err
		}
		if next, ok := updates["status"].(models.ReservationStatus); ok && next.Holds() && !cur.Status.Holds() {
			active, err := activeReservations(tx, cur.EquipmentID, cur.ID)
			if err != nil {
				return err
			}
			if overlapsAny(active, cur.DateFrom, cur.DateTo) {
				return ErrReservationOverlap
			}
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&models.Reservation{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return r.FindReservationByID(ctx, id)
}

func (r *Repo) FindReservationByID(ctx context.Context, id string) (*models.Reservation, error) {
	var res models.Reservation
	if err := r.DB.WithContext(ctx).
		Scopes(withParties).
		Where(models.ReservationTable+".id = ?", id).
		First(&res).Error; err != nil {
		return nil, translate(err)
	}
	return &res, nil
}

type ReservationQuery struct {
	Status      string
	StudentID   string
	EquipmentID string
	PageParams
}

func (r *Repo) ListReservations(ctx context.Context, q ReservationQuery) (*Page[models.Reservation], error) {
	col := models.ReservationTable + "."
	tx := r.DB.WithContext(ctx).Model(&models.Reservation{})
	if q.Status != "" {
		tx = tx.Where(col+"status = ?", q.Status)
	}
	if q.StudentID != "" {
		tx = tx.Where(col+"student_id = ?", q.StudentID)
	}
	if q.EquipmentID != "" {
		tx = tx.Where(col+"equipment_id = ?", q.EquipmentID)
	}
	return paginate[models.Reservation](tx, q.PageParams, col+"date_from ASC, "+col+"created_at DESC", withParties)
}

// Damage logs

// EquipmentEffect 损坏记录对设备的影响，零值字段不更新
type EquipmentEffect struct {
	Availability models.Availability
	Condition    models.Condition
}

func (e EquipmentEffect) updates() map[string]any {
	m := map[string]any{}
	if e.Availability != "" {
		m["availability_status"] = e.Availability
	}
	if e.Condition != "" {
		m["condition"] = e.Condition
	}
	return m
}

func (r *Repo) CreateDamageLog(ctx context.Context, dl *models.DamageLog, effect EquipmentEffect) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&models.Equipment{}, "id = ?", dl.EquipmentID).Error; err != nil {
			return err
		}
		if dl.ID == "" {
			dl.ID = uuid.NewString()
		}
		if err := tx.Create(dl).Error; err != nil {
			return err
		}
		if u := effect.updates(); len(u) > 0 {
			return tx.Model(&models.Equipment{}).Where("id = ?", dl.EquipmentID).Updates(u).Error
		}
		return nil
	})
	return translate(err)
}

func (r *Repo) UpdateDamageLog(ctx context.Context, id string, updates map[string]any) (*models.DamageLog, error) {
	if _, err := updateByID[models.DamageLog](ctx, r.DB, id, updates); err != nil {
		return nil, err
	}
	return r.FindDamageLogByID(ctx, id)
}

func (r *Repo) FindDamageLogByID(ctx context.Context, id string) (*models.DamageLog, error) {
	var dl models.DamageLog
	if err := r.DB.WithContext(ctx).
		Scopes(withParties).
		Where(models.DamageLogTable+".id = ?", id).
		First(&dl).Error; err != nil {
		return nil, translate(err)
	}
	return &dl, nil
}

type DamageLogQuery struct {
	EquipmentID string
	StudentID   string
	LoanID      string
	Status      string
	DamageType  string
	PageParams
}

func (r *Repo) ListDamageLogs(ctx context.Context, q DamageLogQuery) (*Page[models.DamageLog], error) {
	col := models.DamageLogTable + "."
	tx := r.DB.WithContext(ctx).Model(&models.DamageLog{})
	if q.EquipmentID != "" {
		tx = tx.Where(col+"equipment_id = ?", q.EquipmentID)
	}
	if q.StudentID != "" {
		tx = tx.Where(col+"student_id = ?", q.StudentID)
	}
	if q.LoanID != "" {
		tx = tx.Where(col+"loan_id = ?", q.LoanID)
	}
	if q.Status != "" {
		tx = tx.Where(col+"status = ?", q.Status)
	}
	if q.DamageType != "" {
		tx = tx.Where(col+"damage_type = ?", q.DamageType)
	}
	return paginate[models.DamageLog](tx, q.PageParams, col+"created_at DESC", withParties)
}
