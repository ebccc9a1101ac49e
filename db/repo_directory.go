package db

import (
	"Gin_postgres_redis_loan_tracker/models"
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Students

func (r *Repo) CreateStudent(ctx context.Context, s *models.Student) error {
	return translate(r.DB.WithContext(ctx).Create(s).Error)
}

func (r *Repo) FindStudentByID(ctx context.Context, id string) (*models.Student, error) {
	var s models.Student
	if err := r.DB.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *Repo) UpdateStudent(ctx context.Context, id string, updates map[string]any) (*models.Student, error) {
	return updateByID[models.Student](ctx, r.DB, id, updates)
}

// 删除学生：有未归还借出时拒绝
func (r *Repo) DeleteStudent(ctx context.Context, id string) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s models.Student
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&s, "id = ?", id).Error; err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&models.Loan{}).
			Where("student_id = ? AND status = ?", id, models.LoanBorrowed).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrHasOpenLoans
		}
		return tx.Delete(&s).Error
	})
	return translate(err)
}

type StudentQuery struct {
	Q         string
	Program   string
	YearLevel *int
	Status    string
	PageParams
}

func (r *Repo) SearchStudents(ctx context.Context, q StudentQuery) (*Page[models.Student], error) {
	tx := r.DB.WithContext(ctx).Model(&models.Student{})
	if strings.TrimSpace(q.Q) != "" {
		like := likePattern(q.Q)
		tx = tx.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ?", like, like, like)
	}
	if q.Program != "" {
		tx = tx.Where("program = ?", q.Program)
	}
	if q.YearLevel != nil {
		tx = tx.Where("year_level = ?", *q.YearLevel)
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	return paginate[models.Student](tx, q.PageParams, "last_name ASC, first_name ASC")
}

func (r *Repo) DistinctPrograms(ctx context.Context) ([]string, error) {
	out := make([]string, 0)
	err := r.DB.WithContext(ctx).Model(&models.Student{}).
		Where("program IS NOT NULL AND program <> ''").
		Distinct().
		Order("program").
		Pluck("program", &out).Error
	return out, err
}

// Equipment

func (r *Repo) CreateEquipment(ctx context.Context, e *models.Equipment) error {
	return translate(r.DB.WithContext(ctx).Create(e).Error)
}

func (r *Repo) FindEquipmentByID(ctx context.Context, id string) (*models.Equipment, error) {
	var e models.Equipment
	if err := r.DB.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

// UpdateEquipment 在行锁内先执行 check（可为 nil），再做部分更新
func (r *Repo) UpdateEquipment(ctx context.Context, id string, updates map[string]any, check func(models.Equipment) error) (*models.Equipment, error) {
	var e models.Equipment
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&e, "id = ?", id).Error; err != nil {
			return err
		}
		if check != nil {
			if err := check(e); err != nil {
				return err
			}
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&models.Equipment{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&e, "id = ?", id).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

// 删除设备：借出中拒绝
func (r *Repo) DeleteEquipment(ctx context.Context, id string) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var e models.Equipment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&e, "id = ?", id).Error; err != nil {
			return err
		}
		if e.AvailabilityStatus == models.OnLoan {
			return ErrHasOpenLoans
		}
		var n int64
		if err := tx.Model(&models.Loan{}).
			Where("equipment_id = ? AND status = ?", id, models.LoanBorrowed).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrHasOpenLoans
		}
		return tx.Delete(&e).Error
	})
	return translate(err)
}

type EquipmentQuery struct {
	Q            string
	Category     string
	Condition    string
	Availability string
	PageParams
}

func (r *Repo) SearchEquipment(ctx context.Context, q EquipmentQuery) (*Page[models.Equipment], error) {
	tx := r.DB.WithContext(ctx).Model(&models.Equipment{})
	if strings.TrimSpace(q.Q) != "" {
		like := likePattern(q.Q)
		tx = tx.Where("LOWER(name) LIKE ? OR LOWER(model) LIKE ? OR LOWER(serial_number) LIKE ?", like, like, like)
	}
	if q.Category != "" {
		tx = tx.Where("category = ?", q.Category)
	}
	if q.Condition != "" {
		tx = tx.Where(clause.Eq{Column: clause.Column{Name: "condition"}, Value: q.Condition})
	}
	if q.Availability != "" {
		tx = tx.Where("availability_status = ?", q.Availability)
	}
	return paginate[models.Equipment](tx, q.PageParams, "name ASC")
}

func (r *Repo) DistinctCategories(ctx context.Context) ([]string, error) {
	out := make([]string, 0)
	err := r.DB.WithContext(ctx).Model(&models.Equipment{}).
		Where("category IS NOT NULL AND category <> ''").
		Distinct().
		Order("category").
		Pluck("category", &out).Error
	return out, err
}

// Staff

func (r *Repo) CreateStaff(ctx context.Context, s *models.Staff) error {
	return translate(r.DB.WithContext(ctx).Create(s).Error)
}

func (r *Repo) ListStaff(ctx context.Context) ([]models.Staff, error) {
	out := make([]models.Staff, 0)
	err := r.DB.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}
