package db

import (
	"Gin_postgres_redis_loan_tracker/models"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const loanCol = models.LoanTable + "."

// withParties 显式 JOIN 学生与设备，序列化时不再懒加载
func withParties(tx *gorm.DB) *gorm.DB {
	return tx.Joins("Student").Joins("Equipment")
}

type CheckoutInput struct {
	StudentID    string
	EquipmentID  string
	DateBorrowed time.Time
	DateDue      time.Time
	CheckedOutBy string
}

// 借出：原子操作 = 锁住设备 → 校验可借 → 置为 On Loan → 新建 loan
func (r *Repo) CheckoutLoan(ctx context.Context, in CheckoutInput) (*models.Loan, error) {
	var loan *models.Loan
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1) 锁住该设备
		var e models.Equipment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&e, "id = ?", in.EquipmentID).Error; err != nil {
			return err
		}
		// 2) 防并发：状态不是 Available 或存在未归还 loan 都拒绝
		if e.AvailabilityStatus != models.Available {
			return ErrEquipmentUnavailable
		}
		var n int64
		if err := tx.Model(&models.Loan{}).
			Where("equipment_id = ? AND status = ?", e.ID, models.LoanBorrowed).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrEquipmentUnavailable
		}
		// 3) 占用
		if err := tx.Model(&models.Equipment{}).
			Where("id = ?", e.ID).
			Update("availability_status", models.OnLoan).Error; err != nil {
			return err
		}
		// 4) 新建 Loan
		l := &models.Loan{
			ID:           uuid.NewString(),
			StudentID:    in.StudentID,
			EquipmentID:  e.ID,
			DateBorrowed: in.DateBorrowed,
			DateDue:      in.DateDue,
			Status:       models.LoanBorrowed,
			CheckedOutBy: in.CheckedOutBy,
		}
		if err := tx.Create(l).Error; err != nil {
			return err
		}
		e.AvailabilityStatus = models.OnLoan
		l.Equipment = &e
		loan = l
		return nil
	})
	if err != nil {
		// 部分唯一索引兜底的并发冲突
		err = translate(err)
		if errors.Is(err, ErrDuplicate) {
			return nil, ErrEquipmentUnavailable
		}
		return nil, err
	}
	return loan, nil
}

type CloseLoanInput struct {
	LoanID       string
	ReturnedOn   time.Time
	ReturnedBy   string
	Availability models.Availability
	Condition    *models.Condition    // nil = 不改成色
	Detail       *models.ReturnDetail // nil = 简单归还
}

func (in CloseLoanInput) equipmentUpdates() map[string]any {
	u := map[string]any{"availability_status": in.Availability}
	if in.Condition != nil {
		u["condition"] = *in.Condition
	}
	return u
}

// 归还：原子操作 = 锁住 loan → 关闭 → 更新设备（已 Lost 则不动）→（可选）写评估
func (r *Repo) CloseLoan(ctx context.Context, in CloseLoanInput) (*models.Loan, error) {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var l models.Loan
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&l, "id = ?", in.LoanID).Error; err != nil {
			return err
		}
		if l.Status == models.LoanReturned {
			return ErrAlreadyReturned
		}
		loanUpdates := map[string]any{
			"status":        models.LoanReturned,
			"date_returned": in.ReturnedOn,
		}
		if in.ReturnedBy != "" {
			loanUpdates["returned_by"] = in.ReturnedBy
		}
		if err := tx.Model(&models.Loan{}).Where("id = ?", l.ID).Updates(loanUpdates).Error; err != nil {
			return err
		}

		var e models.Equipment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&e, "id = ?", l.EquipmentID).Error; err != nil {
			return err
		}
		// 已挂失的设备归还后仍为 Lost，只能由管理员手动恢复
		if e.AvailabilityStatus != models.Lost {
			if err := tx.Model(&models.Equipment{}).Where("id = ?", e.ID).Updates(in.equipmentUpdates()).Error; err != nil {
				return err
			}
		}

		if in.Detail != nil {
			in.Detail.ID = uuid.NewString()
			in.Detail.LoanID = l.ID
			if err := tx.Create(in.Detail).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return r.FindLoanByID(ctx, in.LoanID)
}

// RenewLoan 延期：到期日之后的窗口不能与有效预约重叠
func (r *Repo) RenewLoan(ctx context.Context, loanID string, newDue time.Time) (*models.Loan, error) {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var l models.Loan
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&l, "id = ?", loanID).Error; err != nil {
			return err
		}
		if l.Status == models.LoanReturned {
			return ErrAlreadyReturned
		}
		active, err := activeReservations(tx, l.EquipmentID, "")
		if err != nil {
			return err
		}
		from := l.DateDue.AddDate(0, 0, 1)
		for _, res := range active {
			if res.Overlaps(from, newDue) {
				return ErrReservationOverlap
			}
		}
		return tx.Model(&models.Loan{}).Where("id = ?", l.ID).Updates(map[string]any{
			"date_due":    newDue,
			"renew_count": gorm.Expr("renew_count + 1"),
		}).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return r.FindLoanByID(ctx, loanID)
}

func (r *Repo) FindLoanByID(ctx context.Context, id string) (*models.Loan, error) {
	var l models.Loan
	if err := r.DB.WithContext(ctx).
		Scopes(withParties).
		Where(loanCol+"id = ?", id).
		First(&l).Error; err != nil {
		return nil, translate(err)
	}
	return &l, nil
}

type LoanQuery struct {
	Q           string // 学生姓名/邮箱或设备名称
	Status      string
	StudentID   string
	EquipmentID string
	OverdueOn   *time.Time // 非空：只看该日之前到期且未归还
	From, To    *time.Time // date_borrowed 范围（含）
	PageParams
}

func (r *Repo) SearchLoans(ctx context.Context, q LoanQuery) (*Page[models.Loan], error) {
	tx := r.DB.WithContext(ctx).Model(&models.Loan{})
	if strings.TrimSpace(q.Q) != "" {
		like := likePattern(q.Q)
		students := r.DB.Model(&models.Student{}).Select("id").
			Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ?", like, like, like)
		equipment := r.DB.Model(&models.Equipment{}).Select("id").
			Where("LOWER(name) LIKE ? OR LOWER(serial_number) LIKE ?", like, like)
		tx = tx.Where(r.DB.Where(loanCol+"student_id IN (?)", students).Or(loanCol+"equipment_id IN (?)", equipment))
	}
	if q.Status != "" {
		tx = tx.Where(loanCol+"status = ?", q.Status)
	}
	if q.StudentID != "" {
		tx = tx.Where(loanCol+"student_id = ?", q.StudentID)
	}
	if q.EquipmentID != "" {
		tx = tx.Where(loanCol+"equipment_id = ?", q.EquipmentID)
	}
	if q.OverdueOn != nil {
		tx = tx.Where(loanCol+"status = ? AND "+loanCol+"date_due < ?", models.LoanBorrowed, *q.OverdueOn)
	}
	if q.From != nil {
		tx = tx.Where(loanCol+"date_borrowed >= ?", *q.From)
	}
	if q.To != nil {
		tx = tx.Where(loanCol+"date_borrowed <= ?", *q.To)
	}
	return paginate[models.Loan](tx, q.PageParams, loanCol+"date_borrowed DESC, "+loanCol+"created_at DESC", withParties)
}

// ListOverdueLoans 未归还且到期日早于 today，按到期日升序
func (r *Repo) ListOverdueLoans(ctx context.Context, today time.Time) ([]models.Loan, error) {
	out := make([]models.Loan, 0)
	err := r.DB.WithContext(ctx).
		Scopes(withParties).
		Where(loanCol+"status = ? AND "+loanCol+"date_due < ?", models.LoanBorrowed, today).
		Order(loanCol + "date_due ASC").
		Find(&out).Error
	return out, err
}

func (r *Repo) FindReturnDetail(ctx context.Context, loanID string) (*models.ReturnDetail, error) {
	var d models.ReturnDetail
	if err := r.DB.WithContext(ctx).First(&d, "loan_id = ?", loanID).Error; err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

// Email logs

func (r *Repo) CreateEmailLog(ctx context.Context, l *models.EmailLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return r.DB.WithContext(ctx).Create(l).Error
}

func (r *Repo) ListEmailLogsByLoan(ctx context.Context, loanID string) ([]models.EmailLog, error) {
	out := make([]models.EmailLog, 0)
	err := r.DB.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("sent_at DESC").
		Find(&out).Error
	return out, err
}

// Audit logs

func (r *Repo) CreateAuditLog(ctx context.Context, l *models.AuditLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return r.DB.WithContext(ctx).Create(l).Error
}

func (r *Repo) ListAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error) {
	out := make([]models.AuditLog, 0)
	err := r.DB.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
