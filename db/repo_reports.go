package db

import (
	"Gin_postgres_redis_loan_tracker/models"
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type CountRow struct {
	Label string `json:"label"`
	Total int64  `json:"total"`
}

func (r *Repo) countBy(ctx context.Context, model any, col string) ([]CountRow, error) {
	out := make([]CountRow, 0)
	q := quote(r.DB, col)
	err := r.DB.WithContext(ctx).Model(model).
		Select(q + " AS label, COUNT(*) AS total").
		Group(q).
		Order("total DESC").
		Scan(&out).Error
	return out, err
}

type EquipmentStatusReport struct {
	Total          int64      `json:"total"`
	ByAvailability []CountRow `json:"by_availability"`
	ByCondition    []CountRow `json:"by_condition"`
}

func (r *Repo) EquipmentStatusReport(ctx context.Context) (*EquipmentStatusReport, error) {
	var rep EquipmentStatusReport
	if err := r.DB.WithContext(ctx).Model(&models.Equipment{}).Count(&rep.Total).Error; err != nil {
		return nil, err
	}
	var err error
	if rep.ByAvailability, err = r.countBy(ctx, &models.Equipment{}, "availability_status"); err != nil {
		return nil, err
	}
	if rep.ByCondition, err = r.countBy(ctx, &models.Equipment{}, "condition"); err != nil {
		return nil, err
	}
	return &rep, nil
}

type DailyCount struct {
	Day   time.Time `json:"day"`
	Total int64     `json:"total"`
}

type LoanActivityReport struct {
	ByStatus  []CountRow   `json:"by_status"`
	Overdue   int64        `json:"overdue"`
	Checkouts []DailyCount `json:"checkouts"`
	Since     time.Time    `json:"since"`
}

// LoanActivityReport 各状态数量、逾期数、since 之后每天的借出数
func (r *Repo) LoanActivityReport(ctx context.Context, today, since time.Time) (*LoanActivityReport, error) {
	rep := LoanActivityReport{Since: since, Checkouts: make([]DailyCount, 0)}
	var err error
	if rep.ByStatus, err = r.countBy(ctx, &models.Loan{}, "status"); err != nil {
		return nil, err
	}
	if err := r.DB.WithContext(ctx).Model(&models.Loan{}).
		Where("status = ? AND date_due < ?", models.LoanBorrowed, today).
		Count(&rep.Overdue).Error; err != nil {
		return nil, err
	}
	if err := r.DB.WithContext(ctx).Model(&models.Loan{}).
		Select("date_borrowed AS day, COUNT(*) AS total").
		Where("date_borrowed >= ?", since).
		Group("date_borrowed").
		Order("date_borrowed").
		Scan(&rep.Checkouts).Error; err != nil {
		return nil, err
	}
	return &rep, nil
}

type DamageAnalysisReport struct {
	ByType           []CountRow      `json:"by_type"`
	ByStatus         []CountRow      `json:"by_status"`
	RepairTotal      decimal.Decimal `json:"repair_total"`
	ReplacementTotal decimal.Decimal `json:"replacement_total"`
}

func (r *Repo) DamageAnalysisReport(ctx context.Context) (*DamageAnalysisReport, error) {
	var rep DamageAnalysisReport
	var err error
	if rep.ByType, err = r.countBy(ctx, &models.DamageLog{}, "damage_type"); err != nil {
		return nil, err
	}
	if rep.ByStatus, err = r.countBy(ctx, &models.DamageLog{}, "status"); err != nil {
		return nil, err
	}
	var sums struct {
		RepairTotal      decimal.Decimal
		ReplacementTotal decimal.Decimal
	}
	if err := r.DB.WithContext(ctx).Model(&models.DamageLog{}).
		Select("COALESCE(SUM(repair_cost), 0) AS repair_total, COALESCE(SUM(replacement_cost), 0) AS replacement_total").
		Scan(&sums).Error; err != nil {
		return nil, err
	}
	rep.RepairTotal, rep.ReplacementTotal = sums.RepairTotal, sums.ReplacementTotal
	return &rep, nil
}

type StudentActivityRow struct {
	StudentID   string `json:"student_id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	TotalLoans  int64  `json:"total_loans"`
	ActiveLoans int64  `json:"active_loans"`
}

func (r *Repo) StudentActivityReport(ctx context.Context, limit int) ([]StudentActivityRow, error) {
	out := make([]StudentActivityRow, 0)
	sql := fmt.Sprintf(`
	  SELECT s.id AS student_id, s.first_name, s.last_name, s.email,
	         COUNT(l.id) AS total_loans,
	         SUM(CASE WHEN l.status = ? THEN 1 ELSE 0 END) AS active_loans
	  FROM %s s
	  JOIN %s l ON l.student_id = s.id
	  GROUP BY s.id, s.first_name, s.last_name, s.email
	  ORDER BY total_loans DESC
	  LIMIT ?`, models.StudentTable, models.LoanTable)
	err := r.DB.WithContext(ctx).Raw(sql, models.LoanBorrowed, limit).Scan(&out).Error
	return out, err
}
