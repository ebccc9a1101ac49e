package services

import (
	"context"
	"time"

	"Gin_postgres_redis_loan_tracker/db"

	"github.com/shopspring/decimal"
)

const (
	activityWindowDays = 30
	topStudents        = 10
)

type ReportStore interface {
	EquipmentStatusReport(ctx context.Context) (*db.EquipmentStatusReport, error)
	LoanActivityReport(ctx context.Context, today, since time.Time) (*db.LoanActivityReport, error)
	DamageAnalysisReport(ctx context.Context) (*db.DamageAnalysisReport, error)
	StudentActivityReport(ctx context.Context, limit int) ([]db.StudentActivityRow, error)
}

// Reports builds the read-only staff reports.
type Reports struct {
	store ReportStore
	loans *Loans
	now   func() time.Time
}

func NewReports(store ReportStore, loans *Loans, now func() time.Time) *Reports {
	if now == nil {
		now = time.Now
	}
	return &Reports{store: store, loans: loans, now: now}
}

type OverdueReport struct {
	Count     int             `json:"count"`
	TotalFine decimal.Decimal `json:"total_fine"`
	DailyFine decimal.Decimal `json:"daily_fine"`
	Loans     []OverdueLoan   `json:"loans"`
}

func (r *Reports) Overdue(ctx context.Context) (*OverdueReport, error) {
	loans, err := r.loans.QueryOverdue(ctx)
	if err != nil {
		return nil, err
	}
	rep := &OverdueReport{Count: len(loans), TotalFine: decimal.Zero, DailyFine: r.loans.DailyFine(), Loans: loans}
	for _, l := range loans {
		rep.TotalFine = rep.TotalFine.Add(l.FineAmount)
	}
	return rep, nil
}

func (r *Reports) EquipmentStatus(ctx context.Context) (*db.EquipmentStatusReport, error) {
	return r.store.EquipmentStatusReport(ctx)
}

func (r *Reports) LoanActivity(ctx context.Context) (*db.LoanActivityReport, error) {
	today := CivilDate(r.now())
	return r.store.LoanActivityReport(ctx, today, today.AddDate(0, 0, -activityWindowDays))
}

func (r *Reports) DamageAnalysis(ctx context.Context) (*db.DamageAnalysisReport, error) {
	return r.store.DamageAnalysisReport(ctx)
}

func (r *Reports) StudentActivity(ctx context.Context) ([]db.StudentActivityRow, error) {
	return r.store.StudentActivityReport(ctx, topStudents)
}
