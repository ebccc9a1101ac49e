package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"Gin_postgres_redis_loan_tracker/db"
	"Gin_postgres_redis_loan_tracker/events"
	"Gin_postgres_redis_loan_tracker/models"
	"Gin_postgres_redis_loan_tracker/notify"

	"github.com/shopspring/decimal"
)

// LoanStore is the persistence surface the loan lifecycle needs.
type LoanStore interface {
	FindStudentByID(ctx context.Context, id string) (*models.Student, error)
	FindEquipmentByID(ctx context.Context, id string) (*models.Equipment, error)
	FindLoanByID(ctx context.Context, id string) (*models.Loan, error)
	CheckoutLoan(ctx context.Context, in db.CheckoutInput) (*models.Loan, error)
	CloseLoan(ctx context.Context, in db.CloseLoanInput) (*models.Loan, error)
	RenewLoan(ctx context.Context, loanID string, newDue time.Time) (*models.Loan, error)
	ListOverdueLoans(ctx context.Context, today time.Time) ([]models.Loan, error)
	SearchLoans(ctx context.Context, q db.LoanQuery) (*db.Page[models.Loan], error)
	FindReturnDetail(ctx context.Context, loanID string) (*models.ReturnDetail, error)
	ListEmailLogsByLoan(ctx context.Context, loanID string) ([]models.EmailLog, error)
}

// Notifier sends loan messages; false means the attempt failed and was logged.
type Notifier interface {
	CheckoutConfirmation(ctx context.Context, n notify.LoanNotice) bool
	ReturnConfirmation(ctx context.Context, n notify.ReturnNotice) bool
	OverdueReminder(ctx context.Context, n notify.OverdueNotice) bool
}

// Auditor appends audit entries and never fails the caller.
type Auditor interface {
	Record(ctx context.Context, action models.AuditAction, table, recordID string, details any)
}

type LoanDeps struct {
	Store     LoanStore
	Notifier  Notifier
	Auditor   Auditor
	Events    events.Publisher
	Now       func() time.Time
	DailyFine decimal.Decimal
	Logger    *slog.Logger
}

// Loans owns checkout, return, damage assessment and overdue queries.
type Loans struct {
	store    LoanStore
	notifier Notifier
	auditor  Auditor
	events   events.Publisher
	now      func() time.Time
	rate     decimal.Decimal
	logger   *slog.Logger
}

func NewLoans(d LoanDeps) *Loans {
	s := &Loans{
		store:    d.Store,
		notifier: d.Notifier,
		auditor:  d.Auditor,
		events:   d.Events,
		now:      d.Now,
		rate:     d.DailyFine,
		logger:   d.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.rate.IsZero() {
		s.rate = DefaultDailyFine
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("service", "loans")
	return s
}

func (s *Loans) today() time.Time { return CivilDate(s.now()) }

// DailyFine is the configured per-day late fine.
func (s *Loans) DailyFine() decimal.Decimal { return s.rate }

type CheckoutParams struct {
	ActorID     string
	StudentID   string
	EquipmentID string
	DateDue     string
}

func (s *Loans) Checkout(ctx context.Context, p CheckoutParams) (*models.Loan, error) {
	logger := s.logger.With("operation", "checkout", "student_id", p.StudentID, "equipment_id", p.EquipmentID)
	today := s.today()

	verr := &ValidationError{}
	if strings.TrimSpace(p.StudentID) == "" {
		verr.add("student_id", "student_id is required")
	}
	if strings.TrimSpace(p.EquipmentID) == "" {
		verr.add("equipment_id", "equipment_id is required")
	}
	var due time.Time
	if strings.TrimSpace(p.DateDue) == "" {
		verr.add("date_due", "date_due is required")
	} else if d, err := ParseDate(p.DateDue); err != nil {
		verr.add("date_due", "invalid date format, use YYYY-MM-DD")
	} else if d.Before(today) {
		verr.add("date_due", "date_due must not be before today")
	} else {
		due = d
	}
	if err := verr.errOrNil(); err != nil {
		return nil, err
	}

	student, err := s.store.FindStudentByID(ctx, p.StudentID)
	if err != nil {
		return nil, fromRepo(err, "student")
	}
	equipment, err := s.store.FindEquipmentByID(ctx, p.EquipmentID)
	if err != nil {
		return nil, fromRepo(err, "equipment")
	}
	if equipment.AvailabilityStatus != models.Available {
		return nil, fmt.Errorf("%w: equipment is not available (status: %s)", ErrPrecondition, equipment.AvailabilityStatus)
	}

	loan, err := s.store.CheckoutLoan(ctx, db.CheckoutInput{
		StudentID:    student.ID,
		EquipmentID:  equipment.ID,
		DateBorrowed: today,
		DateDue:      due,
		CheckedOutBy: p.ActorID,
	})
	if err != nil {
		err = fromRepo(err, "equipment")
		logger.Warn("checkout failed", "error_kind", ErrorKind(err), "error", err)
		return nil, err
	}
	loan.Student = student
	if loan.Equipment == nil {
		equipment.AvailabilityStatus = models.OnLoan
		loan.Equipment = equipment
	}

	if !s.notifier.CheckoutConfirmation(ctx, notify.NoticeFor(*loan)) {
		logger.Warn("checkout confirmation not delivered", "loan_id", loan.ID)
	}
	s.auditor.Record(ctx, models.AuditCreate, models.LoanTable, loan.ID, map[string]any{
		"student_id":   loan.StudentID,
		"equipment_id": loan.EquipmentID,
		"date_due":     loan.DateDue.Format(models.DateLayout),
		"actor_id":     p.ActorID,
	})
	s.publish(ctx, events.LoanEvent{
		Type:        events.LoanCheckedOut,
		LoanID:      loan.ID,
		StudentID:   loan.StudentID,
		EquipmentID: loan.EquipmentID,
		DateDue:     loan.DateDue.Format(models.DateLayout),
		ActorID:     p.ActorID,
	})

	logger.Info("loan checked out", "loan_id", loan.ID, "date_due", loan.DateDue.Format(models.DateLayout))
	return loan, nil
}

type ReturnParams struct {
	ActorID string
	LoanID  string
}

// Return closes a loan without an assessment. A second call on the same loan
// fails with ErrPrecondition.
func (s *Loans) Return(ctx context.Context, p ReturnParams) (*models.Loan, error) {
	logger := s.logger.With("operation", "return", "loan_id", p.LoanID)

	loan, err := s.openLoan(ctx, p.LoanID)
	if err != nil {
		return nil, err
	}
	today := s.today()

	closed, err := s.store.CloseLoan(ctx, db.CloseLoanInput{
		LoanID:       loan.ID,
		ReturnedOn:   today,
		ReturnedBy:   p.ActorID,
		Availability: models.Available,
	})
	if err != nil {
		err = fromRepo(err, "loan")
		logger.Warn("return failed", "error_kind", ErrorKind(err), "error", err)
		return nil, err
	}

	if !s.notifier.ReturnConfirmation(ctx, notify.ReturnNotice{LoanNotice: notify.NoticeFor(*closed), DateReturned: today}) {
		logger.Warn("return confirmation not delivered")
	}
	s.auditor.Record(ctx, models.AuditUpdate, models.LoanTable, closed.ID, map[string]any{
		"action":        "return",
		"equipment_id":  closed.EquipmentID,
		"date_returned": today.Format(models.DateLayout),
		"actor_id":      p.ActorID,
	})
	s.publish(ctx, events.LoanEvent{
		Type:         events.LoanReturned,
		LoanID:       closed.ID,
		StudentID:    closed.StudentID,
		EquipmentID:  closed.EquipmentID,
		DateDue:      closed.DateDue.Format(models.DateLayout),
		DateReturned: today.Format(models.DateLayout),
		ActorID:      p.ActorID,
	})

	logger.Info("loan returned")
	return closed, nil
}

type AssessmentParams struct {
	ActorID      string
	LoanID       string
	DamageStatus string
	DamageNotes  string
	NewCondition string
	DamageFine   *decimal.Decimal
}

type DamageAssessment struct {
	DamageStatus models.DamageStatus `json:"damage_status"`
	DamageNotes  string              `json:"damage_notes"`
	NewCondition models.Condition    `json:"new_condition"`
	DaysLate     int                 `json:"days_late"`
	LateFine     decimal.Decimal     `json:"late_fine"`
	DamageFine   decimal.Decimal     `json:"damage_fine"`
	TotalFine    decimal.Decimal     `json:"total_fine"`
}

type AssessmentResult struct {
	Loan       *models.Loan     `json:"loan"`
	Assessment DamageAssessment `json:"damage_assessment"`
}

// ReturnWithAssessment closes a loan, applies the damage outcome to the
// equipment and records late/damage fines. Lost equipment stays Lost.
func (s *Loans) ReturnWithAssessment(ctx context.Context, p AssessmentParams) (*AssessmentResult, error) {
	logger := s.logger.With("operation", "return_with_assessment", "loan_id", p.LoanID)

	status := models.DamageStatus(strings.TrimSpace(p.DamageStatus))
	if status == "" {
		status = models.DamageNone
	}
	requested := models.Condition(strings.TrimSpace(p.NewCondition))
	if requested == "" {
		requested = models.ConditionGood
	}
	damageFine := decimal.Zero
	if p.DamageFine != nil {
		damageFine = p.DamageFine.Round(2)
	}

	verr := &ValidationError{}
	if !status.Valid() {
		verr.add("damage_status", "damage_status must be one of None, Minor, Major, Lost")
	}
	if !requested.Valid() || requested == models.ConditionLost {
		verr.add("new_condition", "new_condition must be one of Excellent, Good, Fair, Poor, Damaged")
	}
	if damageFine.IsNegative() {
		verr.add("damage_fine", "damage_fine must not be negative")
	}
	if err := verr.errOrNil(); err != nil {
		return nil, err
	}

	loan, err := s.openLoan(ctx, p.LoanID)
	if err != nil {
		return nil, err
	}
	today := s.today()
	daysLate := DaysLate(loan.DateDue, today)
	lateFine := LateFine(daysLate, s.rate)

	availability := models.Available
	var applied *models.Condition
	switch status {
	case models.DamageLost:
		c := models.ConditionDamaged
		applied = &c
		availability = models.Lost
	case models.DamageMinor, models.DamageMajor:
		c := requested
		applied = &c
	}
	reported := requested
	if applied != nil {
		reported = *applied
	} else if loan.Equipment != nil {
		reported = loan.Equipment.Condition
	}

	assessment := DamageAssessment{
		DamageStatus: status,
		DamageNotes:  p.DamageNotes,
		NewCondition: reported,
		DaysLate:     daysLate,
		LateFine:     lateFine,
		DamageFine:   damageFine,
		TotalFine:    lateFine.Add(damageFine),
	}

	closed, err := s.store.CloseLoan(ctx, db.CloseLoanInput{
		LoanID:       loan.ID,
		ReturnedOn:   today,
		ReturnedBy:   p.ActorID,
		Availability: availability,
		Condition:    applied,
		Detail: &models.ReturnDetail{
			DamageStatus:      assessment.DamageStatus,
			DamageNotes:       assessment.DamageNotes,
			ConditionOnReturn: assessment.NewCondition,
			DaysLate:          assessment.DaysLate,
			LateFine:          assessment.LateFine,
			DamageFine:        assessment.DamageFine,
			TotalFine:         assessment.TotalFine,
		},
	})
	if err != nil {
		err = fromRepo(err, "loan")
		logger.Warn("return with assessment failed", "error_kind", ErrorKind(err), "error", err)
		return nil, err
	}

	notice := notify.ReturnNotice{
		LoanNotice:   notify.NoticeFor(*closed),
		DateReturned: today,
		Assessment: &notify.Assessment{
			DamageStatus: assessment.DamageStatus,
			DamageNotes:  assessment.DamageNotes,
			NewCondition: assessment.NewCondition,
			DaysLate:     assessment.DaysLate,
			LateFine:     assessment.LateFine,
			DamageFine:   assessment.DamageFine,
			TotalFine:    assessment.TotalFine,
		},
	}
	if !s.notifier.ReturnConfirmation(ctx, notice) {
		logger.Warn("return confirmation not delivered")
	}
	s.auditor.Record(ctx, models.AuditUpdate, models.LoanTable, closed.ID, map[string]any{
		"action":              "return_with_damage",
		"equipment_id":        closed.EquipmentID,
		"date_returned":       today.Format(models.DateLayout),
		"damage_assessment":   assessment,
		"equipment_available": availability,
		"actor_id":            p.ActorID,
	})
	total := assessment.TotalFine
	s.publish(ctx, events.LoanEvent{
		Type:         events.LoanReturned,
		LoanID:       closed.ID,
		StudentID:    closed.StudentID,
		EquipmentID:  closed.EquipmentID,
		DateDue:      closed.DateDue.Format(models.DateLayout),
		DateReturned: today.Format(models.DateLayout),
		DamageStatus: string(status),
		TotalFine:    &total,
		ActorID:      p.ActorID,
	})

	logger.Info("loan returned with assessment", "damage_status", status, "days_late", daysLate, "total_fine", total.StringFixed(2))
	return &AssessmentResult{Loan: closed, Assessment: assessment}, nil
}

type RenewParams struct {
	ActorID string
	LoanID  string
	NewDue  string
}

func (s *Loans) Renew(ctx context.Context, p RenewParams) (*models.Loan, error) {
	logger := s.logger.With("operation", "renew", "loan_id", p.LoanID)

	newDue, err := ParseDate(p.NewDue)
	if err != nil {
		return nil, invalid("date_due", "invalid date format, use YYYY-MM-DD")
	}
	loan, err := s.openLoan(ctx, p.LoanID)
	if err != nil {
		return nil, err
	}
	if newDue.Before(s.today()) || !newDue.After(loan.DateDue) {
		return nil, invalid("date_due", "new due date must be after the current due date and not in the past")
	}

	renewed, err := s.store.RenewLoan(ctx, loan.ID, newDue)
	if err != nil {
		return nil, fromRepo(err, "loan")
	}
	s.auditor.Record(ctx, models.AuditUpdate, models.LoanTable, renewed.ID, map[string]any{
		"action":       "renew",
		"old_date_due": loan.DateDue.Format(models.DateLayout),
		"new_date_due": newDue.Format(models.DateLayout),
		"actor_id":     p.ActorID,
	})
	s.publish(ctx, events.LoanEvent{
		Type:        events.LoanRenewed,
		LoanID:      renewed.ID,
		StudentID:   renewed.StudentID,
		EquipmentID: renewed.EquipmentID,
		DateDue:     newDue.Format(models.DateLayout),
		ActorID:     p.ActorID,
	})
	logger.Info("loan renewed", "date_due", newDue.Format(models.DateLayout))
	return renewed, nil
}

// OverdueLoan is a Borrowed loan past its due date with its current fine.
type OverdueLoan struct {
	models.Loan
	DaysOverdue int             `json:"days_overdue"`
	FineAmount  decimal.Decimal `json:"fine_amount"`
}

// QueryOverdue lists Borrowed loans due before today, oldest due date first.
func (s *Loans) QueryOverdue(ctx context.Context) ([]OverdueLoan, error) {
	today := s.today()
	loans, err := s.store.ListOverdueLoans(ctx, today)
	if err != nil {
		return nil, err
	}
	out := make([]OverdueLoan, 0, len(loans))
	for _, l := range loans {
		days := DaysLate(l.DateDue, today)
		out = append(out, OverdueLoan{Loan: l, DaysOverdue: days, FineAmount: LateFine(days, s.rate)})
	}
	return out, nil
}

func (s *Loans) Get(ctx context.Context, id string) (*models.Loan, error) {
	l, err := s.store.FindLoanByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "loan")
	}
	return l, nil
}

func (s *Loans) Search(ctx context.Context, q db.LoanQuery) (*db.Page[models.Loan], error) {
	return s.store.SearchLoans(ctx, q)
}

func (s *Loans) Active(ctx context.Context, page db.PageParams) (*db.Page[models.Loan], error) {
	return s.store.SearchLoans(ctx, db.LoanQuery{Status: string(models.LoanBorrowed), PageParams: page})
}

func (s *Loans) ReturnDetail(ctx context.Context, loanID string) (*models.ReturnDetail, error) {
	if _, err := s.Get(ctx, loanID); err != nil {
		return nil, err
	}
	d, err := s.store.FindReturnDetail(ctx, loanID)
	if err != nil {
		return nil, fromRepo(err, "return detail")
	}
	return d, nil
}

func (s *Loans) EmailLogs(ctx context.Context, loanID string) ([]models.EmailLog, error) {
	if _, err := s.Get(ctx, loanID); err != nil {
		return nil, err
	}
	return s.store.ListEmailLogsByLoan(ctx, loanID)
}

func (s *Loans) openLoan(ctx context.Context, id string) (*models.Loan, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid("loan_id", "loan_id is required")
	}
	loan, err := s.store.FindLoanByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "loan")
	}
	if !loan.IsOpen() {
		return nil, fmt.Errorf("%w: equipment already returned", ErrPrecondition)
	}
	return loan, nil
}

func (s *Loans) publish(ctx context.Context, ev events.LoanEvent) {
	ev.OccurredAt = s.now().UTC()
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish loan event", "type", ev.Type, "loan_id", ev.LoanID, "error", err)
	}
}
