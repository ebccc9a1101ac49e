package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"Gin_postgres_redis_loan_tracker/events"
	"Gin_postgres_redis_loan_tracker/models"
	"Gin_postgres_redis_loan_tracker/testfixtures"

	"github.com/shopspring/decimal"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type loanFixture struct {
	store    *memStore
	notifier *stubNotifier
	auditor  *stubAuditor
	events   *stubPublisher
	clock    *testfixtures.Clock
	svc      *Loans
}

func newLoanFixture(t *testing.T) *loanFixture {
	t.Helper()
	f := &loanFixture{
		store:    newMemStore(),
		notifier: &stubNotifier{},
		auditor:  &stubAuditor{},
		events:   &stubPublisher{},
		clock:    testfixtures.NewClock(time.Time{}),
	}
	f.store.addStudent("stu-1", "ana@example.edu")
	f.store.addEquipment("eq-1", "Canon EOS R6")
	f.svc = NewLoans(LoanDeps{
		Store:    f.store,
		Notifier: f.notifier,
		Auditor:  f.auditor,
		Events:   f.events,
		Now:      f.clock.NowFunc(),
		Logger:   quietLogger(),
	})
	return f
}

func (f *loanFixture) checkout(t *testing.T, due string) *models.Loan {
	t.Helper()
	loan, err := f.svc.Checkout(context.Background(), CheckoutParams{
		ActorID:     "staff-1",
		StudentID:   "stu-1",
		EquipmentID: "eq-1",
		DateDue:     due,
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	return loan
}

func TestCheckout(t *testing.T) {
	f := newLoanFixture(t)
	loan := f.checkout(t, "2025-01-15")

	if loan.Status != models.LoanBorrowed {
		t.Fatalf("status = %s, want Borrowed", loan.Status)
	}
	if !loan.DateBorrowed.Equal(testfixtures.Date(2025, time.January, 10)) {
		t.Fatalf("date_borrowed = %v", loan.DateBorrowed)
	}
	if got := f.store.equipmentState("eq-1").AvailabilityStatus; got != models.OnLoan {
		t.Fatalf("equipment availability = %s, want On Loan", got)
	}
	if len(f.notifier.checkouts) != 1 || f.notifier.checkouts[0].StudentEmail != "ana@example.edu" {
		t.Fatalf("checkout notices = %+v", f.notifier.checkouts)
	}
	if n := f.auditor.count(models.LoanTable, models.AuditCreate); n != 1 {
		t.Fatalf("audit CREATE count = %d", n)
	}
	if len(f.events.events) != 1 || f.events.events[0].Type != events.LoanCheckedOut {
		t.Fatalf("events = %+v", f.events.events)
	}

	t.Run("second checkout of same equipment", func(t *testing.T) {
		_, err := f.svc.Checkout(context.Background(), CheckoutParams{StudentID: "stu-1", EquipmentID: "eq-1", DateDue: "2025-01-20"})
		if !errors.Is(err, ErrPrecondition) {
			t.Fatalf("err = %v, want ErrPrecondition", err)
		}
	})
}

func TestCheckoutValidation(t *testing.T) {
	f := newLoanFixture(t)
	cases := []struct {
		name  string
		in    CheckoutParams
		field string
	}{
		{"missing student", CheckoutParams{EquipmentID: "eq-1", DateDue: "2025-01-15"}, "student_id"},
		{"missing equipment", CheckoutParams{StudentID: "stu-1", DateDue: "2025-01-15"}, "equipment_id"},
		{"missing due", CheckoutParams{StudentID: "stu-1", EquipmentID: "eq-1"}, "date_due"},
		{"bad date", CheckoutParams{StudentID: "stu-1", EquipmentID: "eq-1", DateDue: "01/15/2025"}, "date_due"},
		{"due in past", CheckoutParams{StudentID: "stu-1", EquipmentID: "eq-1", DateDue: "2025-01-09"}, "date_due"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Checkout(context.Background(), tc.in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if _, ok := verr.FieldErrors[tc.field]; !ok {
				t.Fatalf("field errors = %v, want %s", verr.FieldErrors, tc.field)
			}
		})
	}

	t.Run("due today is allowed", func(t *testing.T) {
		if _, err := f.svc.Checkout(context.Background(), CheckoutParams{StudentID: "stu-1", EquipmentID: "eq-1", DateDue: "2025-01-10"}); err != nil {
			t.Fatalf("Checkout: %v", err)
		}
	})

	t.Run("unknown student", func(t *testing.T) {
		f.store.addEquipment("eq-2", "Tripod")
		_, err := f.svc.Checkout(context.Background(), CheckoutParams{StudentID: "nobody", EquipmentID: "eq-2", DateDue: "2025-01-15"})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestCheckoutNotificationFailureDoesNotFail(t *testing.T) {
	f := newLoanFixture(t)
	f.notifier.fail = true
	loan := f.checkout(t, "2025-01-15")
	if loan.Status != models.LoanBorrowed {
		t.Fatalf("status = %s", loan.Status)
	}
	if got := f.store.equipmentState("eq-1").AvailabilityStatus; got != models.OnLoan {
		t.Fatalf("availability = %s", got)
	}
}

func TestCheckoutEventFailureDoesNotFail(t *testing.T) {
	f := newLoanFixture(t)
	f.events.err = errors.New("broker down")
	f.checkout(t, "2025-01-15")
}

func TestReturn(t *testing.T) {
	f := newLoanFixture(t)
	loan := f.checkout(t, "2025-01-15")
	f.clock.AdvanceDays(2)

	closed, err := f.svc.Return(context.Background(), ReturnParams{ActorID: "staff-1", LoanID: loan.ID})
	if err != nil {
		t.Fatalf("Return: %v", err)
	}
	if closed.Status != models.LoanReturned || closed.DateReturned == nil {
		t.Fatalf("loan = %+v", closed)
	}
	if !closed.DateReturned.Equal(testfixtures.Date(2025, time.January, 12)) {
		t.Fatalf("date_returned = %v", closed.DateReturned)
	}
	if got := f.store.equipmentState("eq-1").AvailabilityStatus; got != models.Available {
		t.Fatalf("availability = %s, want Available", got)
	}
	if len(f.notifier.returns) != 1 || f.notifier.returns[0].Assessment != nil {
		t.Fatalf("return notices = %+v", f.notifier.returns)
	}

	t.Run("second return", func(t *testing.T) {
		_, err := f.svc.Return(context.Background(), ReturnParams{LoanID: loan.ID})
		if !errors.Is(err, ErrPrecondition) {
			t.Fatalf("err = %v, want ErrPrecondition", err)
		}
	})

	t.Run("unknown loan", func(t *testing.T) {
		_, err := f.svc.Return(context.Background(), ReturnParams{LoanID: "missing"})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("equipment can be borrowed again", func(t *testing.T) {
		f.checkout(t, "2025-01-20")
	})
}

func TestReturnKeepsLostEquipment(t *testing.T) {
	returns := map[string]func(f *loanFixture, loanID string) error{
		"plain return": func(f *loanFixture, loanID string) error {
			_, err := f.svc.Return(context.Background(), ReturnParams{LoanID: loanID})
			return err
		},
		"minor assessment": func(f *loanFixture, loanID string) error {
			_, err := f.svc.ReturnWithAssessment(context.Background(), AssessmentParams{
				LoanID:       loanID,
				DamageStatus: "Minor",
				NewCondition: "Fair",
			})
			return err
		},
	}
	for name, doReturn := range returns {
		t.Run(name, func(t *testing.T) {
			f := newLoanFixture(t)
			loan := f.checkout(t, "2025-01-15")
			damage := NewDamage(f.store, f.auditor, f.clock.NowFunc(), quietLogger())
			if _, err := damage.Create(context.Background(), CreateDamageParams{
				EquipmentID: "eq-1",
				StudentID:   "stu-1",
				LoanID:      loan.ID,
				DamageType:  "Lost",
				Description: "left on the bus",
			}); err != nil {
				t.Fatalf("damage Create: %v", err)
			}

			if err := doReturn(f, loan.ID); err != nil {
				t.Fatalf("return: %v", err)
			}
			eq := f.store.equipmentState("eq-1")
			if eq.AvailabilityStatus != models.Lost || eq.Condition != models.ConditionLost {
				t.Fatalf("equipment = %s/%s, want Lost/Lost", eq.AvailabilityStatus, eq.Condition)
			}
			_, err := f.svc.Checkout(context.Background(), CheckoutParams{StudentID: "stu-1", EquipmentID: "eq-1", DateDue: "2025-01-20"})
			if !errors.Is(err, ErrPrecondition) {
				t.Fatalf("checkout of lost equipment: err = %v, want ErrPrecondition", err)
			}
		})
	}
}

func TestReturnWithAssessment(t *testing.T) {
	t.Run("lost ten days late", func(t *testing.T) {
		f := newLoanFixture(t)
		loan := f.checkout(t, "2025-01-15")
		f.clock.Set(time.Date(2025, time.January, 25, 14, 0, 0, 0, time.UTC))

		res, err := f.svc.ReturnWithAssessment(context.Background(), AssessmentParams{
			ActorID:      "staff-1",
			LoanID:       loan.ID,
			DamageStatus: "Lost",
			DamageNotes:  "left on the bus",
		})
		if err != nil {
			t.Fatalf("ReturnWithAssessment: %v", err)
		}
		a := res.Assessment
		if a.DaysLate != 10 || a.LateFine.StringFixed(2) != "50.00" || a.TotalFine.StringFixed(2) != "50.00" {
			t.Fatalf("assessment = %+v", a)
		}
		eq := f.store.equipmentState("eq-1")
		if eq.AvailabilityStatus != models.Lost {
			t.Fatalf("availability = %s, want Lost", eq.AvailabilityStatus)
		}
		detail, err := f.svc.ReturnDetail(context.Background(), loan.ID)
		if err != nil {
			t.Fatalf("ReturnDetail: %v", err)
		}
		if detail.DamageStatus != models.DamageLost || detail.DaysLate != 10 {
			t.Fatalf("detail = %+v", detail)
		}

		_, err = f.svc.Checkout(context.Background(), CheckoutParams{StudentID: "stu-1", EquipmentID: "eq-1", DateDue: "2025-01-30"})
		if !errors.Is(err, ErrPrecondition) {
			t.Fatalf("checkout of lost equipment: err = %v, want ErrPrecondition", err)
		}
	})

	t.Run("minor damage with fine", func(t *testing.T) {
		f := newLoanFixture(t)
		loan := f.checkout(t, "2025-01-15")
		fine := decimal.RequireFromString("12.5")

		res, err := f.svc.ReturnWithAssessment(context.Background(), AssessmentParams{
			LoanID:       loan.ID,
			DamageStatus: "Minor",
			NewCondition: "Fair",
			DamageFine:   &fine,
		})
		if err != nil {
			t.Fatalf("ReturnWithAssessment: %v", err)
		}
		if res.Assessment.DaysLate != 0 || res.Assessment.TotalFine.StringFixed(2) != "12.50" {
			t.Fatalf("assessment = %+v", res.Assessment)
		}
		eq := f.store.equipmentState("eq-1")
		if eq.AvailabilityStatus != models.Available || eq.Condition != models.ConditionFair {
			t.Fatalf("equipment = %+v", eq)
		}
	})

	t.Run("no damage keeps condition", func(t *testing.T) {
		f := newLoanFixture(t)
		loan := f.checkout(t, "2025-01-15")
		res, err := f.svc.ReturnWithAssessment(context.Background(), AssessmentParams{LoanID: loan.ID, NewCondition: "Poor"})
		if err != nil {
			t.Fatalf("ReturnWithAssessment: %v", err)
		}
		if res.Assessment.DamageStatus != models.DamageNone {
			t.Fatalf("damage_status = %s", res.Assessment.DamageStatus)
		}
		if got := f.store.equipmentState("eq-1").Condition; got != models.ConditionGood {
			t.Fatalf("condition = %s, want Good", got)
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		f := newLoanFixture(t)
		loan := f.checkout(t, "2025-01-15")
		neg := decimal.NewFromInt(-1)
		_, err := f.svc.ReturnWithAssessment(context.Background(), AssessmentParams{
			LoanID:       loan.ID,
			DamageStatus: "Broken",
			NewCondition: "Lost",
			DamageFine:   &neg,
		})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("err = %v, want ValidationError", err)
		}
		for _, field := range []string{"damage_status", "new_condition", "damage_fine"} {
			if _, ok := verr.FieldErrors[field]; !ok {
				t.Errorf("missing field error %s in %v", field, verr.FieldErrors)
			}
		}
		if got := f.store.equipmentState("eq-1").AvailabilityStatus; got != models.OnLoan {
			t.Fatalf("availability = %s, want On Loan", got)
		}
	})
}

func TestRenew(t *testing.T) {
	f := newLoanFixture(t)
	loan := f.checkout(t, "2025-01-15")

	renewed, err := f.svc.Renew(context.Background(), RenewParams{LoanID: loan.ID, NewDue: "2025-01-17"})
	if err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if !renewed.DateDue.Equal(testfixtures.Date(2025, time.January, 17)) || renewed.RenewCount != 1 {
		t.Fatalf("renewed = %+v", renewed)
	}

	t.Run("not after current due", func(t *testing.T) {
		_, err := f.svc.Renew(context.Background(), RenewParams{LoanID: loan.ID, NewDue: "2025-01-17"})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("err = %v, want ValidationError", err)
		}
	})

	t.Run("blocked by reservation", func(t *testing.T) {
		r := &models.Reservation{
			StudentID:   "stu-1",
			EquipmentID: "eq-1",
			DateFrom:    testfixtures.Date(2025, time.January, 20),
			DateTo:      testfixtures.Date(2025, time.January, 22),
			Status:      models.ReservationConfirmed,
		}
		if err := f.store.CreateReservation(context.Background(), r); err != nil {
			t.Fatalf("CreateReservation: %v", err)
		}
		_, err := f.svc.Renew(context.Background(), RenewParams{LoanID: loan.ID, NewDue: "2025-01-21"})
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("err = %v, want ErrConflict", err)
		}
	})
}

func TestQueryOverdue(t *testing.T) {
	f := newLoanFixture(t)
	f.store.addEquipment("eq-2", "Zoom H5")
	f.checkout(t, "2025-01-12")
	if _, err := f.svc.Checkout(context.Background(), CheckoutParams{StudentID: "stu-1", EquipmentID: "eq-2", DateDue: "2025-01-20"}); err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	f.clock.Set(time.Date(2025, time.January, 15, 8, 0, 0, 0, time.UTC))
	overdue, err := f.svc.QueryOverdue(context.Background())
	if err != nil {
		t.Fatalf("QueryOverdue: %v", err)
	}
	if len(overdue) != 1 {
		t.Fatalf("overdue = %d loans, want 1", len(overdue))
	}
	if overdue[0].EquipmentID != "eq-1" || overdue[0].DaysOverdue != 3 || overdue[0].FineAmount.StringFixed(2) != "15.00" {
		t.Fatalf("overdue[0] = %+v", overdue[0])
	}

	t.Run("due today is not overdue", func(t *testing.T) {
		f.clock.Set(time.Date(2025, time.January, 12, 23, 0, 0, 0, time.UTC))
		overdue, err := f.svc.QueryOverdue(context.Background())
		if err != nil {
			t.Fatalf("QueryOverdue: %v", err)
		}
		if len(overdue) != 0 {
			t.Fatalf("overdue = %+v", overdue)
		}
	})
}
