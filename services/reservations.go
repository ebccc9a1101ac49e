package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"Gin_postgres_redis_loan_tracker/db"
	"Gin_postgres_redis_loan_tracker/models"
)

type ReservationStore interface {
	FindStudentByID(ctx context.Context, id string) (*models.Student, error)
	FindEquipmentByID(ctx context.Context, id string) (*models.Equipment, error)
	CreateReservation(ctx context.Context, r *models.Reservation) error
	UpdateReservation(ctx context.Context, id string, updates map[string]any) (*models.Reservation, error)
	FindReservationByID(ctx context.Context, id string) (*models.Reservation, error)
	ListReservations(ctx context.Context, q db.ReservationQuery) (*db.Page[models.Reservation], error)
}

// Reservations manages advance holds on equipment. Overlap is checked only
// against other Pending/Confirmed reservations, never against active loans.
type Reservations struct {
	store   ReservationStore
	auditor Auditor
	now     func() time.Time
	logger  *slog.Logger
}

func NewReservations(store ReservationStore, auditor Auditor, now func() time.Time, logger *slog.Logger) *Reservations {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reservations{store: store, auditor: auditor, now: now, logger: logger.With("service", "reservations")}
}

type CreateReservationParams struct {
	ActorID     string
	StudentID   string
	EquipmentID string
	DateFrom    string
	DateTo      string
	Notes       string
}

func (s *Reservations) Create(ctx context.Context, p CreateReservationParams) (*models.Reservation, error) {
	logger := s.logger.With("operation", "create", "equipment_id", p.EquipmentID, "student_id", p.StudentID)

	verr := &ValidationError{}
	if strings.TrimSpace(p.StudentID) == "" {
		verr.add("student_id", "student_id is required")
	}
	if strings.TrimSpace(p.EquipmentID) == "" {
		verr.add("equipment_id", "equipment_id is required")
	}
	from, ferr := ParseDate(p.DateFrom)
	if ferr != nil {
		verr.add("date_from", "invalid date format, use YYYY-MM-DD")
	}
	to, terr := ParseDate(p.DateTo)
	if terr != nil {
		verr.add("date_to", "invalid date format, use YYYY-MM-DD")
	}
	if ferr == nil && terr == nil && to.Before(from) {
		verr.add("date_to", "date_to must not be before date_from")
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

	res := &models.Reservation{
		StudentID:   student.ID,
		EquipmentID: equipment.ID,
		DateFrom:    from,
		DateTo:      to,
		Status:      models.ReservationPending,
		Notes:       p.Notes,
	}
	if err := s.store.CreateReservation(ctx, res); err != nil {
		err = fromRepo(err, "equipment")
		logger.Info("reservation rejected", "error_kind", ErrorKind(err), "error", err)
		return nil, err
	}
	res.Student, res.Equipment = student, equipment

	s.auditor.Record(ctx, models.AuditCreate, models.ReservationTable, res.ID, map[string]any{
		"student_id":   res.StudentID,
		"equipment_id": res.EquipmentID,
		"date_from":    from.Format(models.DateLayout),
		"date_to":      to.Format(models.DateLayout),
		"actor_id":     p.ActorID,
	})
	logger.Info("reservation created", "reservation_id", res.ID)
	return res, nil
}

type UpdateReservationParams struct {
	ActorID string
	ID      string
	Status  *string
	Notes   *string
}

func (s *Reservations) Update(ctx context.Context, p UpdateReservationParams) (*models.Reservation, error) {
	updates := map[string]any{}
	if p.Status != nil {
		st := models.ReservationStatus(strings.TrimSpace(*p.Status))
		if !st.Valid() {
			return nil, invalid("status", "status must be one of Pending, Confirmed, Cancelled, Completed")
		}
		updates["status"] = st
		if st == models.ReservationConfirmed {
			updates["confirmed_at"] = s.now().UTC()
		}
	}
	if p.Notes != nil {
		updates["notes"] = *p.Notes
	}

	res, err := s.store.UpdateReservation(ctx, p.ID, updates)
	if err != nil {
		return nil, fromRepo(err, "reservation")
	}
	details := map[string]any{"actor_id": p.ActorID}
	for k, v := range updates {
		details[k] = v
	}
	s.auditor.Record(ctx, models.AuditUpdate, models.ReservationTable, res.ID, details)
	return res, nil
}

// Cancel marks the reservation Cancelled; the row is kept.
func (s *Reservations) Cancel(ctx context.Context, actorID, id string) (*models.Reservation, error) {
	status := string(models.ReservationCancelled)
	return s.Update(ctx, UpdateReservationParams{ActorID: actorID, ID: id, Status: &status})
}

func (s *Reservations) Get(ctx context.Context, id string) (*models.Reservation, error) {
	res, err := s.store.FindReservationByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "reservation")
	}
	return res, nil
}

func (s *Reservations) List(ctx context.Context, q db.ReservationQuery) (*db.Page[models.Reservation], error) {
	return s.store.ListReservations(ctx, q)
}
