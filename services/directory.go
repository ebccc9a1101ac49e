package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"Gin_postgres_redis_loan_tracker/db"
	"Gin_postgres_redis_loan_tracker/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type DirectoryStore interface {
	CreateStudent(ctx context.Context, s *models.Student) error
	FindStudentByID(ctx context.Context, id string) (*models.Student, error)
	UpdateStudent(ctx context.Context, id string, updates map[string]any) (*models.Student, error)
	DeleteStudent(ctx context.Context, id string) error
	SearchStudents(ctx context.Context, q db.StudentQuery) (*db.Page[models.Student], error)
	DistinctPrograms(ctx context.Context) ([]string, error)

	CreateEquipment(ctx context.Context, e *models.Equipment) error
	FindEquipmentByID(ctx context.Context, id string) (*models.Equipment, error)
	UpdateEquipment(ctx context.Context, id string, updates map[string]any, check func(models.Equipment) error) (*models.Equipment, error)
	DeleteEquipment(ctx context.Context, id string) error
	SearchEquipment(ctx context.Context, q db.EquipmentQuery) (*db.Page[models.Equipment], error)
	DistinctCategories(ctx context.Context) ([]string, error)

	CreateStaff(ctx context.Context, s *models.Staff) error
	ListStaff(ctx context.Context) ([]models.Staff, error)
}

// Directory keeps students, equipment and staff.
type Directory struct {
	store   DirectoryStore
	auditor Auditor
	logger  *slog.Logger
}

func NewDirectory(store DirectoryStore, auditor Auditor, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{store: store, auditor: auditor, logger: logger.With("service", "directory")}
}

var validate = validator.New()

func validEmail(s string) bool { return validate.Var(s, "required,email") == nil }

// Students

type StudentInput struct {
	FirstName *string
	LastName  *string
	Program   *string
	YearLevel *int
	Email     *string
	Status    *string
}

func (in StudentInput) validate(creating bool) (map[string]any, error) {
	verr := &ValidationError{}
	updates := map[string]any{}

	required := func(field string, v *string) {
		if v == nil {
			if creating {
				verr.add(field, field+" is required")
			}
			return
		}
		if strings.TrimSpace(*v) == "" {
			verr.add(field, field+" must not be empty")
			return
		}
		updates[field] = strings.TrimSpace(*v)
	}
	required("first_name", in.FirstName)
	required("last_name", in.LastName)
	required("email", in.Email)
	if e, ok := updates["email"].(string); ok && !validEmail(e) {
		verr.add("email", "email is not a valid address")
	}
	if in.Program != nil {
		updates["program"] = strings.TrimSpace(*in.Program)
	}
	if in.YearLevel != nil {
		if *in.YearLevel < models.YearLevelMin || *in.YearLevel > models.YearLevelMax {
			verr.add("year_level", fmt.Sprintf("year_level must be between %d and %d", models.YearLevelMin, models.YearLevelMax))
		}
		updates["year_level"] = *in.YearLevel
	}
	if in.Status != nil {
		st := models.StudentStatus(strings.TrimSpace(*in.Status))
		if !st.Valid() {
			verr.add("status", "status must be one of active, inactive, graduated")
		}
		updates["status"] = st
	}
	return updates, verr.errOrNil()
}

func (d *Directory) CreateStudent(ctx context.Context, actorID string, in StudentInput) (*models.Student, error) {
	updates, err := in.validate(true)
	if err != nil {
		return nil, err
	}
	s := &models.Student{
		ID:        uuid.NewString(),
		FirstName: updates["first_name"].(string),
		LastName:  updates["last_name"].(string),
		Email:     updates["email"].(string),
		YearLevel: in.YearLevel,
		Status:    models.StudentActive,
	}
	if p, ok := updates["program"].(string); ok {
		s.Program = p
	}
	if st, ok := updates["status"].(models.StudentStatus); ok {
		s.Status = st
	}
	if err := d.store.CreateStudent(ctx, s); err != nil {
		return nil, fromRepo(err, "student email")
	}
	d.auditor.Record(ctx, models.AuditCreate, models.StudentTable, s.ID, map[string]any{"email": s.Email, "actor_id": actorID})
	return s, nil
}

func (d *Directory) GetStudent(ctx context.Context, id string) (*models.Student, error) {
	s, err := d.store.FindStudentByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "student")
	}
	return s, nil
}

func (d *Directory) UpdateStudent(ctx context.Context, actorID, id string, in StudentInput) (*models.Student, error) {
	updates, err := in.validate(false)
	if err != nil {
		return nil, err
	}
	s, err := d.store.UpdateStudent(ctx, id, updates)
	if err != nil {
		if errorsIsDuplicate(err) {
			return nil, fromRepo(err, "student email")
		}
		return nil, fromRepo(err, "student")
	}
	d.auditor.Record(ctx, models.AuditUpdate, models.StudentTable, s.ID, withActor(updates, actorID))
	return s, nil
}

func (d *Directory) DeleteStudent(ctx context.Context, actorID, id string) error {
	if err := d.store.DeleteStudent(ctx, id); err != nil {
		return fromRepo(err, "student")
	}
	d.auditor.Record(ctx, models.AuditDelete, models.StudentTable, id, map[string]any{"actor_id": actorID})
	return nil
}

func (d *Directory) SearchStudents(ctx context.Context, q db.StudentQuery) (*db.Page[models.Student], error) {
	return d.store.SearchStudents(ctx, q)
}

func (d *Directory) Programs(ctx context.Context) ([]string, error) {
	return d.store.DistinctPrograms(ctx)
}

// Equipment

type EquipmentInput struct {
	Name               *string
	Model              *string
	Category           *string
	SerialNumber       *string
	Condition          *string
	AvailabilityStatus *string
}

func (in EquipmentInput) validate(creating bool) (map[string]any, error) {
	verr := &ValidationError{}
	updates := map[string]any{}

	if in.Name == nil {
		if creating {
			verr.add("name", "name is required")
		}
	} else if strings.TrimSpace(*in.Name) == "" {
		verr.add("name", "name must not be empty")
	} else {
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Model != nil {
		updates["model"] = strings.TrimSpace(*in.Model)
	}
	if in.Category != nil {
		updates["category"] = strings.TrimSpace(*in.Category)
	}
	if in.SerialNumber != nil {
		// 空序列号存 NULL，唯一索引不冲突
		if sn := strings.TrimSpace(*in.SerialNumber); sn != "" {
			updates["serial_number"] = &sn
		} else {
			updates["serial_number"] = (*string)(nil)
		}
	}
	if in.Condition != nil {
		c := models.Condition(strings.TrimSpace(*in.Condition))
		if !c.Valid() {
			verr.add("condition", "condition must be one of Excellent, Good, Fair, Poor, Damaged, Lost")
		}
		updates["condition"] = c
	}
	if in.AvailabilityStatus != nil {
		a := models.Availability(strings.TrimSpace(*in.AvailabilityStatus))
		if a != models.Available && a != models.Lost {
			verr.add("availability_status", "availability_status may only be set to Available or Lost")
		}
		updates["availability_status"] = a
	}
	return updates, verr.errOrNil()
}

func (d *Directory) CreateEquipment(ctx context.Context, actorID string, in EquipmentInput) (*models.Equipment, error) {
	updates, err := in.validate(true)
	if err != nil {
		return nil, err
	}
	e := &models.Equipment{
		ID:                 uuid.NewString(),
		Name:               updates["name"].(string),
		Condition:          models.ConditionGood,
		AvailabilityStatus: models.Available,
	}
	if v, ok := updates["model"].(string); ok {
		e.Model = v
	}
	if v, ok := updates["category"].(string); ok {
		e.Category = v
	}
	if v, ok := updates["serial_number"].(*string); ok {
		e.SerialNumber = v
	}
	if v, ok := updates["condition"].(models.Condition); ok {
		e.Condition = v
	}
	if v, ok := updates["availability_status"].(models.Availability); ok {
		e.AvailabilityStatus = v
	}
	if err := d.store.CreateEquipment(ctx, e); err != nil {
		return nil, fromRepo(err, "serial number")
	}
	d.auditor.Record(ctx, models.AuditCreate, models.EquipmentTable, e.ID, map[string]any{"name": e.Name, "serial_number": e.SerialNumber, "actor_id": actorID})
	return e, nil
}

func (d *Directory) GetEquipment(ctx context.Context, id string) (*models.Equipment, error) {
	e, err := d.store.FindEquipmentByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "equipment")
	}
	return e, nil
}

// UpdateEquipment refuses to touch availability while the equipment is on
// loan; only the loan lifecycle moves it out of On Loan.
func (d *Directory) UpdateEquipment(ctx context.Context, actorID, id string, in EquipmentInput) (*models.Equipment, error) {
	updates, err := in.validate(false)
	if err != nil {
		return nil, err
	}
	var check func(models.Equipment) error
	if _, ok := updates["availability_status"]; ok {
		check = func(cur models.Equipment) error {
			if cur.AvailabilityStatus == models.OnLoan {
				return fmt.Errorf("%w: equipment is on loan, return it first", ErrPrecondition)
			}
			return nil
		}
	}
	e, err := d.store.UpdateEquipment(ctx, id, updates, check)
	if err != nil {
		if errorsIsDuplicate(err) {
			return nil, fromRepo(err, "serial number")
		}
		return nil, fromRepo(err, "equipment")
	}
	d.auditor.Record(ctx, models.AuditUpdate, models.EquipmentTable, e.ID, withActor(updates, actorID))
	return e, nil
}

func (d *Directory) DeleteEquipment(ctx context.Context, actorID, id string) error {
	if err := d.store.DeleteEquipment(ctx, id); err != nil {
		return fromRepo(err, "equipment")
	}
	d.auditor.Record(ctx, models.AuditDelete, models.EquipmentTable, id, map[string]any{"actor_id": actorID})
	return nil
}

func (d *Directory) SearchEquipment(ctx context.Context, q db.EquipmentQuery) (*db.Page[models.Equipment], error) {
	return d.store.SearchEquipment(ctx, q)
}

func (d *Directory) AvailableEquipment(ctx context.Context, q db.EquipmentQuery) (*db.Page[models.Equipment], error) {
	q.Availability = string(models.Available)
	return d.store.SearchEquipment(ctx, q)
}

func (d *Directory) Categories(ctx context.Context) ([]string, error) {
	return d.store.DistinctCategories(ctx)
}

func (d *Directory) Conditions() []models.Condition {
	return append([]models.Condition(nil), models.Conditions...)
}

// Staff

type StaffInput struct {
	Name  string
	Email string
	Role  string
}

func (d *Directory) CreateStaff(ctx context.Context, actorID string, in StaffInput) (*models.Staff, error) {
	verr := &ValidationError{}
	if strings.TrimSpace(in.Name) == "" {
		verr.add("name", "name is required")
	}
	if !validEmail(strings.TrimSpace(in.Email)) {
		verr.add("email", "email is not a valid address")
	}
	if err := verr.errOrNil(); err != nil {
		return nil, err
	}
	s := &models.Staff{
		ID:    uuid.NewString(),
		Name:  strings.TrimSpace(in.Name),
		Email: strings.TrimSpace(in.Email),
		Role:  strings.TrimSpace(in.Role),
	}
	if s.Role == "" {
		s.Role = "approver"
	}
	if err := d.store.CreateStaff(ctx, s); err != nil {
		return nil, fromRepo(err, "staff email")
	}
	d.auditor.Record(ctx, models.AuditCreate, models.StaffTable, s.ID, map[string]any{"email": s.Email, "actor_id": actorID})
	return s, nil
}

func (d *Directory) ListStaff(ctx context.Context) ([]models.Staff, error) {
	return d.store.ListStaff(ctx)
}

func withActor(updates map[string]any, actorID string) map[string]any {
	out := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		out[k] = v
	}
	out["actor_id"] = actorID
	return out
}

func errorsIsDuplicate(err error) bool { return errors.Is(err, db.ErrDuplicate) }
