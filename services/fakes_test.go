package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"Gin_postgres_redis_loan_tracker/db"
	"Gin_postgres_redis_loan_tracker/events"
	"Gin_postgres_redis_loan_tracker/models"
	"Gin_postgres_redis_loan_tracker/notify"
)

// memStore is an in-memory stand-in for db.Repo that returns the same
// sentinel errors.
type memStore struct {
	mu           sync.Mutex
	seq          int
	students     map[string]*models.Student
	equipment    map[string]*models.Equipment
	loans        map[string]*models.Loan
	details      map[string]*models.ReturnDetail
	reservations map[string]*models.Reservation
	damage       map[string]*models.DamageLog
	users        map[string]*models.User
}

func newMemStore() *memStore {
	return &memStore{
		students:     map[string]*models.Student{},
		equipment:    map[string]*models.Equipment{},
		loans:        map[string]*models.Loan{},
		details:      map[string]*models.ReturnDetail{},
		reservations: map[string]*models.Reservation{},
		damage:       map[string]*models.DamageLog{},
		users:        map[string]*models.User{},
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) addStudent(id, email string) *models.Student {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &models.Student{ID: id, FirstName: "Ana", LastName: "Lee", Email: email, Status: models.StudentActive}
	m.students[id] = s
	return s
}

func (m *memStore) addEquipment(id, name string) *models.Equipment {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := &models.Equipment{ID: id, Name: name, Condition: models.ConditionGood, AvailabilityStatus: models.Available}
	m.equipment[id] = e
	return e
}

func (m *memStore) equipmentState(id string) models.Equipment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.equipment[id]
}

func (m *memStore) FindStudentByID(_ context.Context, id string) (*models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) FindEquipmentByID(_ context.Context, id string) (*models.Equipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.equipment[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) loanCopy(l *models.Loan) *models.Loan {
	cp := *l
	if s, ok := m.students[l.StudentID]; ok {
		sc := *s
		cp.Student = &sc
	}
	if e, ok := m.equipment[l.EquipmentID]; ok {
		ec := *e
		cp.Equipment = &ec
	}
	return &cp
}

func (m *memStore) FindLoanByID(_ context.Context, id string) (*models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.loans[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return m.loanCopy(l), nil
}

func (m *memStore) CheckoutLoan(_ context.Context, in db.CheckoutInput) (*models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.equipment[in.EquipmentID]
	if !ok {
		return nil, db.ErrNotFound
	}
	if e.AvailabilityStatus != models.Available {
		return nil, db.ErrEquipmentUnavailable
	}
	for _, l := range m.loans {
		if l.EquipmentID == e.ID && l.IsOpen() {
			return nil, db.ErrEquipmentUnavailable
		}
	}
	e.AvailabilityStatus = models.OnLoan
	l := &models.Loan{
		ID:           m.nextID("loan"),
		StudentID:    in.StudentID,
		EquipmentID:  e.ID,
		DateBorrowed: in.DateBorrowed,
		DateDue:      in.DateDue,
		Status:       models.LoanBorrowed,
		CheckedOutBy: in.CheckedOutBy,
	}
	m.loans[l.ID] = l
	return m.loanCopy(l), nil
}

func (m *memStore) CloseLoan(_ context.Context, in db.CloseLoanInput) (*models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.loans[in.LoanID]
	if !ok {
		return nil, db.ErrNotFound
	}
	if l.Status == models.LoanReturned {
		return nil, db.ErrAlreadyReturned
	}
	returned := in.ReturnedOn
	l.Status = models.LoanReturned
	l.DateReturned = &returned
	if in.ReturnedBy != "" {
		by := in.ReturnedBy
		l.ReturnedBy = &by
	}
	if e := m.equipment[l.EquipmentID]; e.AvailabilityStatus != models.Lost {
		e.AvailabilityStatus = in.Availability
		if in.Condition != nil {
			e.Condition = *in.Condition
		}
	}
	if in.Detail != nil {
		d := *in.Detail
		d.ID = m.nextID("detail")
		d.LoanID = l.ID
		m.details[l.ID] = &d
	}
	return m.loanCopy(l), nil
}

func (m *memStore) RenewLoan(_ context.Context, loanID string, newDue time.Time) (*models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.loans[loanID]
	if !ok {
		return nil, db.ErrNotFound
	}
	if l.Status == models.LoanReturned {
		return nil, db.ErrAlreadyReturned
	}
	from := l.DateDue.AddDate(0, 0, 1)
	for _, r := range m.reservations {
		if r.EquipmentID == l.EquipmentID && r.Status.Holds() && r.Overlaps(from, newDue) {
			return nil, db.ErrReservationOverlap
		}
	}
	l.DateDue = newDue
	l.RenewCount++
	return m.loanCopy(l), nil
}

func (m *memStore) ListOverdueLoans(_ context.Context, today time.Time) ([]models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Loan, 0)
	for _, l := range m.loans {
		if l.IsOpen() && l.DateDue.Before(today) {
			out = append(out, *m.loanCopy(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateDue.Before(out[j].DateDue) })
	return out, nil
}

func (m *memStore) SearchLoans(_ context.Context, q db.LoanQuery) (*db.Page[models.Loan], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]models.Loan, 0)
	for _, l := range m.loans {
		if q.Status != "" && string(l.Status) != q.Status {
			continue
		}
		if q.StudentID != "" && l.StudentID != q.StudentID {
			continue
		}
		if q.EquipmentID != "" && l.EquipmentID != q.EquipmentID {
			continue
		}
		items = append(items, *m.loanCopy(l))
	}
	return &db.Page[models.Loan]{Items: items, Total: int64(len(items)), Pages: 1, CurrentPage: 1, PerPage: 20}, nil
}

func (m *memStore) FindReturnDetail(_ context.Context, loanID string) (*models.ReturnDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.details[loanID]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memStore) ListEmailLogsByLoan(context.Context, string) ([]models.EmailLog, error) {
	return []models.EmailLog{}, nil
}

func (m *memStore) CreateReservation(_ context.Context, r *models.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.equipment[r.EquipmentID]; !ok {
		return db.ErrNotFound
	}
	for _, ex := range m.reservations {
		if ex.EquipmentID == r.EquipmentID && ex.Status.Holds() && ex.Overlaps(r.DateFrom, r.DateTo) {
			return db.ErrReservationOverlap
		}
	}
	r.ID = m.nextID("res")
	if r.Status == "" {
		r.Status = models.ReservationPending
	}
	cp := *r
	m.reservations[r.ID] = &cp
	return nil
}

func (m *memStore) UpdateReservation(_ context.Context, id string, updates map[string]any) (*models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if st, ok := updates["status"].(models.ReservationStatus); ok {
		if st.Holds() && !r.Status.Holds() {
			for _, ex := range m.reservations {
				if ex.ID != r.ID && ex.EquipmentID == r.EquipmentID && ex.Status.Holds() && ex.Overlaps(r.DateFrom, r.DateTo) {
					return nil, db.ErrReservationOverlap
				}
			}
		}
		r.Status = st
	}
	if n, ok := updates["notes"].(string); ok {
		r.Notes = n
	}
	if t, ok := updates["confirmed_at"].(time.Time); ok {
		r.ConfirmedAt = &t
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) FindReservationByID(_ context.Context, id string) (*models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) ListReservations(_ context.Context, q db.ReservationQuery) (*db.Page[models.Reservation], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]models.Reservation, 0)
	for _, r := range m.reservations {
		if q.EquipmentID != "" && r.EquipmentID != q.EquipmentID {
			continue
		}
		if q.Status != "" && string(r.Status) != q.Status {
			continue
		}
		items = append(items, *r)
	}
	return &db.Page[models.Reservation]{Items: items, Total: int64(len(items)), Pages: 1, CurrentPage: 1, PerPage: 20}, nil
}

func (m *memStore) CreateDamageLog(_ context.Context, dl *models.DamageLog, effect db.EquipmentEffect) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.equipment[dl.EquipmentID]
	if !ok {
		return db.ErrNotFound
	}
	if effect.Availability != "" {
		e.AvailabilityStatus = effect.Availability
	}
	if effect.Condition != "" {
		e.Condition = effect.Condition
	}
	dl.ID = m.nextID("damage")
	cp := *dl
	m.damage[dl.ID] = &cp
	return nil
}

func (m *memStore) UpdateDamageLog(_ context.Context, id string, updates map[string]any) (*models.DamageLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dl, ok := m.damage[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if st, ok := updates["status"].(models.DamageLogStatus); ok {
		dl.Status = st
	}
	if t, ok := updates["resolved_at"].(time.Time); ok {
		dl.ResolvedAt = &t
	}
	if d, ok := updates["description"].(string); ok {
		dl.Description = d
	}
	cp := *dl
	return &cp, nil
}

func (m *memStore) FindDamageLogByID(_ context.Context, id string) (*models.DamageLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dl, ok := m.damage[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *dl
	return &cp, nil
}

func (m *memStore) ListDamageLogs(context.Context, db.DamageLogQuery) (*db.Page[models.DamageLog], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]models.DamageLog, 0, len(m.damage))
	for _, dl := range m.damage {
		items = append(items, *dl)
	}
	return &db.Page[models.DamageLog]{Items: items, Total: int64(len(items)), Pages: 1, CurrentPage: 1, PerPage: 20}, nil
}

// Users

func (m *memStore) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.users {
		if ex.Username == u.Username || ex.Email == u.Email {
			return db.ErrDuplicate
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) UsernameOrEmailTaken(_ context.Context, username, email string) (bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var un, em bool
	for _, u := range m.users {
		un = un || u.Username == username
		em = em || u.Email == email
	}
	return un, em, nil
}

func (m *memStore) FindUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memStore) TouchUserLogin(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.LoginCount++
	}
	return nil
}

func (m *memStore) ListUsers(context.Context, db.UserQuery) (*db.Page[models.User], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		items = append(items, *u)
	}
	return &db.Page[models.User]{Items: items, Total: int64(len(items)), Pages: 1, CurrentPage: 1, PerPage: 20}, nil
}

func (m *memStore) UpdateUser(_ context.Context, id string, updates map[string]any) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	for k, v := range updates {
		switch k {
		case "status":
			u.Status = v.(models.UserStatus)
		case "role":
			u.Role = v.(models.Role)
		case "password_hash":
			u.PasswordHash = v.(string)
		case "email":
			u.Email = v.(string)
		case "first_name":
			u.FirstName = v.(string)
		case "last_name":
			u.LastName = v.(string)
		}
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) DeleteUserByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memStore) CountAdmins(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, u := range m.users {
		if u.Role == models.RoleAdmin {
			n++
		}
	}
	return n, nil
}

// stubNotifier records every notice; fail makes every send report failure.
type stubNotifier struct {
	mu        sync.Mutex
	fail      bool
	checkouts []notify.LoanNotice
	returns   []notify.ReturnNotice
	overdue   []notify.OverdueNotice
}

func (n *stubNotifier) CheckoutConfirmation(_ context.Context, ln notify.LoanNotice) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.checkouts = append(n.checkouts, ln)
	return !n.fail
}

func (n *stubNotifier) ReturnConfirmation(_ context.Context, rn notify.ReturnNotice) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.returns = append(n.returns, rn)
	return !n.fail
}

func (n *stubNotifier) OverdueReminder(_ context.Context, on notify.OverdueNotice) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.overdue = append(n.overdue, on)
	return !n.fail
}

type auditEntry struct {
	Action models.AuditAction
	Table  string
	ID     string
}

type stubAuditor struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *stubAuditor) Record(_ context.Context, action models.AuditAction, table, recordID string, _ any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{Action: action, Table: table, ID: recordID})
}

func (a *stubAuditor) count(table string, action models.AuditAction) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, e := range a.entries {
		if e.Table == table && e.Action == action {
			n++
		}
	}
	return n
}

type stubPublisher struct {
	mu     sync.Mutex
	err    error
	events []events.LoanEvent
}

func (p *stubPublisher) Publish(_ context.Context, ev events.LoanEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}
