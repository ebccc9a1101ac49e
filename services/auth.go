package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"Gin_postgres_redis_loan_tracker/db"
	"Gin_postgres_redis_loan_tracker/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 6

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	UsernameOrEmailTaken(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	TouchUserLogin(ctx context.Context, userID string) error
	ListUsers(ctx context.Context, q db.UserQuery) (*db.Page[models.User], error)
	UpdateUser(ctx context.Context, id string, updates map[string]any) (*models.User, error)
	DeleteUserByID(ctx context.Context, id string) error
	CountAdmins(ctx context.Context) (int64, error)
}

// SessionRevoker drops every live session of a user.
type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID string) error
}

// Auth handles password accounts. Sessions and tokens are issued by the
// HTTP layer once Login succeeds.
type Auth struct {
	store    UserStore
	sessions SessionRevoker
	auditor  Auditor
	cost     int
	logger   *slog.Logger
}

func NewAuth(store UserStore, sessions SessionRevoker, auditor Auditor, logger *slog.Logger) *Auth {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auth{
		store:    store,
		sessions: sessions,
		auditor:  auditor,
		cost:     bcrypt.DefaultCost,
		logger:   logger.With("service", "auth"),
	}
}

// WithHashCost lowers the bcrypt cost, for tests.
func (a *Auth) WithHashCost(cost int) *Auth {
	a.cost = cost
	return a
}

type RegisterParams struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Register creates a borrower account. Roles are only granted by an admin.
func (a *Auth) Register(ctx context.Context, p RegisterParams) (*models.User, error) {
	return a.createUser(ctx, p, models.RoleBorrower)
}

func (a *Auth) createUser(ctx context.Context, p RegisterParams, role models.Role) (*models.User, error) {
	username := strings.TrimSpace(p.Username)
	email := strings.ToLower(strings.TrimSpace(p.Email))

	verr := &ValidationError{}
	if username == "" {
		verr.add("username", "username is required")
	}
	if email == "" {
		verr.add("email", "email is required")
	} else if !validEmail(email) {
		verr.add("email", "email is not a valid address")
	}
	if len(p.Password) < MinPasswordLength {
		verr.add("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if err := verr.errOrNil(); err != nil {
		return nil, err
	}

	userTaken, emailTaken, err := a.store.UsernameOrEmailTaken(ctx, username, email)
	if err != nil {
		return nil, err
	}
	if userTaken {
		return nil, fmt.Errorf("%w: username already exists", ErrConflict)
	}
	if emailTaken {
		return nil, fmt.Errorf("%w: email already registered", ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), a.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(p.FirstName),
		LastName:     strings.TrimSpace(p.LastName),
		Role:         role,
		Status:       models.UserActive,
	}
	if err := a.store.CreateUser(ctx, u); err != nil {
		return nil, fromRepo(err, "user")
	}
	a.auditor.Record(ctx, models.AuditCreate, models.UserTable, u.ID, map[string]any{"username": u.Username, "role": u.Role})
	a.logger.Info("user registered", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// Login checks credentials. Unknown user and wrong password look the same.
func (a *Auth) Login(ctx context.Context, username, password string) (*models.User, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, invalid("credentials", "username and password required")
	}
	u, err := a.store.FindUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid username or password", ErrUnauthorized)
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, fmt.Errorf("%w: invalid username or password", ErrUnauthorized)
	}
	if u.Status != models.UserActive {
		return nil, fmt.Errorf("%w: user account is not active", ErrForbidden)
	}
	if err := a.store.TouchUserLogin(ctx, u.ID); err != nil {
		a.logger.Warn("touch last login", "user_id", u.ID, "error", err)
	}
	return u, nil
}

func (a *Auth) ChangePassword(ctx context.Context, userID, current, next string) error {
	if len(next) < MinPasswordLength {
		return invalid("new_password", fmt.Sprintf("new password must be at least %d characters", MinPasswordLength))
	}
	u, err := a.store.FindUserByID(ctx, userID)
	if err != nil {
		return fromRepo(err, "user")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return fmt.Errorf("%w: current password is incorrect", ErrUnauthorized)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), a.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := a.store.UpdateUser(ctx, u.ID, map[string]any{"password_hash": string(hash)}); err != nil {
		return fromRepo(err, "user")
	}
	a.auditor.Record(ctx, models.AuditUpdate, models.UserTable, u.ID, map[string]any{"action": "change_password"})
	return nil
}

func (a *Auth) Get(ctx context.Context, id string) (*models.User, error) {
	u, err := a.store.FindUserByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "user")
	}
	return u, nil
}

func (a *Auth) List(ctx context.Context, q db.UserQuery) (*db.Page[models.User], error) {
	return a.store.ListUsers(ctx, q)
}

type UpdateUserParams struct {
	ActorID   string
	ID        string
	FirstName *string
	LastName  *string
	Email     *string
	Role      *string
	Status    *string
}

func (a *Auth) Update(ctx context.Context, p UpdateUserParams) (*models.User, error) {
	updates := map[string]any{}
	verr := &ValidationError{}
	if p.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*p.FirstName)
	}
	if p.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*p.LastName)
	}
	if p.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*p.Email))
		if !validEmail(e) {
			verr.add("email", "email is not a valid address")
		}
		updates["email"] = e
	}
	if p.Role != nil {
		r := models.Role(strings.TrimSpace(*p.Role))
		if !r.Valid() {
			verr.add("role", "role must be one of admin, staff, borrower")
		}
		updates["role"] = r
	}
	if p.Status != nil {
		st := models.UserStatus(strings.TrimSpace(*p.Status))
		if !st.Valid() {
			verr.add("status", "status must be one of active, inactive, disabled")
		}
		updates["status"] = st
	}
	if err := verr.errOrNil(); err != nil {
		return nil, err
	}

	if r, ok := updates["role"].(models.Role); ok && r != models.RoleAdmin {
		if err := a.keepOneAdmin(ctx, p.ID); err != nil {
			return nil, err
		}
	}

	u, err := a.store.UpdateUser(ctx, p.ID, updates)
	if err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, fmt.Errorf("%w: email already in use", ErrConflict)
		}
		return nil, fromRepo(err, "user")
	}
	if st, ok := updates["status"].(models.UserStatus); ok && st != models.UserActive {
		a.revoke(ctx, u.ID)
	}
	a.auditor.Record(ctx, models.AuditUpdate, models.UserTable, u.ID, withActor(updates, p.ActorID))
	return u, nil
}

// Disable blocks login and drops every live session of the user.
func (a *Auth) Disable(ctx context.Context, actorID, id string) (*models.User, error) {
	if actorID == id {
		return nil, fmt.Errorf("%w: cannot disable your own account", ErrPrecondition)
	}
	u, err := a.store.UpdateUser(ctx, id, map[string]any{"status": models.UserDisabled})
	if err != nil {
		return nil, fromRepo(err, "user")
	}
	a.revoke(ctx, u.ID)
	a.auditor.Record(ctx, models.AuditUpdate, models.UserTable, u.ID, map[string]any{"status": models.UserDisabled, "actor_id": actorID})
	return u, nil
}

func (a *Auth) Delete(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return fmt.Errorf("%w: cannot delete your own account", ErrPrecondition)
	}
	if err := a.keepOneAdmin(ctx, id); err != nil {
		return err
	}
	if err := a.store.DeleteUserByID(ctx, id); err != nil {
		return fromRepo(err, "user")
	}
	a.revoke(ctx, id)
	a.auditor.Record(ctx, models.AuditDelete, models.UserTable, id, map[string]any{"actor_id": actorID})
	return nil
}

// BootstrapAdmin creates the first admin when none exists. It is a no-op
// once any admin is present.
func (a *Auth) BootstrapAdmin(ctx context.Context, p RegisterParams) (*models.User, bool, error) {
	n, err := a.store.CountAdmins(ctx)
	if err != nil {
		return nil, false, err
	}
	if n > 0 {
		return nil, false, nil
	}
	u, err := a.createUser(ctx, p, models.RoleAdmin)
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

// keepOneAdmin rejects demoting or removing the last admin.
func (a *Auth) keepOneAdmin(ctx context.Context, id string) error {
	u, err := a.store.FindUserByID(ctx, id)
	if err != nil {
		return fromRepo(err, "user")
	}
	if u.Role != models.RoleAdmin {
		return nil
	}
	n, err := a.store.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if n <= 1 {
		return fmt.Errorf("%w: cannot remove the last admin", ErrPrecondition)
	}
	return nil
}

func (a *Auth) revoke(ctx context.Context, userID string) {
	if a.sessions == nil {
		return
	}
	if err := a.sessions.RevokeAllForUser(ctx, userID); err != nil {
		a.logger.Warn("revoke sessions", "user_id", userID, "error", err)
	}
}
