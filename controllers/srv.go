package controllers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"Gin_postgres_redis_loan_tracker/app"
	"Gin_postgres_redis_loan_tracker/audit"
	"Gin_postgres_redis_loan_tracker/db"
	"Gin_postgres_redis_loan_tracker/services"
	"Gin_postgres_redis_loan_tracker/session"
	"Gin_postgres_redis_loan_tracker/sweep"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Srv bundles what the handlers need.
type Srv struct {
	Repo         *db.Repo
	Sessions     *session.AppSessionStore
	Tokens       *session.Tokens
	Audit        *audit.Recorder
	Loans        *services.Loans
	Reservations *services.Reservations
	Damage       *services.Damage
	Directory    *services.Directory
	Auth         *services.Auth
	Reports      *services.Reports
	Sweep        *sweep.Job
	WebOrigin    string
	Logger       *slog.Logger
}

func GetSrv(a *app.App) *Srv {
	return &Srv{
		Repo:         a.Repo,
		Sessions:     a.Sessions,
		Tokens:       a.Tokens,
		Audit:        a.Audit,
		Loans:        a.Loans,
		Reservations: a.Reservations,
		Damage:       a.Damage,
		Directory:    a.Directory,
		Auth:         a.Auth,
		Reports:      a.Reports,
		Sweep:        a.Sweep,
		WebOrigin:    a.Config.WebOrigin,
		Logger:       a.Logger,
	}
}

func (s *Srv) fail(c *gin.Context, err error) { respondError(c, s.Logger, err) }

// respondError maps service errors onto HTTP statuses. Unexpected errors are
// logged and answered with a generic 500.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	var vErr *services.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.AbortWithStatusJSON(http.StatusBadRequest, app.H{"error": "validation failed", "fields": vErr.FieldErrors})
	case errors.Is(err, services.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, app.H{"error": err.Error()})
	case errors.Is(err, services.ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, app.H{"error": err.Error()})
	case errors.Is(err, services.ErrPrecondition):
		c.AbortWithStatusJSON(http.StatusBadRequest, app.H{"error": err.Error()})
	case errors.Is(err, services.ErrUnauthorized):
		c.AbortWithStatusJSON(http.StatusUnauthorized, app.H{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, app.H{"error": err.Error()})
	default:
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, app.H{"error": "internal server error"})
	}
}

// badRequest answers a binding failure, listing offending fields when the
// validator reports them.
func badRequest(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fe.Field()] = fmt.Sprintf("failed %s validation", fe.Tag())
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, app.H{"error": "validation failed", "fields": fields})
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, app.H{"error": "invalid request body"})
}

func pageParams(c *gin.Context) db.PageParams {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	per, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	return db.PageParams{Page: page, PerPage: per}
}

func optionalInt(c *gin.Context, key string) (*int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, false
	}
	return &n, true
}
