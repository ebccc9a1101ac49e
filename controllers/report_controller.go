package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"Gin_postgres_redis_loan_tracker/app"
	"Gin_postgres_redis_loan_tracker/sweep"

	"github.com/gin-gonic/gin"
)

type ReportController struct{ *Srv }

func NewReportController(s *Srv) *ReportController { return &ReportController{Srv: s} }

func (rc *ReportController) OverdueLoans(c *gin.Context) {
	rep, err := rc.Reports.Overdue(c.Request.Context())
	if err != nil {
		rc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (rc *ReportController) EquipmentStatus(c *gin.Context) {
	rep, err := rc.Reports.EquipmentStatus(c.Request.Context())
	if err != nil {
		rc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (rc *ReportController) LoanActivity(c *gin.Context) {
	rep, err := rc.Reports.LoanActivity(c.Request.Context())
	if err != nil {
		rc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (rc *ReportController) DamageAnalysis(c *gin.Context) {
	rep, err := rc.Reports.DamageAnalysis(c.Request.Context())
	if err != nil {
		rc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (rc *ReportController) StudentActivity(c *gin.Context) {
	rows, err := rc.Reports.StudentActivity(c.Request.Context())
	if err != nil {
		rc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// GET /api/audit-logs?limit=100
func (rc *ReportController) AuditLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	logs, err := rc.Audit.Recent(c.Request.Context(), limit)
	if err != nil {
		rc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// POST /api/admin/overdue-sweep?force=1
func (rc *ReportController) RunSweep(c *gin.Context) {
	ctx := c.Request.Context()
	run := rc.Sweep.Run
	if c.Query("force") == "1" {
		run = rc.Sweep.RunUnlocked
	}
	rep, err := run(ctx)
	if errors.Is(err, sweep.ErrLocked) {
		c.AbortWithStatusJSON(http.StatusConflict, app.H{"error": err.Error()})
		return
	}
	if err != nil {
		rc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// GET /api/health：数据库可达才算健康
func (rc *ReportController) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	status := app.H{"status": "healthy", "database": "ok"}
	if err := rc.Repo.Ping(ctx); err != nil {
		rc.Logger.Warn("health check: database", "error", err)
		c.JSON(http.StatusServiceUnavailable, app.H{"status": "unhealthy", "database": "unreachable"})
		return
	}
	status["timestamp"] = time.Now().UTC()
	c.JSON(http.StatusOK, status)
}
