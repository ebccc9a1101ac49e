package controllers

import (
	"net/http"

	"Gin_postgres_redis_loan_tracker/app"
	"Gin_postgres_redis_loan_tracker/db"
	"Gin_postgres_redis_loan_tracker/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type DamageController struct{ *Srv }

func NewDamageController(s *Srv) *DamageController { return &DamageController{Srv: s} }

// POST /api/damage-logs
func (dc *DamageController) Create(c *gin.Context) {
	var in struct {
		EquipmentID     string           `json:"equipment_id" binding:"required"`
		StudentID       string           `json:"student_id" binding:"required"`
		LoanID          string           `json:"loan_id"`
		DamageType      string           `json:"damage_type" binding:"required,oneof=Damage Lost"`
		Description     string           `json:"description" binding:"required"`
		ReportedBy      string           `json:"reported_by"`
		RepairCost      *decimal.Decimal `json:"repair_cost"`
		ReplacementCost *decimal.Decimal `json:"replacement_cost"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	reporter := in.ReportedBy
	if reporter == "" {
		reporter = c.GetString(app.CtxUsername)
	}
	dl, err := dc.Damage.Create(c.Request.Context(), services.CreateDamageParams{
		ActorID:         app.UserID(c),
		EquipmentID:     in.EquipmentID,
		StudentID:       in.StudentID,
		LoanID:          in.LoanID,
		DamageType:      in.DamageType,
		Description:     in.Description,
		ReportedBy:      reporter,
		RepairCost:      in.RepairCost,
		ReplacementCost: in.ReplacementCost,
	})
	if err != nil {
		dc.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"message": "Damage log created successfully", "damage_log": dl})
}

// PUT /api/damage-logs/:id
func (dc *DamageController) Update(c *gin.Context) {
	var in struct {
		Status          *string          `json:"status"`
		Description     *string          `json:"description"`
		RepairCost      *decimal.Decimal `json:"repair_cost"`
		ReplacementCost *decimal.Decimal `json:"replacement_cost"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	dl, err := dc.Damage.Update(c.Request.Context(), services.UpdateDamageParams{
		ActorID:         app.UserID(c),
		ID:              c.Param("id"),
		Status:          in.Status,
		Description:     in.Description,
		RepairCost:      in.RepairCost,
		ReplacementCost: in.ReplacementCost,
	})
	if err != nil {
		dc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"message": "Damage log updated successfully", "damage_log": dl})
}

func (dc *DamageController) Get(c *gin.Context) {
	dl, err := dc.Damage.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		dc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dl)
}

func (dc *DamageController) list(c *gin.Context, q db.DamageLogQuery) {
	q.PageParams = pageParams(c)
	q.Status = c.Query("status")
	q.DamageType = c.Query("damage_type")
	res, err := dc.Damage.List(c.Request.Context(), q)
	if err != nil {
		dc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/damage-logs?equipment_id=&student_id=&status=&damage_type=
func (dc *DamageController) List(c *gin.Context) {
	dc.list(c, db.DamageLogQuery{EquipmentID: c.Query("equipment_id"), StudentID: c.Query("student_id")})
}

func (dc *DamageController) ByLoan(c *gin.Context) {
	dc.list(c, db.DamageLogQuery{LoanID: c.Param("id")})
}

func (dc *DamageController) ByStudent(c *gin.Context) {
	dc.list(c, db.DamageLogQuery{StudentID: c.Param("id")})
}
