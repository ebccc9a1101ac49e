package controllers

import (
	"net/http"
	"time"

	"Gin_postgres_redis_loan_tracker/app"
	"Gin_postgres_redis_loan_tracker/db"
	"Gin_postgres_redis_loan_tracker/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type LoanController struct{ *Srv }

func NewLoanController(s *Srv) *LoanController { return &LoanController{Srv: s} }

// POST /api/loans/checkout
func (lc *LoanController) Checkout(c *gin.Context) {
	var in struct {
		StudentID   string `json:"student_id" binding:"required"`
		EquipmentID string `json:"equipment_id" binding:"required"`
		DateDue     string `json:"date_due" binding:"required,civildate"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	loan, err := lc.Loans.Checkout(c.Request.Context(), services.CheckoutParams{
		ActorID:     app.UserID(c),
		StudentID:   in.StudentID,
		EquipmentID: in.EquipmentID,
		DateDue:     in.DateDue,
	})
	if err != nil {
		lc.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"message": "Equipment checked out successfully", "loan": loan})
}

// POST /api/loans/:id/return
func (lc *LoanController) Return(c *gin.Context) {
	loan, err := lc.Loans.Return(c.Request.Context(), services.ReturnParams{ActorID: app.UserID(c), LoanID: c.Param("id")})
	if err != nil {
		lc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"message": "Equipment returned successfully", "loan": loan})
}

// POST /api/loans/:id/return-with-damage
func (lc *LoanController) ReturnWithDamage(c *gin.Context) {
	var in struct {
		DamageStatus string           `json:"damage_status" binding:"damagestatus"`
		DamageNotes  string           `json:"damage_notes"`
		NewCondition string           `json:"new_condition"`
		DamageFine   *decimal.Decimal `json:"damage_fine"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	res, err := lc.Loans.ReturnWithAssessment(c.Request.Context(), services.AssessmentParams{
		ActorID:      app.UserID(c),
		LoanID:       c.Param("id"),
		DamageStatus: in.DamageStatus,
		DamageNotes:  in.DamageNotes,
		NewCondition: in.NewCondition,
		DamageFine:   in.DamageFine,
	})
	if err != nil {
		lc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{
		"message":           "Equipment returned with damage assessment",
		"loan":              res.Loan,
		"damage_assessment": res.Assessment,
	})
}

// POST /api/loans/:id/renew
func (lc *LoanController) Renew(c *gin.Context) {
	var in struct {
		DateDue string `json:"date_due" binding:"required,civildate"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	loan, err := lc.Loans.Renew(c.Request.Context(), services.RenewParams{ActorID: app.UserID(c), LoanID: c.Param("id"), NewDue: in.DateDue})
	if err != nil {
		lc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"message": "Loan renewed", "loan": loan})
}

// GET /api/loans, /api/search/loans
func (lc *LoanController) List(c *gin.Context) {
	q := db.LoanQuery{
		Q:           c.Query("q"),
		Status:      c.Query("status"),
		StudentID:   c.Query("student_id"),
		EquipmentID: c.Query("equipment_id"),
		PageParams:  pageParams(c),
	}
	for key, dst := range map[string]**time.Time{"date_from": &q.From, "date_to": &q.To} {
		if v := c.Query(key); v != "" {
			d, err := services.ParseDate(v)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, app.H{"error": "invalid date format, use YYYY-MM-DD", "field": key})
				return
			}
			*dst = &d
		}
	}
	if c.Query("overdue") == "1" {
		today := services.CivilDate(time.Now())
		q.OverdueOn = &today
	}
	res, err := lc.Loans.Search(c.Request.Context(), q)
	if err != nil {
		lc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/loans/active
func (lc *LoanController) Active(c *gin.Context) {
	res, err := lc.Loans.Active(c.Request.Context(), pageParams(c))
	if err != nil {
		lc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/loans/overdue
func (lc *LoanController) Overdue(c *gin.Context) {
	out, err := lc.Loans.QueryOverdue(c.Request.Context())
	if err != nil {
		lc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (lc *LoanController) Get(c *gin.Context) {
	loan, err := lc.Loans.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		lc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

// GET /api/loans/:id/return-detail
func (lc *LoanController) ReturnDetail(c *gin.Context) {
	d, err := lc.Loans.ReturnDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		lc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// GET /api/loans/:id/email-logs
func (lc *LoanController) EmailLogs(c *gin.Context) {
	logs, err := lc.Loans.EmailLogs(c.Request.Context(), c.Param("id"))
	if err != nil {
		lc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}
