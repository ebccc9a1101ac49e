package controllers

import (
	"net/http"

	"Gin_postgres_redis_loan_tracker/app"
	"Gin_postgres_redis_loan_tracker/db"
	"Gin_postgres_redis_loan_tracker/services"

	"github.com/gin-gonic/gin"
)

type ReservationController struct{ *Srv }

func NewReservationController(s *Srv) *ReservationController {
	return &ReservationController{Srv: s}
}

// POST /api/reservations → 201 | 409 on overlap
func (rc *ReservationController) Create(c *gin.Context) {
	var in struct {
		StudentID   string `json:"student_id" binding:"required"`
		EquipmentID string `json:"equipment_id" binding:"required"`
		DateFrom    string `json:"date_from" binding:"required,civildate"`
		DateTo      string `json:"date_to" binding:"required,civildate"`
		Notes       string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	res, err := rc.Reservations.Create(c.Request.Context(), services.CreateReservationParams{
		ActorID:     app.UserID(c),
		StudentID:   in.StudentID,
		EquipmentID: in.EquipmentID,
		DateFrom:    in.DateFrom,
		DateTo:      in.DateTo,
		Notes:       in.Notes,
	})
	if err != nil {
		rc.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"message": "Reservation created successfully", "reservation": res})
}

func (rc *ReservationController) list(c *gin.Context, q db.ReservationQuery) {
	q.PageParams = pageParams(c)
	if q.Status == "" {
		q.Status = c.Query("status")
	}
	res, err := rc.Reservations.List(c.Request.Context(), q)
	if err != nil {
		rc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/reservations?status=&student_id=&equipment_id=
func (rc *ReservationController) List(c *gin.Context) {
	rc.list(c, db.ReservationQuery{StudentID: c.Query("student_id"), EquipmentID: c.Query("equipment_id")})
}

// GET /api/reservations/equipment/:id
func (rc *ReservationController) ByEquipment(c *gin.Context) {
	rc.list(c, db.ReservationQuery{EquipmentID: c.Param("id")})
}

// GET /api/reservations/student/:id
func (rc *ReservationController) ByStudent(c *gin.Context) {
	rc.list(c, db.ReservationQuery{StudentID: c.Param("id")})
}

func (rc *ReservationController) Get(c *gin.Context) {
	res, err := rc.Reservations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		rc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// PUT /api/reservations/:id
func (rc *ReservationController) Update(c *gin.Context) {
	var in struct {
		Status *string `json:"status"`
		Notes  *string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	res, err := rc.Reservations.Update(c.Request.Context(), services.UpdateReservationParams{
		ActorID: app.UserID(c),
		ID:      c.Param("id"),
		Status:  in.Status,
		Notes:   in.Notes,
	})
	if err != nil {
		rc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"message": "Reservation updated successfully", "reservation": res})
}

// DELETE /api/reservations/:id 只取消，不删行
func (rc *ReservationController) Cancel(c *gin.Context) {
	res, err := rc.Reservations.Cancel(c.Request.Context(), app.UserID(c), c.Param("id"))
	if err != nil {
		rc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"message": "Reservation cancelled", "reservation": res})
}
