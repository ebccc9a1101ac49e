package controllers

import (
	"net/http"

	"Gin_postgres_redis_loan_tracker/app"
	"Gin_postgres_redis_loan_tracker/db"
	"Gin_postgres_redis_loan_tracker/services"

	"github.com/gin-gonic/gin"
)

type DirectoryController struct{ *Srv }

func NewDirectoryController(s *Srv) *DirectoryController { return &DirectoryController{Srv: s} }

type studentBody struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Program   *string `json:"program"`
	YearLevel *int    `json:"year_level"`
	Email     *string `json:"email"`
	Status    *string `json:"status"`
}

func (b studentBody) input() services.StudentInput {
	return services.StudentInput{
		FirstName: b.FirstName,
		LastName:  b.LastName,
		Program:   b.Program,
		YearLevel: b.YearLevel,
		Email:     b.Email,
		Status:    b.Status,
	}
}

// GET /api/students, /api/search/students
func (dc *DirectoryController) ListStudents(c *gin.Context) {
	year, ok := optionalInt(c, "year_level")
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, app.H{"error": "year_level must be a number"})
		return
	}
	res, err := dc.Directory.SearchStudents(c.Request.Context(), db.StudentQuery{
		Q:          c.Query("q"),
		Program:    c.Query("program"),
		YearLevel:  year,
		Status:     c.Query("status"),
		PageParams: pageParams(c),
	})
	if err != nil {
		dc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (dc *DirectoryController) GetStudent(c *gin.Context) {
	s, err := dc.Directory.GetStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		dc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (dc *DirectoryController) CreateStudent(c *gin.Context) {
	var in studentBody
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	s, err := dc.Directory.CreateStudent(c.Request.Context(), app.UserID(c), in.input())
	if err != nil {
		dc.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (dc *DirectoryController) UpdateStudent(c *gin.Context) {
	var in studentBody
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	s, err := dc.Directory.UpdateStudent(c.Request.Context(), app.UserID(c), c.Param("id"), in.input())
	if err != nil {
		dc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (dc *DirectoryController) DeleteStudent(c *gin.Context) {
	if err := dc.Directory.DeleteStudent(c.Request.Context(), app.UserID(c), c.Param("id")); err != nil {
		dc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"message": "Student deleted"})
}

// GET /api/filters/programs
func (dc *DirectoryController) Programs(c *gin.Context) {
	out, err := dc.Directory.Programs(c.Request.Context())
	if err != nil {
		dc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type equipmentBody struct {
	Name               *string `json:"name"`
	Model              *string `json:"model"`
	Category           *string `json:"category"`
	SerialNumber       *string `json:"serial_number"`
	Condition          *string `json:"condition"`
	AvailabilityStatus *string `json:"availability_status"`
}

func (b equipmentBody) input() services.EquipmentInput {
	return services.EquipmentInput{
		Name:               b.Name,
		Model:              b.Model,
		Category:           b.Category,
		SerialNumber:       b.SerialNumber,
		Condition:          b.Condition,
		AvailabilityStatus: b.AvailabilityStatus,
	}
}

func equipmentQuery(c *gin.Context) db.EquipmentQuery {
	return db.EquipmentQuery{
		Q:            c.Query("q"),
		Category:     c.Query("category"),
		Condition:    c.Query("condition"),
		Availability: c.Query("availability_status"),
		PageParams:   pageParams(c),
	}
}

// GET /api/equipment, /api/search/equipment
func (dc *DirectoryController) ListEquipment(c *gin.Context) {
	res, err := dc.Directory.SearchEquipment(c.Request.Context(), equipmentQuery(c))
	if err != nil {
		dc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/equipment/available
func (dc *DirectoryController) AvailableEquipment(c *gin.Context) {
	res, err := dc.Directory.AvailableEquipment(c.Request.Context(), equipmentQuery(c))
	if err != nil {
		dc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (dc *DirectoryController) GetEquipment(c *gin.Context) {
	e, err := dc.Directory.GetEquipment(c.Request.Context(), c.Param("id"))
	if err != nil {
		dc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (dc *DirectoryController) CreateEquipment(c *gin.Context) {
	var in equipmentBody
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	e, err := dc.Directory.CreateEquipment(c.Request.Context(), app.UserID(c), in.input())
	if err != nil {
		dc.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (dc *DirectoryController) UpdateEquipment(c *gin.Context) {
	var in equipmentBody
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	e, err := dc.Directory.UpdateEquipment(c.Request.Context(), app.UserID(c), c.Param("id"), in.input())
	if err != nil {
		dc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (dc *DirectoryController) DeleteEquipment(c *gin.Context) {
	if err := dc.Directory.DeleteEquipment(c.Request.Context(), app.UserID(c), c.Param("id")); err != nil {
		dc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"message": "Equipment deleted"})
}

// GET /api/filters/categories
func (dc *DirectoryController) Categories(c *gin.Context) {
	out, err := dc.Directory.Categories(c.Request.Context())
	if err != nil {
		dc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/filters/conditions
func (dc *DirectoryController) Conditions(c *gin.Context) {
	c.JSON(http.StatusOK, dc.Directory.Conditions())
}

func (dc *DirectoryController) ListStaff(c *gin.Context) {
	out, err := dc.Directory.ListStaff(c.Request.Context())
	if err != nil {
		dc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (dc *DirectoryController) CreateStaff(c *gin.Context) {
	var in struct {
		Name  string `json:"name" binding:"required"`
		Email string `json:"email" binding:"required,email"`
		Role  string `json:"role"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	s, err := dc.Directory.CreateStaff(c.Request.Context(), app.UserID(c), services.StaffInput{Name: in.Name, Email: in.Email, Role: in.Role})
	if err != nil {
		dc.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}
