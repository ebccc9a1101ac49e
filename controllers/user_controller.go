package controllers

import (
	"net/http"

	"Gin_postgres_redis_loan_tracker/app"
	"Gin_postgres_redis_loan_tracker/db"
	"Gin_postgres_redis_loan_tracker/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type UserController struct{ *Srv }

func NewUserController(s *Srv) *UserController { return &UserController{Srv: s} }

// userIDParam 校验路径里的 UUID
func userIDParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, app.H{"error": "invalid user id"})
		return "", false
	}
	return id, true
}

// GET /api/users?q=alice&role=staff&status=active&page=1&per_page=20
func (uc *UserController) ListUsers(c *gin.Context) {
	res, err := uc.Auth.List(c.Request.Context(), db.UserQuery{
		Q:          c.Query("q"),
		Role:       c.Query("role"),
		Status:     c.Query("status"),
		PageParams: pageParams(c),
	})
	if err != nil {
		uc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/users/:id
func (uc *UserController) GetUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	u, err := uc.Auth.Get(c.Request.Context(), id)
	if err != nil {
		uc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"user": u})
}

// PUT /api/users/:id
func (uc *UserController) UpdateUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	var in struct {
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
		Email     *string `json:"email"`
		Role      *string `json:"role"`
		Status    *string `json:"status"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	u, err := uc.Auth.Update(c.Request.Context(), services.UpdateUserParams{
		ActorID:   app.UserID(c),
		ID:        id,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Role:      in.Role,
		Status:    in.Status,
	})
	if err != nil {
		uc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"message": "User updated successfully", "user": u})
}

// POST /api/users/:id/disable
func (uc *UserController) DisableUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	u, err := uc.Auth.Disable(c.Request.Context(), app.UserID(c), id)
	if err != nil {
		uc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"message": "User disabled successfully", "user": u})
}

// DELETE /api/users/:id（不允许删除自己或最后一个管理员）
func (uc *UserController) DeleteUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	if err := uc.Auth.Delete(c.Request.Context(), app.UserID(c), id); err != nil {
		uc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}
