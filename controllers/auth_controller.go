package controllers

import (
	"net/http"
	"strings"
	"time"

	"Gin_postgres_redis_loan_tracker/app"
	"Gin_postgres_redis_loan_tracker/services"

	"github.com/gin-gonic/gin"
)

type AuthController struct{ *Srv }

func NewAuthController(s *Srv) *AuthController { return &AuthController{Srv: s} }

// 统一设置业务会话 Cookie
func (ac *AuthController) setAppCookie(w http.ResponseWriter, sessionID string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     app.AppSessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   strings.HasPrefix(ac.WebOrigin, "https://"),
		MaxAge:   int(maxAge / time.Second),
	})
}

// POST /api/auth/register
func (ac *AuthController) Register(c *gin.Context) {
	var in struct {
		Username  string `json:"username" binding:"required"`
		Email     string `json:"email" binding:"required"`
		Password  string `json:"password" binding:"required"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	u, err := ac.Auth.Register(c.Request.Context(), services.RegisterParams{
		Username:  in.Username,
		Email:     in.Email,
		Password:  in.Password,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	})
	if err != nil {
		ac.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"message": "User registered successfully", "user": u})
}

// POST /api/auth/login：建会话 + 签发 Bearer token
func (ac *AuthController) Login(c *gin.Context) {
	var in struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	u, err := ac.Auth.Login(ctx, in.Username, in.Password)
	if err != nil {
		ac.fail(c, err)
		return
	}
	sid, err := ac.Sessions.Create(ctx, u.ID, string(u.Role))
	if err != nil {
		ac.fail(c, err)
		return
	}
	token, exp, err := ac.Tokens.Issue(u.ID, string(u.Role))
	if err != nil {
		ac.fail(c, err)
		return
	}
	ac.setAppCookie(c.Writer, sid, ac.Sessions.TTL())
	c.JSON(http.StatusOK, app.H{
		"message":    "Login successful",
		"user":       u,
		"token":      token,
		"expires_at": exp.UTC(),
	})
}

// POST /api/auth/logout：删 Redis 会话，Cookie 置空
func (ac *AuthController) Logout(c *gin.Context) {
	if sid := c.GetString(app.CtxSession); sid != "" {
		if err := ac.Sessions.Delete(c.Request.Context(), sid); err != nil {
			ac.Logger.Warn("delete session", "error", err)
		}
	}
	ac.setAppCookie(c.Writer, "", -time.Second)
	c.JSON(http.StatusOK, app.H{"message": "Logged out successfully"})
}

// GET /api/auth/me
func (ac *AuthController) Me(c *gin.Context) {
	u, err := ac.Auth.Get(c.Request.Context(), app.UserID(c))
	if err != nil {
		ac.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"user": u})
}

// POST /api/auth/change-password
func (ac *AuthController) ChangePassword(c *gin.Context) {
	var in struct {
		OldPassword string `json:"old_password" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	if err := ac.Auth.ChangePassword(c.Request.Context(), app.UserID(c), in.OldPassword, in.NewPassword); err != nil {
		ac.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"message": "Password changed successfully"})
}
