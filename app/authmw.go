package app

import (
	"context"
	"net/http"
	"strings"

	"Gin_postgres_redis_loan_tracker/models"
	"Gin_postgres_redis_loan_tracker/session"

	"github.com/gin-gonic/gin"
)

const AppSessionCookie = "app_session"

// Context keys set by AuthRequired.
const (
	CtxUserID   = "userID"
	CtxUsername = "username"
	CtxRole     = "role"
	CtxSession  = "sessionID"
)

type SessionReader interface {
	Get(ctx context.Context, id string) (*session.AppSession, error)
	Delete(ctx context.Context, id string) error
}

type TokenParser interface {
	Parse(raw string) (*session.Claims, error)
}

type UserLookup interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

// AuthRequired accepts the session cookie or an Authorization: Bearer token.
// The role always comes from the stored user, never from the token.
func AuthRequired(sessions SessionReader, tokens TokenParser, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var userID, sid string
		if ck, err := c.Request.Cookie(AppSessionCookie); err == nil && ck.Value != "" {
			as, err := sessions.Get(ctx, ck.Value)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "invalid session"})
				return
			}
			userID, sid = as.UserID, ck.Value
		} else if raw, ok := bearer(c.GetHeader("Authorization")); ok {
			cl, err := tokens.Parse(raw)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "invalid token"})
				return
			}
			userID = cl.UserID
		} else {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}

		// 确认用户仍存在且处于启用状态
		u, err := users.FindUserByID(ctx, userID)
		if err != nil || u.Status != models.UserActive {
			if sid != "" {
				_ = sessions.Delete(ctx, sid)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		c.Set(CtxUserID, u.ID)
		c.Set(CtxUsername, u.Username)
		c.Set(CtxRole, u.Role)
		if sid != "" {
			c.Set(CtxSession, sid)
		}
		c.Next()
	}
}

func bearer(h string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(h, prefix))
	return raw, raw != ""
}

// UserID returns the authenticated user id, or "".
func UserID(c *gin.Context) string { return c.GetString(CtxUserID) }

// RoleOf returns the authenticated role, or "".
func RoleOf(c *gin.Context) models.Role {
	v, _ := c.Get(CtxRole)
	r, _ := v.(models.Role)
	return r
}
