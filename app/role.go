package app

import (
	"net/http"

	"Gin_postgres_redis_loan_tracker/models"

	"github.com/gin-gonic/gin"
)

// RequireRole lets through users whose role ranks at least min
// (admin > staff > borrower). It must run after AuthRequired.
func RequireRole(min models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		if !RoleOf(c).AtLeast(min) {
			c.AbortWithStatusJSON(http.StatusForbidden, H{"error": "forbidden", "required_role": min})
			return
		}
		c.Next()
	}
}
