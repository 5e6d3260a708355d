package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/centre-social/backend/internal/auth"
	"github.com/centre-social/backend/internal/models"
	"github.com/centre-social/backend/pkg/response"
)

const (
	// ContextUserID is the key for the administrator ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for the administrator role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for the administrator email in gin context.
	ContextUserEmail = "user_email"
)

// JWT returns a middleware that validates JWT and sets administrator claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.AdminID)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}

// CurrentActor returns the authenticated administrator. Outside JWT-protected routes it
// returns a zero Actor, which holds no permission.
func CurrentActor(c *gin.Context) models.Actor {
	var a models.Actor
	if v, ok := c.Get(ContextUserID); ok {
		a.ID, _ = v.(uuid.UUID)
	}
	if v, ok := c.Get(ContextUserRole); ok {
		role, _ := v.(string)
		a.Role = models.Role(role)
	}
	return a
}
