package middleware

import (
	"context"
	"net/http"
	"strings"

	"courseplatform/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const userIDKey = "userId"

type TokenValidator interface {
	ValidateAccess(token string) (uuid.UUID, error)
}

func AuthMiddleware(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		accessToken, ok := bearer(authHeader)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		userID, err := v.ValidateAccess(accessToken)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// OptionalAuth identifies the user when a valid token is sent and lets
// guests through otherwise.
func OptionalAuth(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if accessToken, ok := bearer(c.GetHeader("Authorization")); ok {
			if userID, err := v.ValidateAccess(accessToken); err == nil {
				c.Set(userIDKey, userID)
			}
		}
		c.Next()
	}
}

func bearer(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// UserID returns the authenticated user, uuid.Nil for guests.
func UserID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

type ProfileGetter interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*domain.Profile, error)
}

// AdminOnly must run after AuthMiddleware.
func AdminOnly(profiles ProfileGetter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := profiles.GetProfile(c.Request.Context(), UserID(c))
		if err != nil {
			logger.Warn("admin check failed", zap.String("user_id", UserID(c).String()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
		if !p.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
		c.Next()
	}
}
