package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bhandras/netconsole/internal/crypto"
)

const (
	userIDKey    = "userID"
	sessionIDKey = "sessionID"
	claimsKey    = "claims"
)

// AuthMiddleware creates a middleware that validates JWT tokens
func AuthMiddleware(jwtManager *crypto.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, "missing authorization header")
			return
		}

		// Extract token (format: "Bearer <token>")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abort(c, "invalid authorization header format")
			return
		}

		claims, err := jwtManager.VerifyToken(parts[1])
		if err != nil {
			abort(c, "invalid token")
			return
		}

		c.Set(userIDKey, claims.UserID())
		c.Set(sessionIDKey, claims.SessionID())
		c.Set(claimsKey, claims)

		c.Next()
	}
}

func abort(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"code":    http.StatusUnauthorized,
		"message": message,
	})
}

// GetUserID extracts the user ID from the Gin context
func GetUserID(c *gin.Context) (string, bool) {
	return getString(c, userIDKey)
}

// GetSessionID extracts the login session id of the token.
func GetSessionID(c *gin.Context) (string, bool) {
	return getString(c, sessionIDKey)
}

// SetIdentity stores the caller identity the way AuthMiddleware does.
func SetIdentity(c *gin.Context, userID, sessionID string) {
	c.Set(userIDKey, userID)
	c.Set(sessionIDKey, sessionID)
}

func getString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
