package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mvasilkovs/astrobatch/internal/logging"
	"github.com/mvasilkovs/astrobatch/internal/server/auth"
)

const (
	ctxKeyUserID   = "userID"
	ctxKeyUsername = "username"
	ctxKeyIsAdmin  = "isAdmin"
)

// RequestLogger logs one line per request through the shared logger.
func RequestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}

// Authenticate validates the Bearer token and stores the caller's identity
// in the request context.
func Authenticate(secretKey []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{ErrorCode: codeUnauthorized})
			return
		}

		claims, err := auth.ParseToken(tokenString, secretKey)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{ErrorCode: codeUnauthorized})
			return
		}

		c.Set(ctxKeyUserID, claims.UserID)
		c.Set(ctxKeyUsername, claims.Username)
		c.Set(ctxKeyIsAdmin, claims.IsAdmin)
		c.Next()
	}
}

// RequireWebhookSecret guards machine-to-machine endpoints with the shared
// secret, compared in constant time.
func RequireWebhookSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		received := c.GetHeader("X-Webhook-Secret")
		if secret == "" || received == "" ||
			subtle.ConstantTimeCompare([]byte(received), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{ErrorCode: codeInvalidWebhookSecret})
			return
		}
		c.Next()
	}
}

func callerIdentity(c *gin.Context) (userID int64, username string, isAdmin bool) {
	userID = c.GetInt64(ctxKeyUserID)
	username = c.GetString(ctxKeyUsername)
	isAdmin = c.GetBool(ctxKeyIsAdmin)
	return
}
