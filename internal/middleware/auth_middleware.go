package middleware

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
	"github.com/lfgraphics/khadimemillat-sub007/pkg/jwt"
)

// Context keys set by the auth middleware.
const (
	ContextUserID    = "userID"
	ContextUserEmail = "userEmail"
	ContextUserRole  = "userRole"
)

// WorkerKeyHeader carries the shared secret of background delivery workers.
const WorkerKeyHeader = "X-Worker-Key"

// WorkerPrincipalID identifies requests authenticated by worker key.
const WorkerPrincipalID = "delivery-worker"

// TokenParser verifies bearer tokens
type TokenParser interface {
	Parse(tokenString string) (*jwt.Claims, error)
}

// JWTAuthMiddleware creates a gin middleware for JWT authentication.
func JWTAuthMiddleware(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticate(c, tokens) {
			return
		}
		c.Next()
	}
}

// RequireRoles aborts with 403 unless the authenticated caller holds one of roles.
// It must run after JWTAuthMiddleware.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authorize(c, roles) {
			return
		}
		c.Next()
	}
}

// WorkerKeyOrRoles admits background workers presenting the shared worker key,
// and otherwise falls back to bearer authentication plus the role check.
func WorkerKeyOrRoles(workerKey string, tokens TokenParser, roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if presented := c.GetHeader(WorkerKeyHeader); presented != "" {
			if workerKey == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(workerKey)) != 1 {
				slog.Warn("rejected worker key", "path", c.FullPath(), "requestId", c.GetString(ContextRequestID))
				abortJSON(c, http.StatusUnauthorized, "Invalid worker key")
				return
			}
			c.Set(ContextUserID, WorkerPrincipalID)
			c.Set(ContextUserRole, string(models.RoleAdmin))
			c.Next()
			return
		}
		if !authenticate(c, tokens) || !authorize(c, roles) {
			return
		}
		c.Next()
	}
}

// CurrentPrincipal returns the caller resolved by the auth middleware.
func CurrentPrincipal(c *gin.Context) (models.Principal, bool) {
	id := c.GetString(ContextUserID)
	if id == "" {
		return models.Principal{}, false
	}
	return models.Principal{
		ID:    id,
		Email: c.GetString(ContextUserEmail),
		Role:  models.Role(c.GetString(ContextUserRole)),
	}, true
}

func authenticate(c *gin.Context, tokens TokenParser) bool {
	const bearerSchema = "Bearer "
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		abortJSON(c, http.StatusUnauthorized, "Authorization header is required")
		return false
	}
	if !strings.HasPrefix(authHeader, bearerSchema) {
		abortJSON(c, http.StatusUnauthorized, "Authorization header must start with Bearer ")
		return false
	}

	claims, err := tokens.Parse(strings.TrimSpace(authHeader[len(bearerSchema):]))
	if err != nil {
		slog.Debug("token validation failed", "error", err, "requestId", c.GetString(ContextRequestID))
		if errors.Is(err, jwt.ErrExpiredToken) {
			abortJSON(c, http.StatusUnauthorized, "Token has expired")
		} else {
			abortJSON(c, http.StatusUnauthorized, "Invalid token")
		}
		return false
	}

	c.Set(ContextUserID, claims.Subject)
	c.Set(ContextUserEmail, claims.Email)
	c.Set(ContextUserRole, claims.Role)
	return true
}

func authorize(c *gin.Context, roles []models.Role) bool {
	principal, ok := CurrentPrincipal(c)
	if !ok {
		abortJSON(c, http.StatusUnauthorized, "Authentication required")
		return false
	}
	for _, role := range roles {
		if principal.Role == role {
			return true
		}
	}
	abortJSON(c, http.StatusForbidden, "Insufficient permissions")
	return false
}

func abortJSON(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": message})
}
