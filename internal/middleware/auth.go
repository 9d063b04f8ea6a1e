package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/doctors-portal/internal/auth"
	"github.com/harentsoaR/doctors-portal/internal/logger"
)

// callerKey is the gin context key holding the verified email.
const callerKey = "callerEmail"

// TokenVerifier checks a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// AdminChecker reports whether an email belongs to an admin.
type AdminChecker interface {
	IsAdmin(ctx context.Context, email string) (bool, error)
}

// Gate builds the authentication and admin middleware.
type Gate struct {
	tokens TokenVerifier
	admins AdminChecker
}

func NewGate(tokens TokenVerifier, admins AdminChecker) *Gate {
	return &Gate{tokens: tokens, admins: admins}
}

// Authenticated requires a valid bearer token. A missing header is 401, any
// other failure is 403.
func (g *Gate) Authenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"authorization": false, "message": "Unauthorized access"})
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"authorization": false, "message": "Forbidden access"})
			return
		}

		claims, err := g.tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			logger.FromContext(c.Request.Context()).Debug("token rejected", "error", err)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"authorization": false, "message": "Forbidden access"})
			return
		}

		c.Set(callerKey, claims.Email)
		log := logger.FromContext(c.Request.Context()).With("caller", claims.Email)
		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), log))
		c.Next()
	}
}

// Admin requires the authenticated caller to hold the admin role. It must run
// after Authenticated.
func (g *Gate) Admin() gin.HandlerFunc {
	return func(c *gin.Context) {
		email := CallerEmail(c)
		if email == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "forbidden"})
			return
		}

		ok, err := g.admins.IsAdmin(c.Request.Context(), email)
		if err != nil {
			logger.FromContext(c.Request.Context()).Error("admin lookup failed", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify role"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "forbidden"})
			return
		}
		c.Next()
	}
}

// CallerEmail returns the email verified by Authenticated, or "".
func CallerEmail(c *gin.Context) string {
	return c.GetString(callerKey)
}
