package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/harentsoaR/doctors-portal/internal/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestID tags each request with an id, reusing the client's when given,
// and puts a logger carrying it into the request context.
func RequestID(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)

		log := base.With("request_id", id)
		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), log))
		c.Next()
	}
}
