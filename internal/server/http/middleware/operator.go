package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/servenow/internal/server/http/dto"
)

// OperatorKeyHeader carries the restaurant staff key.
const OperatorKeyHeader = "X-Operator-Key"

// KeyVerifier validates operator keys.
type KeyVerifier interface {
	Verify(key string) error
}

// OperatorRequired rejects requests without a valid operator key.
func OperatorRequired(verifier KeyVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := verifier.Verify(c.GetHeader(OperatorKeyHeader)); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.OrderEnvelope{Error: "operator key required", Code: dto.CodeUnauthorized})
			return
		}
		c.Next()
	}
}
