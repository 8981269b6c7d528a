package httpserver

import (
	"context"
	"fmt"
	"strings"

	"shoporders/internal/domain"
	"github.com/gin-gonic/gin"
)

// TokenVerifier resolves a bearer token to a user id. Token issuance lives in
// the account service; this API only validates.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

const userIDKey = "userID"

// requireAuth extracts and verifies the bearer token, storing the user id for
// handlers downstream.
func requireAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(c, fmt.Errorf("%w: missing bearer token", domain.ErrAuthRequired))
			return
		}
		userID, err := verifier.Verify(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			writeError(c, fmt.Errorf("%w: %v", domain.ErrAuthRequired, err))
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func currentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
