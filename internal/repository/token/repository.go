package token

import (
	"context"
	"time"
)

// Token is an opaque bearer credential issued by the account service. This
// API only validates; issuance and revocation live elsewhere.
type Token struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type Repository interface {
	Create(ctx context.Context, t Token) error
	Verify(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
}
