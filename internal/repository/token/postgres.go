package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shoporders/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Create(ctx context.Context, t Token) error {
	const q = `
INSERT INTO auth_tokens (token, user_id, expires_at)
VALUES ($1, $2, $3)
`
	_, err := r.pool.Exec(ctx, q, t.Token, t.UserID, t.ExpiresAt)
	return err
}

// Verify resolves a bearer token to its user id. Expired or unknown tokens
// both come back as ErrAuthRequired so callers cannot tell them apart.
func (r *postgresRepo) Verify(ctx context.Context, token string) (string, error) {
	const q = `
SELECT user_id, expires_at
FROM auth_tokens
WHERE token = $1
LIMIT 1
`
	var userID string
	var expiresAt time.Time
	if err := r.pool.QueryRow(ctx, q, token).Scan(&userID, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: unknown token", domain.ErrAuthRequired)
		}
		return "", err
	}
	if time.Now().After(expiresAt) {
		return "", fmt.Errorf("%w: token expired", domain.ErrAuthRequired)
	}
	return userID, nil
}

func (r *postgresRepo) Delete(ctx context.Context, token string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM auth_tokens WHERE token = $1`, token)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
