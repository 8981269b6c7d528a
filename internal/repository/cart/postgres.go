package cart

import (
	"context"

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

const itemsQuery = `
SELECT ci.id::text, ci.user_id, ci.product_id::text,
       COALESCE(p.shop_id::text, ''), COALESCE(p.name, ''),
       ci.unit_price, ci.quantity, ci.added_at
FROM cart_items ci
LEFT JOIN products p ON p.id = ci.product_id
WHERE ci.user_id = $1
ORDER BY ci.added_at ASC
`

func (r *postgresRepo) ItemsByUser(ctx context.Context, userID string) ([]domain.CartItem, error) {
	rows, err := r.pool.Query(ctx, itemsQuery, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		var it domain.CartItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.ProductID, &it.ShopID, &it.Name, &it.UnitPrice, &it.Quantity, &it.AddedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *postgresRepo) Add(ctx context.Context, userID string, product domain.Product, quantity int) error {
	const q = `
INSERT INTO cart_items (user_id, product_id, quantity, unit_price)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, product_id)
DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
`
	_, err := r.pool.Exec(ctx, q, userID, product.ID, quantity, product.Price)
	return err
}

func (r *postgresRepo) ChangeQuantity(ctx context.Context, userID, itemID string, quantity int) error {
	cmd, err := r.pool.Exec(ctx, `
UPDATE cart_items
SET quantity = $1
WHERE id = $2 AND user_id = $3
`, quantity, itemID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) Remove(ctx context.Context, userID, itemID string) error {
	cmd, err := r.pool.Exec(ctx, `
DELETE FROM cart_items
WHERE id = $1 AND user_id = $2
`, itemID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ItemsForUpdateTx re-reads the cart inside the checkout transaction so the
// rows that get cleared are exactly the rows that were converted.
func ItemsForUpdateTx(ctx context.Context, tx pgx.Tx, userID string) ([]domain.CartItem, error) {
	rows, err := tx.Query(ctx, `
SELECT ci.id::text, ci.user_id, ci.product_id::text,
       COALESCE(p.shop_id::text, ''), COALESCE(p.name, ''),
       ci.unit_price, ci.quantity, ci.added_at
FROM cart_items ci
LEFT JOIN products p ON p.id = ci.product_id
WHERE ci.user_id = $1
ORDER BY ci.added_at ASC
FOR UPDATE OF ci
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		var it domain.CartItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.ProductID, &it.ShopID, &it.Name, &it.UnitPrice, &it.Quantity, &it.AddedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ClearTx empties the cart inside the checkout transaction. If the
// surrounding write fails the cart stays untouched.
func ClearTx(ctx context.Context, tx pgx.Tx, userID string) error {
	_, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}
