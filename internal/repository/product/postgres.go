package product

import (
	"context"
	"errors"

	"shoporders/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger zerolog.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	const q = `
SELECT id::text, shop_id::text, name, price, stock, created_at
FROM products
WHERE id = $1
`
	var p domain.Product
	err := r.pool.QueryRow(ctx, q, id).Scan(&p.ID, &p.ShopID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepo) GetShop(ctx context.Context, id string) (*domain.Shop, error) {
	const q = `
SELECT id::text, owner_id, name, created_at
FROM shops
WHERE id = $1
`
	return r.fetchShop(ctx, q, id)
}

func (r *postgresRepo) GetShopByOwner(ctx context.Context, ownerID string) (*domain.Shop, error) {
	const q = `
SELECT id::text, owner_id, name, created_at
FROM shops
WHERE owner_id = $1
`
	return r.fetchShop(ctx, q, ownerID)
}

func (r *postgresRepo) fetchShop(ctx context.Context, q string, arg any) (*domain.Shop, error) {
	var s domain.Shop
	err := r.pool.QueryRow(ctx, q, arg).Scan(&s.ID, &s.OwnerID, &s.Name, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ReserveStockTx validates availability and decrements stock as one step
// under a row lock, inside the caller's transaction. Two concurrent
// checkouts for the same product serialize here, so the stale-read oversell
// window does not exist.
func ReserveStockTx(ctx context.Context, tx pgx.Tx, productID string, qty int) (*domain.Product, error) {
	const q = `
SELECT id::text, shop_id::text, name, price, stock, created_at
FROM products
WHERE id = $1
FOR UPDATE
`
	var p domain.Product
	err := tx.QueryRow(ctx, q, productID).Scan(&p.ID, &p.ShopID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.ProductGoneError{ProductID: productID}
		}
		return nil, err
	}
	if p.Stock < qty {
		return nil, &domain.InsufficientStockError{
			ProductID: p.ID,
			Name:      p.Name,
			Requested: qty,
			Available: p.Stock,
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock - $1 WHERE id = $2`, qty, productID); err != nil {
		return nil, err
	}
	p.Stock -= qty
	return &p, nil
}

// ReleaseStockTx restores stock on cancellation. The increment is uncapped
// and always succeeds for an existing product.
func ReleaseStockTx(ctx context.Context, tx pgx.Tx, productID string, qty int) error {
	_, err := tx.Exec(ctx, `UPDATE products SET stock = stock + $1 WHERE id = $2`, qty, productID)
	return err
}
