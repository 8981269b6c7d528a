package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Fixed identifiers keep Apply idempotent across runs.
const (
	shopID        = "5f1c2b4e-9c1d-4a58-8e51-1f2d3c4b5a69"
	sellerUserID  = "seed-seller"
	demoUserID    = "seed-customer"
	sellerToken   = "seed-seller-token"
	customerToken = "seed-customer-token"
)

type productSeed struct {
	ID    string
	Name  string
	Price int64
	Stock int
}

var products = []productSeed{
	{ID: "0d9a1f6b-3c2e-4d5f-8a7b-6c5d4e3f2a1b", Name: "Iced Coffee", Price: 18000, Stock: 25},
	{ID: "1e8b2a7c-4d3f-5e6a-9b8c-7d6e5f4a3b2c", Name: "Croissant", Price: 22000, Stock: 12},
	{ID: "2f9c3b8d-5e4a-4f7b-8c9d-8e7f6a5b4c3d", Name: "Matcha Latte", Price: 28000, Stock: 1},
}

// Apply inserts sample data for manual testing: one shop with three products,
// a customer with a prefilled cart, and long-lived tokens for both accounts.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	if err := ensureShop(ctx, pool); err != nil {
		return fmt.Errorf("ensure shop: %w", err)
	}
	for _, p := range products {
		if err := upsertProduct(ctx, pool, p); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.Name, err)
		}
	}
	if err := fillCart(ctx, pool); err != nil {
		return fmt.Errorf("fill cart: %w", err)
	}
	for user, token := range map[string]string{sellerUserID: sellerToken, demoUserID: customerToken} {
		if err := upsertToken(ctx, pool, user, token); err != nil {
			return fmt.Errorf("upsert token for %s: %w", user, err)
		}
	}
	return nil
}

func ensureShop(ctx context.Context, pool *pgxpool.Pool) error {
	const q = `
INSERT INTO shops (id, owner_id, name)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
`
	_, err := pool.Exec(ctx, q, shopID, sellerUserID, "Corner Coffee")
	return err
}

func upsertProduct(ctx context.Context, pool *pgxpool.Pool, p productSeed) error {
	const q = `
INSERT INTO products (id, shop_id, name, price, stock)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE
SET name  = EXCLUDED.name,
    price = EXCLUDED.price,
    stock = EXCLUDED.stock
`
	_, err := pool.Exec(ctx, q, p.ID, shopID, p.Name, p.Price, p.Stock)
	return err
}

func fillCart(ctx context.Context, pool *pgxpool.Pool) error {
	const q = `
INSERT INTO cart_items (user_id, product_id, quantity, unit_price)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, product_id) DO UPDATE
SET quantity = EXCLUDED.quantity, unit_price = EXCLUDED.unit_price
`
	for _, line := range []struct {
		product  productSeed
		quantity int
	}{
		{products[0], 2},
		{products[1], 1},
	} {
		if _, err := pool.Exec(ctx, q, demoUserID, line.product.ID, line.quantity, line.product.Price); err != nil {
			return err
		}
	}
	return nil
}

func upsertToken(ctx context.Context, pool *pgxpool.Pool, userID, token string) error {
	const q = `
INSERT INTO auth_tokens (token, user_id, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (token) DO UPDATE SET expires_at = EXCLUDED.expires_at
`
	_, err := pool.Exec(ctx, q, token, userID, time.Now().Add(30*24*time.Hour))
	return err
}
