package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shoporders/internal/domain"
	cartrepo "shoporders/internal/repository/cart"
	outboxrepo "shoporders/internal/repository/outbox"
	productrepo "shoporders/internal/repository/product"
	"github.com/google/uuid"
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

const orderColumns = `
id::text, user_id, shop_id::text, total_price, order_status,
payment_method, payment_status, gateway_order_id, gateway_transaction_id,
snap_token, redirect_url, confirmation_notes, proof_image_urls, notes,
created_at, updated_at`

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	o, err := scanOrder(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *postgresRepo) ListByUser(ctx context.Context, userID string, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	return r.list(ctx, `user_id`, userID, status, limit)
}

func (r *postgresRepo) ListByShop(ctx context.Context, shopID string, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	return r.list(ctx, `shop_id`, shopID, status, limit)
}

func (r *postgresRepo) list(ctx context.Context, column, value string, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := `SELECT ` + orderColumns + ` FROM orders WHERE ` + column + ` = $1`
	args := []any{value}
	if status != "" {
		q += ` AND order_status = $2`
		args = append(args, string(status))
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range orders {
		if err := r.loadItems(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// CreateFromCart converts the user's cart into an order: per-product
// validate-and-reserve under row locks, order and line-item inserts, cart
// clear, and the seller notification intent all commit as one transaction.
func (r *postgresRepo) CreateFromCart(ctx context.Context, in CreateInput) (*domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	cartItems, err := cartrepo.ItemsForUpdateTx(ctx, tx, in.UserID)
	if err != nil {
		return nil, err
	}
	if len(cartItems) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", domain.ErrValidation)
	}

	orderID := in.OrderID
	if orderID == "" {
		orderID = uuid.NewString()
	}
	now := time.Now().UTC()

	var (
		items  []domain.OrderItem
		total  int64
		shopID string
	)
	for _, ci := range cartItems {
		if ci.ShopID == "" {
			return nil, &domain.ProductGoneError{ProductID: ci.ProductID, Name: ci.Name}
		}
		p, err := productrepo.ReserveStockTx(ctx, tx, ci.ProductID, ci.Quantity)
		if err != nil {
			return nil, err
		}
		if shopID == "" {
			shopID = p.ShopID
		} else if shopID != p.ShopID {
			return nil, fmt.Errorf("%w: cart contains items from more than one shop", domain.ErrValidation)
		}
		subtotal := p.Price * int64(ci.Quantity)
		items = append(items, domain.OrderItem{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			ProductID: p.ID,
			ShopID:    p.ShopID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  ci.Quantity,
			Subtotal:  subtotal,
		})
		total += subtotal
	}

	if in.CachedCartTotal != total {
		r.logger.Warn().
			Str("order_id", orderID).
			Int64("cart_total", in.CachedCartTotal).
			Int64("recomputed_total", total).
			Msg("cart total differs from recomputed total, recomputed value wins")
	}

	o := &domain.Order{
		ID:         orderID,
		UserID:     in.UserID,
		ShopID:     shopID,
		Items:      items,
		TotalPrice: total,
		Status:     in.Method.InitialStatus(),
		Payment: domain.PaymentDetails{
			Method: in.Method,
			Status: domain.PaymentPending,
		},
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO orders (
	id, user_id, shop_id, total_price, order_status,
	payment_method, payment_status, notes, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
`, o.ID, o.UserID, o.ShopID, o.TotalPrice, string(o.Status),
		string(o.Payment.Method), string(o.Payment.Status), o.Notes, now); err != nil {
		return nil, err
	}

	for i, it := range items {
		if _, err := tx.Exec(ctx, `
INSERT INTO order_items (id, order_id, product_id, shop_id, name, unit_price, quantity, subtotal, position)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`, it.ID, it.OrderID, it.ProductID, it.ShopID, it.Name, it.UnitPrice, it.Quantity, it.Subtotal, i); err != nil {
			return nil, err
		}
	}

	if err := cartrepo.ClearTx(ctx, tx, in.UserID); err != nil {
		return nil, err
	}

	if in.Notify != nil {
		if err := outboxrepo.InsertTx(ctx, tx, *in.Notify); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

// Mutate serializes concurrent writers to the same order: the row is
// re-read under FOR UPDATE before apply runs, so transitions are always
// validated against current state, never a stale copy.
func (r *postgresRepo) Mutate(ctx context.Context, orderID string, apply MutateFn) (*domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	q := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	o, err := scanOrder(tx.QueryRow(ctx, q, orderID))
	if err != nil {
		return nil, err
	}
	if err := r.loadItemsTx(ctx, tx, o); err != nil {
		return nil, err
	}

	m, err := apply(o)
	if errors.Is(err, domain.ErrNoChange) {
		return o, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `
UPDATE orders SET
	order_status = $1,
	payment_status = $2,
	gateway_order_id = $3,
	gateway_transaction_id = $4,
	snap_token = $5,
	redirect_url = $6,
	confirmation_notes = $7,
	proof_image_urls = $8,
	updated_at = $9
WHERE id = $10
`, string(o.Status), string(o.Payment.Status), o.Payment.GatewayOrderID,
		o.Payment.GatewayTransactionID, o.Payment.SnapToken, o.Payment.RedirectURL,
		o.Payment.ConfirmationNotes, o.Payment.ProofImageURLs, now, o.ID); err != nil {
		return nil, err
	}
	o.UpdatedAt = now

	if m.ReleaseStock {
		for _, it := range o.Items {
			if err := productrepo.ReleaseStockTx(ctx, tx, it.ProductID, it.Quantity); err != nil {
				return nil, err
			}
		}
	}

	if m.Notify != nil {
		if err := outboxrepo.InsertTx(ctx, tx, *m.Notify); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *postgresRepo) loadItems(ctx context.Context, o *domain.Order) error {
	rows, err := r.pool.Query(ctx, itemsQuery, o.ID)
	if err != nil {
		return err
	}
	return scanItems(rows, o)
}

func (r *postgresRepo) loadItemsTx(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	rows, err := tx.Query(ctx, itemsQuery, o.ID)
	if err != nil {
		return err
	}
	return scanItems(rows, o)
}

const itemsQuery = `
SELECT id::text, order_id::text, product_id::text, shop_id::text, name, unit_price, quantity, subtotal
FROM order_items
WHERE order_id = $1
ORDER BY position ASC
`

func scanItems(rows pgx.Rows, o *domain.Order) error {
	defer rows.Close()
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ShopID, &it.Name, &it.UnitPrice, &it.Quantity, &it.Subtotal); err != nil {
			return err
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o             domain.Order
		status        string
		method        string
		paymentStatus string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.ShopID, &o.TotalPrice, &status,
		&method, &paymentStatus, &o.Payment.GatewayOrderID, &o.Payment.GatewayTransactionID,
		&o.Payment.SnapToken, &o.Payment.RedirectURL, &o.Payment.ConfirmationNotes,
		&o.Payment.ProofImageURLs, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	o.Payment.Method = domain.PaymentMethod(method)
	o.Payment.Status = domain.PaymentStatus(paymentStatus)
	return &o, nil
}
