package httpserver

import (
	"context"
	"errors"
	"time"

	"shoporders/internal/domain"
	ordersvc "shoporders/internal/service/order"
	paymentsvc "shoporders/internal/service/payment"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// OrderService is the order lifecycle surface the handlers depend on.
type OrderService interface {
	Checkout(ctx context.Context, userID string, in ordersvc.CheckoutInput) (*domain.Order, error)
	Cancel(ctx context.Context, orderID, userID string) (*domain.Order, error)
	UpdateStatusBySeller(ctx context.Context, orderID, sellerID, newStatus string) (*domain.Order, error)
	ConfirmPayAtStorePayment(ctx context.Context, orderID, sellerID, notes string, proofURLs []string) (*domain.Order, error)
	GetByID(ctx context.Context, orderID, principalID string) (*domain.Order, error)
	ListMine(ctx context.Context, userID, status string, limit int) ([]domain.Order, error)
	ListForSeller(ctx context.Context, sellerID, status string, limit int) ([]domain.Order, error)
}

// PaymentService is the gateway-facing surface the handlers depend on.
type PaymentService interface {
	CreateTransaction(ctx context.Context, orderID, userID string) (*paymentsvc.Session, error)
	RetryTransaction(ctx context.Context, orderID, userID string) (*paymentsvc.Session, error)
	PollAndReconcile(ctx context.Context, orderID, userID string) (*paymentsvc.Reconciliation, error)
	HandleWebhook(ctx context.Context, p paymentsvc.WebhookPayload) error
}

// CartService is the cart surface the handlers depend on.
type CartService interface {
	Items(ctx context.Context, userID string) ([]domain.CartItem, error)
	Add(ctx context.Context, userID, productID string, quantity int) ([]domain.CartItem, error)
	ChangeQuantity(ctx context.Context, userID, itemID string, quantity int) ([]domain.CartItem, error)
	Remove(ctx context.Context, userID, itemID string) ([]domain.CartItem, error)
}

// Deps carries the services the router wires handlers to.
type Deps struct {
	OrderSvc   OrderService
	PaymentSvc PaymentService
	CartSvc    CartService
	Auth       TokenVerifier
}

// buildRouter wires routes for the API.
func buildRouter(logger zerolog.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if deps.OrderSvc == nil || deps.PaymentSvc == nil || deps.CartSvc == nil || deps.Auth == nil {
		return nil, errors.New("httpserver: missing dependencies")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Authorization", "Content-Type"},
		MaxAge:          12 * time.Hour,
	}))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	// The gateway calls this unauthenticated; the payload signature is the
	// authentication.
	router.POST("/api/payments/webhook", webhookHandler(deps.PaymentSvc, logger))

	api := router.Group("/api", requireAuth(deps.Auth))

	api.POST("/orders", checkoutHandler(deps.OrderSvc))
	api.GET("/orders", listMyOrdersHandler(deps.OrderSvc))
	api.GET("/orders/:id", getOrderHandler(deps.OrderSvc))
	api.POST("/orders/:id/cancel", cancelOrderHandler(deps.OrderSvc))

	api.GET("/shop/orders", listShopOrdersHandler(deps.OrderSvc))
	api.PATCH("/shop/orders/:id/status", updateStatusHandler(deps.OrderSvc))
	api.POST("/shop/orders/:id/payment-confirmation", confirmPaymentHandler(deps.OrderSvc))

	api.POST("/orders/:id/payment", createPaymentHandler(deps.PaymentSvc))
	api.POST("/orders/:id/payment/retry", retryPaymentHandler(deps.PaymentSvc))
	api.GET("/orders/:id/payment/status", paymentStatusHandler(deps.PaymentSvc))

	api.GET("/cart/items", listCartHandler(deps.CartSvc))
	api.POST("/cart/items", addCartItemHandler(deps.CartSvc))
	api.PATCH("/cart/items/:id", changeCartItemHandler(deps.CartSvc))
	api.DELETE("/cart/items/:id", removeCartItemHandler(deps.CartSvc))

	return router, nil
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}
