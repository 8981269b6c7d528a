package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shoporders/internal/domain"
	"shoporders/internal/gateway"
	orderrepo "shoporders/internal/repository/order"
	outboxrepo "shoporders/internal/repository/outbox"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Service bridges the order lifecycle to the external payment processor.
// Gateway calls never run inside a database transaction; state is applied
// afterwards through a guarded read-modify-write.
type Service struct {
	orders    ordersRepo
	gw        gatewayClient
	replays   replayGuard
	serverKey string
	finishURL string
	logger    zerolog.Logger
	now       func() time.Time
}

type ordersRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	Mutate(ctx context.Context, orderID string, apply orderrepo.MutateFn) (*domain.Order, error)
}

type gatewayClient interface {
	CreateTransaction(ctx context.Context, in gateway.TransactionRequest) (*gateway.SnapResponse, error)
	GetStatus(ctx context.Context, gatewayOrderID string) (*gateway.StatusResponse, error)
}

// replayGuard short-circuits exact webhook replays. May be nil.
type replayGuard interface {
	Seen(ctx context.Context, key string) (bool, error)
}

func New(orders ordersRepo, gw gatewayClient, replays replayGuard, serverKey, finishURL string, logger zerolog.Logger) *Service {
	return &Service{
		orders:    orders,
		gw:        gw,
		replays:   replays,
		serverKey: serverKey,
		finishURL: finishURL,
		logger:    logger,
		now:       time.Now,
	}
}

// Session is what the client needs to open the hosted payment page.
type Session struct {
	GatewayOrderID string `json:"gatewayOrderId"`
	Token          string `json:"snapToken"`
	RedirectURL    string `json:"redirectUrl"`
}

// CreateTransaction opens a gateway transaction for an online-payment order.
// If an unexpired token already exists and the order is still payable the
// existing pair is returned unchanged instead of minting a duplicate.
func (s *Service) CreateTransaction(ctx context.Context, orderID, userID string) (*Session, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, domain.ErrForbidden
	}
	if o.Payment.Method != domain.MethodOnlinePayment {
		return nil, fmt.Errorf("%w: order is not paid online", domain.ErrValidation)
	}
	if o.Payment.Status == domain.PaymentPaid {
		return nil, fmt.Errorf("%w: order is already paid", domain.ErrInvalidTransition)
	}
	if !o.Payable() {
		return nil, fmt.Errorf("%w: order is %s and cannot start a payment", domain.ErrInvalidTransition, o.Status)
	}
	if o.Payment.SnapToken != "" {
		return &Session{
			GatewayOrderID: o.Payment.GatewayOrderID,
			Token:          o.Payment.SnapToken,
			RedirectURL:    o.Payment.RedirectURL,
		}, nil
	}

	gatewayOrderID := fmt.Sprintf("%s-%d", o.ID, s.now().Unix())
	return s.openSession(ctx, o, gatewayOrderID)
}

// RetryTransaction mints a brand-new gateway order id and token for an order
// whose previous attempt is pending or failed. Tokens are never reused
// across retries.
func (s *Service) RetryTransaction(ctx context.Context, orderID, userID string) (*Session, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, domain.ErrForbidden
	}
	if o.Payment.Method != domain.MethodOnlinePayment {
		return nil, fmt.Errorf("%w: order is not paid online", domain.ErrValidation)
	}
	if o.Payment.Status == domain.PaymentPaid {
		return nil, fmt.Errorf("%w: order is already paid", domain.ErrInvalidTransition)
	}
	if o.Status != domain.StatusAwaitingPayment && o.Status != domain.StatusPaymentFailed {
		return nil, fmt.Errorf("%w: order is %s and cannot retry payment", domain.ErrInvalidTransition, o.Status)
	}

	gatewayOrderID := fmt.Sprintf("%s-RETRY-%d", o.ID, s.now().Unix())
	return s.openSession(ctx, o, gatewayOrderID)
}

func (s *Service) openSession(ctx context.Context, o *domain.Order, gatewayOrderID string) (*Session, error) {
	items := make([]gateway.ItemDetail, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, gateway.ItemDetail{
			ID:       it.ProductID,
			Name:     it.Name,
			Price:    it.UnitPrice,
			Quantity: it.Quantity,
		})
	}
	resp, err := s.gw.CreateTransaction(ctx, gateway.TransactionRequest{
		GatewayOrderID: gatewayOrderID,
		GrossAmount:    o.TotalPrice,
		Items:          items,
		CustomerID:     o.UserID,
		FinishURL:      s.finishURL,
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.orders.Mutate(ctx, o.ID, func(cur *domain.Order) (orderrepo.Mutation, error) {
		if cur.Payment.Status == domain.PaymentPaid || !cur.Payable() {
			// Someone paid or cancelled between the gateway call and now.
			return orderrepo.Mutation{}, domain.ErrNoChange
		}
		cur.Status = domain.StatusAwaitingPayment
		cur.Payment.Status = domain.PaymentPendingGateway
		cur.Payment.GatewayOrderID = gatewayOrderID
		cur.Payment.GatewayTransactionID = ""
		cur.Payment.SnapToken = resp.Token
		cur.Payment.RedirectURL = resp.RedirectURL
		return orderrepo.Mutation{}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("order_id", o.ID).Str("gateway_order_id", gatewayOrderID).Msg("gateway transaction opened")
	return &Session{
		GatewayOrderID: updated.Payment.GatewayOrderID,
		Token:          updated.Payment.SnapToken,
		RedirectURL:    updated.Payment.RedirectURL,
	}, nil
}

// Reconciliation is the outcome of a poll: the current order plus a
// user-facing message keyed by the gateway's transaction status.
type Reconciliation struct {
	Order   *domain.Order `json:"order"`
	Message string        `json:"message"`
}

// PollAndReconcile queries the gateway and applies the mapped state if it
// differs from the current one. Re-polling an unchanged gateway status
// writes nothing.
func (s *Service) PollAndReconcile(ctx context.Context, orderID, userID string) (*Reconciliation, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, domain.ErrForbidden
	}
	if o.Payment.GatewayOrderID == "" {
		return nil, fmt.Errorf("%w: no gateway transaction for this order", domain.ErrValidation)
	}

	st, err := s.gw.GetStatus(ctx, o.Payment.GatewayOrderID)
	if err != nil {
		return nil, err
	}

	updated, err := s.applyGatewayStatus(ctx, orderID, st)
	if err != nil {
		return nil, err
	}
	return &Reconciliation{Order: updated, Message: statusMessage(st.TransactionStatus)}, nil
}

// WebhookPayload is the gateway's asynchronous notification body.
type WebhookPayload struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	TransactionID     string `json:"transaction_id"`
}

// HandleWebhook verifies the payload signature and applies the same mapping
// as PollAndReconcile. Errors are for the caller's log only; the HTTP
// handler answers 200 to the gateway regardless.
func (s *Service) HandleWebhook(ctx context.Context, p WebhookPayload) error {
	if !gateway.VerifySignature(p.OrderID, p.StatusCode, p.GrossAmount, s.serverKey, p.SignatureKey) {
		return fmt.Errorf("%w: webhook signature mismatch for %s", domain.ErrValidation, p.OrderID)
	}

	if s.replays != nil {
		key := p.OrderID + ":" + p.TransactionStatus + ":" + p.TransactionID
		seen, err := s.replays.Seen(ctx, key)
		if err != nil {
			s.logger.Warn().Err(err).Msg("replay guard unavailable, continuing")
		} else if seen {
			s.logger.Debug().Str("gateway_order_id", p.OrderID).Msg("webhook replay ignored")
			return nil
		}
	}

	orderID, err := internalOrderID(p.OrderID)
	if err != nil {
		return err
	}

	st := &gateway.StatusResponse{
		OrderID:           p.OrderID,
		TransactionID:     p.TransactionID,
		TransactionStatus: p.TransactionStatus,
		FraudStatus:       p.FraudStatus,
		PaymentType:       p.PaymentType,
		GrossAmount:       p.GrossAmount,
		StatusCode:        p.StatusCode,
	}
	if _, err := s.applyGatewayStatusChecked(ctx, orderID, st); err != nil {
		return err
	}
	return nil
}

// applyGatewayStatusChecked additionally cross-checks the reported gross
// amount against the order total. A mismatch on a correctly signed payload
// points at misconfiguration, so it is logged, not rejected.
func (s *Service) applyGatewayStatusChecked(ctx context.Context, orderID string, st *gateway.StatusResponse) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if gross, err := decimal.NewFromString(st.GrossAmount); err != nil {
		s.logger.Warn().Str("gross_amount", st.GrossAmount).Msg("unparseable gross amount in webhook")
	} else if !gross.Equal(decimal.NewFromInt(o.TotalPrice)) {
		s.logger.Warn().
			Str("order_id", orderID).
			Str("reported", st.GrossAmount).
			Int64("expected", o.TotalPrice).
			Msg("webhook gross amount differs from order total")
	}
	return s.applyGatewayStatus(ctx, orderID, st)
}

func (s *Service) applyGatewayStatus(ctx context.Context, orderID string, st *gateway.StatusResponse) (*domain.Order, error) {
	target, pay, ok := domain.MapGatewayStatus(st.TransactionStatus, st.FraudStatus)
	if !ok {
		s.logger.Warn().
			Str("order_id", orderID).
			Str("transaction_status", st.TransactionStatus).
			Msg("gateway status not actionable, leaving order unchanged")
		return s.orders.GetByID(ctx, orderID)
	}

	return s.orders.Mutate(ctx, orderID, func(o *domain.Order) (orderrepo.Mutation, error) {
		// Reconciliation only ever acts on the gateway-flow states; a late
		// settlement must not resurrect a cancelled order, and paid never
		// regresses.
		if o.Status != domain.StatusAwaitingPayment && o.Status != domain.StatusPaymentFailed {
			return orderrepo.Mutation{}, domain.ErrNoChange
		}
		if o.Payment.Status == domain.PaymentPaid && pay != domain.PaymentPaid {
			return orderrepo.Mutation{}, domain.ErrNoChange
		}
		if o.Status == target && o.Payment.Status == pay && o.Payment.GatewayTransactionID == st.TransactionID {
			return orderrepo.Mutation{}, domain.ErrNoChange
		}
		o.Status = target
		o.Payment.Status = pay
		o.Payment.GatewayTransactionID = st.TransactionID

		var notify *outboxrepo.Intent
		switch pay {
		case domain.PaymentPaid:
			notify = &outboxrepo.Intent{
				EventType: domain.EventStatusChanged,
				Notification: domain.Notification{
					UserID: o.UserID,
					Title:  "Payment received",
					Body:   "Your payment was received. The shop is preparing your order.",
					Data:   map[string]string{"orderId": o.ID},
				},
			}
		case domain.PaymentFailed:
			notify = &outboxrepo.Intent{
				EventType: domain.EventStatusChanged,
				Notification: domain.Notification{
					UserID: o.UserID,
					Title:  "Payment failed",
					Body:   statusMessage(st.TransactionStatus),
					Data:   map[string]string{"orderId": o.ID},
				},
			}
		}
		return orderrepo.Mutation{Notify: notify}, nil
	})
}

// internalOrderID recovers the internal order id from a gateway-assigned id
// of the form {orderId}-{ts} or {orderId}-RETRY-{ts}.
func internalOrderID(gatewayOrderID string) (string, error) {
	if len(gatewayOrderID) < 36 {
		return "", fmt.Errorf("%w: malformed gateway order id %q", domain.ErrValidation, gatewayOrderID)
	}
	id := gatewayOrderID[:36]
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: malformed gateway order id %q", domain.ErrValidation, gatewayOrderID)
	}
	return id, nil
}

func statusMessage(transactionStatus string) string {
	switch strings.ToLower(strings.TrimSpace(transactionStatus)) {
	case "pending":
		return "Payment is pending. Complete the payment before it expires."
	case "settlement", "capture":
		return "Payment received. Your order is being processed."
	case "expire":
		return "Payment expired. Retry the payment to continue."
	case "cancel":
		return "Payment was cancelled."
	case "deny":
		return "Payment was denied by the payment provider."
	default:
		return fmt.Sprintf("Payment status: %s.", transactionStatus)
	}
}
