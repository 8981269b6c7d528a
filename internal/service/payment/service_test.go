package payment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"shoporders/internal/domain"
	"shoporders/internal/gateway"
	orderrepo "shoporders/internal/repository/order"
	"github.com/rs/zerolog"
)

const (
	testOrderID   = "1b4e28ba-2fa1-11d2-883f-0016d3cca427"
	testServerKey = "SB-server-key"
)

type stubOrders struct {
	order       *domain.Order
	getErr      error
	getCalls    int
	mutateCalls int
	lastNotify  bool
}

func (s *stubOrders) GetByID(_ context.Context, _ string) (*domain.Order, error) {
	s.getCalls++
	if s.getErr != nil {
		return nil, s.getErr
	}
	cp := *s.order
	return &cp, nil
}

func (s *stubOrders) Mutate(_ context.Context, _ string, apply orderrepo.MutateFn) (*domain.Order, error) {
	cp := *s.order
	m, err := apply(&cp)
	if errors.Is(err, domain.ErrNoChange) {
		return &cp, nil
	}
	if err != nil {
		return nil, err
	}
	s.mutateCalls++
	s.lastNotify = m.Notify != nil
	s.order = &cp
	return &cp, nil
}

type stubGateway struct {
	lastCreate *gateway.TransactionRequest
	createResp *gateway.SnapResponse
	createErr  error
	statusResp *gateway.StatusResponse
	statusErr  error
}

func (s *stubGateway) CreateTransaction(_ context.Context, in gateway.TransactionRequest) (*gateway.SnapResponse, error) {
	s.lastCreate = &in
	return s.createResp, s.createErr
}

func (s *stubGateway) GetStatus(_ context.Context, _ string) (*gateway.StatusResponse, error) {
	return s.statusResp, s.statusErr
}

type stubReplays struct {
	seen bool
	err  error
	keys []string
}

func (s *stubReplays) Seen(_ context.Context, key string) (bool, error) {
	s.keys = append(s.keys, key)
	return s.seen, s.err
}

func onlineOrder(status domain.OrderStatus, pay domain.PaymentStatus) *domain.Order {
	return &domain.Order{
		ID:     testOrderID,
		UserID: "user-1",
		ShopID: "shop-1",
		Items: []domain.OrderItem{
			{ProductID: "p1", ShopID: "shop-1", Name: "Kopi Susu", UnitPrice: 10000, Quantity: 2, Subtotal: 20000},
		},
		TotalPrice: 20000,
		Status:     status,
		Payment:    domain.PaymentDetails{Method: domain.MethodOnlinePayment, Status: pay},
	}
}

func newTestService(orders *stubOrders, gw *stubGateway, replays replayGuard) *Service {
	svc := New(orders, gw, replays, testServerKey, "https://shop.example/payment/finish", zerolog.Nop())
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }
	return svc
}

func TestCreateTransaction(t *testing.T) {
	orders := &stubOrders{order: onlineOrder(domain.StatusAwaitingPayment, domain.PaymentPending)}
	gw := &stubGateway{createResp: &gateway.SnapResponse{Token: "tok-1", RedirectURL: "https://pay.example/tok-1"}}
	svc := newTestService(orders, gw, nil)

	sess, err := svc.CreateTransaction(context.Background(), testOrderID, "user-1")
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	wantID := fmt.Sprintf("%s-%d", testOrderID, 1700000000)
	if sess.GatewayOrderID != wantID {
		t.Fatalf("gateway order id = %q, want %q", sess.GatewayOrderID, wantID)
	}
	if sess.Token != "tok-1" || sess.RedirectURL != "https://pay.example/tok-1" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if gw.lastCreate.GrossAmount != 20000 || len(gw.lastCreate.Items) != 1 {
		t.Fatalf("unexpected gateway request %+v", gw.lastCreate)
	}
	o := orders.order
	if o.Status != domain.StatusAwaitingPayment || o.Payment.Status != domain.PaymentPendingGateway {
		t.Fatalf("unexpected order state %s/%s", o.Status, o.Payment.Status)
	}
	if o.Payment.SnapToken != "tok-1" || o.Payment.GatewayOrderID != wantID {
		t.Fatalf("gateway fields not persisted: %+v", o.Payment)
	}
}

func TestCreateTransactionReusesExistingToken(t *testing.T) {
	o := onlineOrder(domain.StatusAwaitingPayment, domain.PaymentPendingGateway)
	o.Payment.GatewayOrderID = testOrderID + "-1699990000"
	o.Payment.SnapToken = "tok-old"
	o.Payment.RedirectURL = "https://pay.example/tok-old"
	orders := &stubOrders{order: o}
	gw := &stubGateway{}
	svc := newTestService(orders, gw, nil)

	sess, err := svc.CreateTransaction(context.Background(), testOrderID, "user-1")
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if sess.Token != "tok-old" || sess.GatewayOrderID != o.Payment.GatewayOrderID {
		t.Fatalf("expected the existing session back, got %+v", sess)
	}
	if gw.lastCreate != nil {
		t.Fatal("gateway must not be called when a token already exists")
	}
}

func TestCreateTransactionGuards(t *testing.T) {
	gw := &stubGateway{createResp: &gateway.SnapResponse{Token: "tok"}}

	t.Run("wrong owner", func(t *testing.T) {
		svc := newTestService(&stubOrders{order: onlineOrder(domain.StatusAwaitingPayment, domain.PaymentPending)}, gw, nil)
		if _, err := svc.CreateTransaction(context.Background(), testOrderID, "stranger"); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected forbidden, got %v", err)
		}
	})

	t.Run("pay at store order", func(t *testing.T) {
		o := onlineOrder(domain.StatusPendingConfirmation, domain.PaymentPending)
		o.Payment.Method = domain.MethodPayAtStore
		svc := newTestService(&stubOrders{order: o}, gw, nil)
		if _, err := svc.CreateTransaction(context.Background(), testOrderID, "user-1"); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("already paid", func(t *testing.T) {
		svc := newTestService(&stubOrders{order: onlineOrder(domain.StatusProcessing, domain.PaymentPaid)}, gw, nil)
		if _, err := svc.CreateTransaction(context.Background(), testOrderID, "user-1"); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("expected invalid transition, got %v", err)
		}
	})

	t.Run("cancelled order", func(t *testing.T) {
		svc := newTestService(&stubOrders{order: onlineOrder(domain.StatusCancelled, domain.PaymentCancelledByUser)}, gw, nil)
		if _, err := svc.CreateTransaction(context.Background(), testOrderID, "user-1"); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("expected invalid transition, got %v", err)
		}
	})
}

func TestRetryTransactionMintsFreshID(t *testing.T) {
	o := onlineOrder(domain.StatusPaymentFailed, domain.PaymentFailed)
	o.Payment.GatewayOrderID = testOrderID + "-1699990000"
	o.Payment.GatewayTransactionID = "txn-old"
	o.Payment.SnapToken = "tok-old"
	orders := &stubOrders{order: o}
	gw := &stubGateway{createResp: &gateway.SnapResponse{Token: "tok-new", RedirectURL: "https://pay.example/tok-new"}}
	svc := newTestService(orders, gw, nil)

	sess, err := svc.RetryTransaction(context.Background(), testOrderID, "user-1")
	if err != nil {
		t.Fatalf("RetryTransaction: %v", err)
	}
	wantID := fmt.Sprintf("%s-RETRY-%d", testOrderID, 1700000000)
	if sess.GatewayOrderID != wantID {
		t.Fatalf("gateway order id = %q, want %q", sess.GatewayOrderID, wantID)
	}
	if sess.Token != "tok-new" {
		t.Fatalf("token = %q, want fresh token", sess.Token)
	}
	cur := orders.order
	if cur.Status != domain.StatusAwaitingPayment || cur.Payment.Status != domain.PaymentPendingGateway {
		t.Fatalf("unexpected order state %s/%s", cur.Status, cur.Payment.Status)
	}
	if cur.Payment.GatewayTransactionID != "" {
		t.Fatal("stale transaction id must be cleared on retry")
	}
}

func TestRetryTransactionFromProcessing(t *testing.T) {
	svc := newTestService(&stubOrders{order: onlineOrder(domain.StatusProcessing, domain.PaymentPaid)}, &stubGateway{}, nil)
	if _, err := svc.RetryTransaction(context.Background(), testOrderID, "user-1"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestPollAndReconcileSettlement(t *testing.T) {
	o := onlineOrder(domain.StatusAwaitingPayment, domain.PaymentPendingGateway)
	o.Payment.GatewayOrderID = testOrderID + "-1699990000"
	orders := &stubOrders{order: o}
	gw := &stubGateway{statusResp: &gateway.StatusResponse{
		OrderID:           o.Payment.GatewayOrderID,
		TransactionID:     "txn-1",
		TransactionStatus: "settlement",
		GrossAmount:       "20000.00",
	}}
	svc := newTestService(orders, gw, nil)

	rec, err := svc.PollAndReconcile(context.Background(), testOrderID, "user-1")
	if err != nil {
		t.Fatalf("PollAndReconcile: %v", err)
	}
	if rec.Order.Status != domain.StatusProcessing || rec.Order.Payment.Status != domain.PaymentPaid {
		t.Fatalf("unexpected state %s/%s", rec.Order.Status, rec.Order.Payment.Status)
	}
	if rec.Order.Payment.GatewayTransactionID != "txn-1" {
		t.Fatalf("transaction id = %q", rec.Order.Payment.GatewayTransactionID)
	}
	if rec.Message != "Payment received. Your order is being processed." {
		t.Fatalf("unexpected message %q", rec.Message)
	}
	if !orders.lastNotify {
		t.Fatal("expected a customer notification intent")
	}
}

func TestPollAndReconcileIdempotent(t *testing.T) {
	o := onlineOrder(domain.StatusAwaitingPayment, domain.PaymentPendingGateway)
	o.Payment.GatewayOrderID = testOrderID + "-1699990000"
	orders := &stubOrders{order: o}
	gw := &stubGateway{statusResp: &gateway.StatusResponse{
		OrderID:           o.Payment.GatewayOrderID,
		TransactionID:     "txn-1",
		TransactionStatus: "pending",
	}}
	svc := newTestService(orders, gw, nil)

	first, err := svc.PollAndReconcile(context.Background(), testOrderID, "user-1")
	if err != nil {
		t.Fatalf("first poll: %v", err)
	}
	if first.Order.Payment.GatewayTransactionID != "txn-1" {
		t.Fatalf("first poll did not record the transaction id")
	}
	writes := orders.mutateCalls

	second, err := svc.PollAndReconcile(context.Background(), testOrderID, "user-1")
	if err != nil {
		t.Fatalf("second poll: %v", err)
	}
	if orders.mutateCalls != writes {
		t.Fatal("re-polling an unchanged status must write nothing")
	}
	if second.Message != "Payment is pending. Complete the payment before it expires." {
		t.Fatalf("unexpected message %q", second.Message)
	}
}

func TestPollAndReconcileWithoutGatewayOrder(t *testing.T) {
	svc := newTestService(&stubOrders{order: onlineOrder(domain.StatusAwaitingPayment, domain.PaymentPending)}, &stubGateway{}, nil)
	if _, err := svc.PollAndReconcile(context.Background(), testOrderID, "user-1"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func signedPayload(gatewayOrderID, txStatus, txID string) WebhookPayload {
	p := WebhookPayload{
		OrderID:           gatewayOrderID,
		StatusCode:        "200",
		GrossAmount:       "20000.00",
		TransactionStatus: txStatus,
		TransactionID:     txID,
	}
	p.SignatureKey = gateway.Signature(p.OrderID, p.StatusCode, p.GrossAmount, testServerKey)
	return p
}

func TestHandleWebhookSettlement(t *testing.T) {
	o := onlineOrder(domain.StatusAwaitingPayment, domain.PaymentPendingGateway)
	o.Payment.GatewayOrderID = testOrderID + "-1699990000"
	orders := &stubOrders{order: o}
	replays := &stubReplays{}
	svc := newTestService(orders, &stubGateway{}, replays)

	if err := svc.HandleWebhook(context.Background(), signedPayload(o.Payment.GatewayOrderID, "settlement", "txn-1")); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	cur := orders.order
	if cur.Status != domain.StatusProcessing || cur.Payment.Status != domain.PaymentPaid {
		t.Fatalf("unexpected state %s/%s", cur.Status, cur.Payment.Status)
	}
	if len(replays.keys) != 1 {
		t.Fatalf("replay guard consulted %d times, want 1", len(replays.keys))
	}
}

func TestHandleWebhookBadSignature(t *testing.T) {
	o := onlineOrder(domain.StatusAwaitingPayment, domain.PaymentPendingGateway)
	orders := &stubOrders{order: o}
	svc := newTestService(orders, &stubGateway{}, nil)

	p := signedPayload(testOrderID+"-1699990000", "settlement", "txn-1")
	p.SignatureKey = "forged"
	if err := svc.HandleWebhook(context.Background(), p); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if orders.getCalls != 0 || orders.mutateCalls != 0 {
		t.Fatal("unsigned payload must not touch the order")
	}
}

func TestHandleWebhookReplayIgnored(t *testing.T) {
	orders := &stubOrders{order: onlineOrder(domain.StatusAwaitingPayment, domain.PaymentPendingGateway)}
	svc := newTestService(orders, &stubGateway{}, &stubReplays{seen: true})

	if err := svc.HandleWebhook(context.Background(), signedPayload(testOrderID+"-1699990000", "settlement", "txn-1")); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if orders.getCalls != 0 {
		t.Fatal("replayed webhook must be dropped before the database")
	}
}

func TestHandleWebhookLateSettlementOnCancelledOrder(t *testing.T) {
	o := onlineOrder(domain.StatusCancelled, domain.PaymentCancelledByUser)
	o.Payment.GatewayOrderID = testOrderID + "-1699990000"
	orders := &stubOrders{order: o}
	svc := newTestService(orders, &stubGateway{}, nil)

	if err := svc.HandleWebhook(context.Background(), signedPayload(o.Payment.GatewayOrderID, "settlement", "txn-1")); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	cur := orders.order
	if cur.Status != domain.StatusCancelled || cur.Payment.Status != domain.PaymentCancelledByUser {
		t.Fatalf("late settlement resurrected the order: %s/%s", cur.Status, cur.Payment.Status)
	}
}

func TestHandleWebhookPaidNeverRegresses(t *testing.T) {
	o := onlineOrder(domain.StatusAwaitingPayment, domain.PaymentPaid)
	o.Payment.GatewayOrderID = testOrderID + "-1699990000"
	orders := &stubOrders{order: o}
	svc := newTestService(orders, &stubGateway{}, nil)

	if err := svc.HandleWebhook(context.Background(), signedPayload(o.Payment.GatewayOrderID, "expire", "txn-2")); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if orders.order.Payment.Status != domain.PaymentPaid {
		t.Fatalf("paid regressed to %s", orders.order.Payment.Status)
	}
}

func TestHandleWebhookRetryOrderID(t *testing.T) {
	o := onlineOrder(domain.StatusAwaitingPayment, domain.PaymentPendingGateway)
	o.Payment.GatewayOrderID = testOrderID + "-RETRY-1700000000"
	orders := &stubOrders{order: o}
	svc := newTestService(orders, &stubGateway{}, nil)

	if err := svc.HandleWebhook(context.Background(), signedPayload(o.Payment.GatewayOrderID, "capture", "txn-3")); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if orders.order.Payment.Status != domain.PaymentPaid {
		t.Fatalf("capture on retry id not applied: %s", orders.order.Payment.Status)
	}
}

func TestHandleWebhookMalformedOrderID(t *testing.T) {
	svc := newTestService(&stubOrders{order: onlineOrder(domain.StatusAwaitingPayment, domain.PaymentPendingGateway)}, &stubGateway{}, nil)
	if err := svc.HandleWebhook(context.Background(), signedPayload("not-a-uuid-1700000000", "settlement", "txn-1")); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHandleWebhookChallengedCaptureStaysPending(t *testing.T) {
	o := onlineOrder(domain.StatusAwaitingPayment, domain.PaymentPendingGateway)
	o.Payment.GatewayOrderID = testOrderID + "-1699990000"
	orders := &stubOrders{order: o}
	svc := newTestService(orders, &stubGateway{}, nil)

	p := signedPayload(o.Payment.GatewayOrderID, "capture", "txn-1")
	p.FraudStatus = "challenge"
	if err := svc.HandleWebhook(context.Background(), p); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if orders.order.Payment.Status != domain.PaymentPendingGateway {
		t.Fatalf("challenged capture must stay pending, got %s", orders.order.Payment.Status)
	}
}
