package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shoporders/internal/domain"
	"github.com/rs/zerolog"
)

func TestCreateTransactionSuccess(t *testing.T) {
	var gotPath, gotAuthUser string
	var gotBody transactionPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuthUser, _, _ = r.BasicAuth()
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(SnapResponse{Token: "tok-123", RedirectURL: "https://pay.example/tok-123"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "server-key", time.Second, zerolog.Nop())
	resp, err := c.CreateTransaction(context.Background(), TransactionRequest{
		GatewayOrderID: "o1-1700000000",
		GrossAmount:    20000,
		Items:          []ItemDetail{{ID: "p1", Name: "Kopi", Price: 10000, Quantity: 2}},
		CustomerID:     "user-1",
		FinishURL:      "https://shop.example/finish",
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if resp.Token != "tok-123" || resp.RedirectURL != "https://pay.example/tok-123" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if gotPath != "/snap/v1/transactions" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotAuthUser != "server-key" {
		t.Fatalf("unexpected basic auth user %s", gotAuthUser)
	}
	if gotBody.TransactionDetails.OrderID != "o1-1700000000" || gotBody.TransactionDetails.GrossAmount != 20000 {
		t.Fatalf("unexpected transaction details %+v", gotBody.TransactionDetails)
	}
}

func TestCreateTransactionMissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "server-key", time.Second, zerolog.Nop())
	_, err := c.CreateTransaction(context.Background(), TransactionRequest{GatewayOrderID: "o1", GrossAmount: 100})
	if !errors.Is(err, domain.ErrUpstreamGateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}
}

func TestGetStatusSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/o1-1700000000/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(StatusResponse{
			OrderID:           "o1-1700000000",
			TransactionID:     "tx-9",
			TransactionStatus: "settlement",
			FraudStatus:       "accept",
			PaymentType:       "qris",
			GrossAmount:       "20000.00",
			StatusCode:        "200",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "server-key", time.Second, zerolog.Nop())
	st, err := c.GetStatus(context.Background(), "o1-1700000000")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if st.TransactionStatus != "settlement" || st.TransactionID != "tx-9" {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestStructuredGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"status_message": "transaction doesn't exist"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "server-key", time.Second, zerolog.Nop())
	_, err := c.GetStatus(context.Background(), "missing")
	var ge *domain.GatewayError
	if !errors.As(err, &ge) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if ge.Kind != domain.GatewayBadResponse {
		t.Fatalf("kind = %v, want bad response", ge.Kind)
	}
	if ge.Message != "transaction doesn't exist" {
		t.Fatalf("message = %q", ge.Message)
	}
}

func TestUnreachableGateway(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "server-key", time.Second, zerolog.Nop())
	_, err := c.GetStatus(context.Background(), "o1")
	var ge *domain.GatewayError
	if !errors.As(err, &ge) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if ge.Kind != domain.GatewayUnreachable {
		t.Fatalf("kind = %v, want unreachable", ge.Kind)
	}
}

func TestTimeoutClassification(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	c := NewClient(slow.URL, "server-key", 50*time.Millisecond, zerolog.Nop())
	_, err := c.GetStatus(context.Background(), "o1")
	var ge *domain.GatewayError
	if !errors.As(err, &ge) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if ge.Kind != domain.GatewayTimeout {
		t.Fatalf("kind = %v, want timeout", ge.Kind)
	}
}
