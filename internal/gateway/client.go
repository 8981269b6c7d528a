package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"shoporders/internal/domain"
	"github.com/rs/zerolog"
)

// Client talks to the external payment processor's HTTP JSON API. The
// processor assigns transactions by the gateway order id the caller supplies,
// which is distinct from the internal order id.
type Client struct {
	baseURL   string
	serverKey string
	http      *http.Client
	logger    zerolog.Logger
}

func NewClient(baseURL, serverKey string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:   baseURL,
		serverKey: serverKey,
		http:      &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// TransactionRequest describes a new gateway transaction.
type TransactionRequest struct {
	GatewayOrderID string
	GrossAmount    int64
	Items          []ItemDetail
	CustomerID     string
	FinishURL      string
}

type ItemDetail struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

// SnapResponse is the token/redirect pair the hosted payment page needs.
type SnapResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// StatusResponse is the processor's view of one transaction.
type StatusResponse struct {
	OrderID           string `json:"order_id"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	GrossAmount       string `json:"gross_amount"`
	StatusCode        string `json:"status_code"`
	StatusMessage     string `json:"status_message"`
}

type transactionPayload struct {
	TransactionDetails struct {
		OrderID     string `json:"order_id"`
		GrossAmount int64  `json:"gross_amount"`
	} `json:"transaction_details"`
	ItemDetails     []ItemDetail `json:"item_details"`
	CustomerDetails struct {
		CustomerID string `json:"customer_id"`
	} `json:"customer_details"`
	Callbacks struct {
		Finish string `json:"finish,omitempty"`
	} `json:"callbacks"`
}

// CreateTransaction registers a transaction and returns its token/redirect
// pair.
func (c *Client) CreateTransaction(ctx context.Context, in TransactionRequest) (*SnapResponse, error) {
	var payload transactionPayload
	payload.TransactionDetails.OrderID = in.GatewayOrderID
	payload.TransactionDetails.GrossAmount = in.GrossAmount
	payload.ItemDetails = in.Items
	payload.CustomerDetails.CustomerID = in.CustomerID
	payload.Callbacks.Finish = in.FinishURL

	var out SnapResponse
	if err := c.do(ctx, http.MethodPost, "/snap/v1/transactions", payload, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, &domain.GatewayError{Kind: domain.GatewayBadResponse, Message: "gateway returned no token"}
	}
	return &out, nil
}

// GetStatus queries the processor by the gateway-assigned order id.
func (c *Client) GetStatus(ctx context.Context, gatewayOrderID string) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.do(ctx, http.MethodGet, "/v2/"+gatewayOrderID+"/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.serverKey, "")

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ge struct {
			StatusMessage string   `json:"status_message"`
			ErrorMessages []string `json:"error_messages"`
		}
		msg := fmt.Sprintf("unexpected status %d", resp.StatusCode)
		if err := json.NewDecoder(resp.Body).Decode(&ge); err == nil {
			if ge.StatusMessage != "" {
				msg = ge.StatusMessage
			} else if len(ge.ErrorMessages) > 0 {
				msg = ge.ErrorMessages[0]
			}
		}
		c.logger.Warn().Int("status", resp.StatusCode).Str("path", path).Str("message", msg).Msg("gateway rejected request")
		return &domain.GatewayError{Kind: domain.GatewayBadResponse, Message: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.GatewayError{Kind: domain.GatewayBadResponse, Message: "malformed gateway response", Err: err}
	}
	return nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &domain.GatewayError{Kind: domain.GatewayTimeout, Message: "gateway call timed out", Err: err}
	}
	return &domain.GatewayError{Kind: domain.GatewayUnreachable, Message: "gateway unreachable", Err: err}
}
