package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"checkout/internal/config"
)

var (
	// 通信失敗・タイムアウト・5xx
	ErrUnavailable = errors.New("gateway unavailable")
	// 4xx（リクエストを受け付けなかった）
	ErrRejected = errors.New("gateway rejected request")
)

type IntentRef struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Sandbox  bool
}

type RefundRef struct {
	ID        string
	PaymentID string
	Amount    int64
	Status    string
	Sandbox   bool
}

type Client struct {
	cfg  config.GatewayConfig
	http *http.Client
	now  func() time.Time
}

func NewClient(cfg config.GatewayConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		now:  time.Now,
	}
}

func (c *Client) Sandbox() bool { return c.cfg.IsSandbox() }

func (c *Client) KeyID() string { return c.cfg.KeyID }

func (c *Client) VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	return VerifySignature(gatewayOrderID, gatewayPaymentID, signature, c.cfg.KeySecret)
}

func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	return VerifyWebhookSignature(body, signature, c.cfg.WebhookSecret)
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type createOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// 決済インテント（ゲートウェイ側の注文）を作る
func (c *Client) CreateIntent(ctx context.Context, amount int64, currency string, receipt string) (IntentRef, error) {
	if amount <= 0 {
		return IntentRef{}, fmt.Errorf("%w: amount must be positive", ErrRejected)
	}

	if c.Sandbox() {
		return IntentRef{
			ID:       "test_order_" + strconv.FormatInt(c.now().UnixMilli(), 10),
			Amount:   amount,
			Currency: currency,
			Receipt:  receipt,
			Sandbox:  true,
		}, nil
	}

	var resp createOrderResponse
	err := c.post(ctx, "/v1/orders", createOrderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	}, &resp)
	if err != nil {
		return IntentRef{}, err
	}
	if resp.ID == "" {
		return IntentRef{}, fmt.Errorf("%w: empty order id", ErrUnavailable)
	}

	return IntentRef{
		ID:       resp.ID,
		Amount:   resp.Amount,
		Currency: resp.Currency,
		Receipt:  resp.Receipt,
	}, nil
}

type refundRequest struct {
	Amount int64             `json:"amount"`
	Notes  map[string]string `json:"notes,omitempty"`
}

type refundResponse struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

func (c *Client) Refund(ctx context.Context, gatewayPaymentID string, amount int64, reason string, notes string) (RefundRef, error) {
	if gatewayPaymentID == "" {
		return RefundRef{}, fmt.Errorf("%w: payment id is required", ErrRejected)
	}
	if amount <= 0 {
		return RefundRef{}, fmt.Errorf("%w: amount must be positive", ErrRejected)
	}

	if c.Sandbox() {
		return RefundRef{
			ID:        "test_refund_" + strconv.FormatInt(c.now().UnixMilli(), 10),
			PaymentID: gatewayPaymentID,
			Amount:    amount,
			Status:    "processed",
			Sandbox:   true,
		}, nil
	}

	body := refundRequest{Amount: amount}
	if reason != "" || notes != "" {
		body.Notes = map[string]string{"reason": reason, "notes": notes}
	}

	var resp refundResponse
	path := "/v1/payments/" + url.PathEscape(gatewayPaymentID) + "/refund"
	if err := c.post(ctx, path, body, &resp); err != nil {
		return RefundRef{}, err
	}
	if resp.ID == "" {
		return RefundRef{}, fmt.Errorf("%w: empty refund id", ErrUnavailable)
	}

	return RefundRef{
		ID:        resp.ID,
		PaymentID: resp.PaymentID,
		Amount:    resp.Amount,
		Status:    resp.Status,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, in interface{}, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	switch {
	case res.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, res.StatusCode)
	case res.StatusCode >= 400:
		return fmt.Errorf("%w: status %d: %s", ErrRejected, res.StatusCode, bytes.TrimSpace(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}
