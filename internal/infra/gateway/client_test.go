package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"checkout/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func liveConfig(baseURL string) config.GatewayConfig {
	return config.GatewayConfig{
		Mode:          config.GatewayModeLive,
		KeyID:         "key_live",
		KeySecret:     "live_secret",
		WebhookSecret: "wh_secret",
		BaseURL:       baseURL,
		Timeout:       2 * time.Second,
	}
}

func TestVerifySignature_RoundTrip(t *testing.T) {
	sig := Sign("order_1", "pay_1", "s3cret")

	assert.True(t, VerifySignature("order_1", "pay_1", sig, "s3cret"))
	assert.False(t, VerifySignature("order_1", "pay_2", sig, "s3cret"))
	assert.False(t, VerifySignature("order_1", "pay_1", sig, "other"))
	assert.False(t, VerifySignature("order_1", "pay_1", strings.ToUpper(sig), "s3cret"))
	assert.False(t, VerifySignature("order_1", "pay_1", "", "s3cret"))
	assert.False(t, VerifySignature("order_1", "pay_1", sig, ""))
}

// どの1文字を変えても通らない
func TestVerifySignature_SingleCharMutation(t *testing.T) {
	sig := Sign("order_1", "pay_1", "s3cret")
	body := []byte(`{"event":"payment.captured"}`)
	whSig := SignWebhook(body, "wh")

	for i := range sig {
		assert.False(t, VerifySignature("order_1", "pay_1", flipHexChar(sig, i), "s3cret"), "index %d", i)
	}
	for i := range whSig {
		assert.False(t, VerifyWebhookSignature(body, flipHexChar(whSig, i), "wh"), "index %d", i)
	}
}

func flipHexChar(s string, i int) string {
	b := []byte(s)
	if b[i] == '0' {
		b[i] = '1'
	} else {
		b[i] = '0'
	}
	return string(b)
}

func TestVerifyWebhookSignature(t *testing.T) {
	body := []byte(`{"event":"payment.captured"}`)
	sig := SignWebhook(body, "wh")

	assert.True(t, VerifyWebhookSignature(body, sig, "wh"))
	assert.False(t, VerifyWebhookSignature([]byte(`{"event":"payment.failed"}`), sig, "wh"))
	assert.False(t, VerifyWebhookSignature(body, sig, ""))
}

func TestClient_Sandbox(t *testing.T) {
	c := NewClient(config.GatewayConfig{Mode: config.GatewayModeSandbox, KeySecret: "k", Timeout: time.Second})
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }

	in, err := c.CreateIntent(context.Background(), 500, "INR", "rcpt")
	require.NoError(t, err)
	assert.Equal(t, "test_order_1700000000000", in.ID)
	assert.True(t, in.Sandbox)

	rf, err := c.Refund(context.Background(), "pay_1", 200, "", "")
	require.NoError(t, err)
	assert.Equal(t, "test_refund_1700000000000", rf.ID)
	assert.Equal(t, int64(200), rf.Amount)
}

func TestClient_CreateIntent_Live(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key_live", user)
		assert.Equal(t, "live_secret", pass)

		var body createOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(1500), body.Amount)

		_ = json.NewEncoder(w).Encode(createOrderResponse{ID: "order_abc", Amount: body.Amount, Currency: body.Currency, Receipt: body.Receipt})
	}))
	defer srv.Close()

	c := NewClient(liveConfig(srv.URL))
	in, err := c.CreateIntent(context.Background(), 1500, "INR", "rcpt_1")
	require.NoError(t, err)
	assert.Equal(t, "order_abc", in.ID)
	assert.False(t, in.Sandbox)
}

func TestClient_Refund_Live(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/pay_9/refund", r.URL.Path)
		_ = json.NewEncoder(w).Encode(refundResponse{ID: "rfnd_1", PaymentID: "pay_9", Amount: 300, Status: "processed"})
	}))
	defer srv.Close()

	c := NewClient(liveConfig(srv.URL))
	rf, err := c.Refund(context.Background(), "pay_9", 300, "damaged", "")
	require.NoError(t, err)
	assert.Equal(t, "rfnd_1", rf.ID)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "5xx is unavailable", status: http.StatusBadGateway, want: ErrUnavailable},
		{name: "4xx is rejected", status: http.StatusBadRequest, want: ErrRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"x"}`))
			}))
			defer srv.Close()

			c := NewClient(liveConfig(srv.URL))
			_, err := c.CreateIntent(context.Background(), 100, "INR", "r")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_TimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := liveConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	c := NewClient(cfg)

	_, err := c.Refund(context.Background(), "pay_1", 100, "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClient_UnreachableIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(liveConfig(url))
	_, err := c.CreateIntent(context.Background(), 100, "INR", "r")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClient_VerifyUsesConfiguredSecrets(t *testing.T) {
	c := NewClient(liveConfig("http://unused"))

	assert.True(t, c.VerifyPaymentSignature("o", "p", Sign("o", "p", "live_secret")))
	assert.False(t, c.VerifyPaymentSignature("o", "p", Sign("o", "p", "wh_secret")))

	body := []byte(`{}`)
	assert.True(t, c.VerifyWebhookSignature(body, SignWebhook(body, "wh_secret")))
}
