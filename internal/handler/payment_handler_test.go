package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"checkout/internal/config"
	"checkout/internal/domain/model"
	"checkout/internal/handler"
	"checkout/internal/infra/cache"
	"checkout/internal/infra/gateway"
	infrarepo "checkout/internal/infra/repository"
	"checkout/internal/middleware"
	"checkout/internal/testutil"
	"checkout/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testKeySecret     = "test_key_secret"
	testWebhookSecret = "test_webhook_secret"
)

type discardNotifier struct{}

func (discardNotifier) Dispatch(model.Notification) {}

type handlerEnv struct {
	e   *echo.Echo
	db  *gorm.DB
	cfg config.Config
}

func newHandlerEnv(t *testing.T, limiter *middleware.IPRateLimiter) *handlerEnv {
	t.Helper()

	gdb := testutil.NewSQLiteDB(t)
	tx := infrarepo.NewTxManagerGorm(gdb)
	userRepo := infrarepo.NewUserGormRepository(gdb)
	gw := gateway.NewClient(config.GatewayConfig{
		Mode:          config.GatewayModeSandbox,
		KeyID:         "sandbox_key",
		KeySecret:     testKeySecret,
		WebhookSecret: testWebhookSecret,
		Timeout:       time.Second,
	})
	checkout := usecase.NewCheckoutUsecase(tx, userRepo, infrarepo.NewAddressGormRepository(gdb), gw, discardNotifier{}, "INR")
	payments := usecase.NewPaymentUsecase(tx, gw, discardNotifier{}, checkout, "INR")
	webhooks := usecase.NewWebhookUsecase(tx, gw, cache.NoopDeduper{}, discardNotifier{})

	cfg := config.Config{JWTSecret: "test-secret"}
	e := echo.New()
	handler.NewPaymentHandler(payments, webhooks, limiter).RegisterRoutes(e, cfg, userRepo)
	handler.NewAdminPaymentHandler(payments).RegisterRoutes(e, cfg, userRepo)

	return &handlerEnv{e: e, db: gdb, cfg: cfg}
}

func (h *handlerEnv) token(t *testing.T, u model.User) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  u.ID,
		"role": string(u.Role),
		"tv":   u.TokenVersion,
		"iat":  1,
		"exp":  9999999999,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.cfg.JWTSecret))
	require.NoError(t, err)
	return s
}

func postWebhook(h *handlerEnv, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/payment/webhook", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set(handler.WebhookSignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) usecase.WebhookResult {
	t.Helper()
	var r usecase.WebhookResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&r))
	return r
}

// 署名が合わない => 401
func TestPaymentHandler_Webhook_InvalidSignature(t *testing.T) {
	h := newHandlerEnv(t, nil)

	rec := postWebhook(h, []byte(`{"event":"payment.captured","payload":{}}`), "nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, string(usecase.CodeInvalidSignature), body.Code)
}

// 署名OKで中身が壊れていても 200 + ignored（再送させない）
func TestPaymentHandler_Webhook_MalformedIsAcked(t *testing.T) {
	h := newHandlerEnv(t, nil)

	body := []byte(`{"event":"payment.captured","payload":{"payment":{}}}`)
	rec := postWebhook(h, body, gateway.SignWebhook(body, testWebhookSecret))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, usecase.WebhookIgnored, decodeResult(t, rec).Status)
}

func TestPaymentHandler_Webhook_CapturesPendingPayment(t *testing.T) {
	h := newHandlerEnv(t, nil)
	u := testutil.SeedUser(t, h.db, "buyer@example.com", model.RoleUser)

	o := model.Order{
		OrderNumber:     model.NewOrderNumber(),
		UserID:          u.ID,
		AddressID:       1,
		ShippingAddress: model.ShippingAddress{Name: "Taro", PostalCode: "100-0001", Prefecture: "Tokyo", City: "Chiyoda", Line1: "1-1"},
		Status:          model.OrderStatusConfirmed,
		PaymentStatus:   model.OrderPaymentPending,
		Subtotal:        500,
		FinalAmount:     500,
		Currency:        "INR",
		IdempotencyKey:  "seed-order_h1",
	}
	require.NoError(t, h.db.Create(&o).Error)
	p := model.Payment{OrderID: o.ID, UserID: u.ID, Amount: 500, Currency: "INR", Method: model.PaymentMethodGateway, Status: model.PaymentStatusPending, GatewayOrderID: "order_h1"}
	require.NoError(t, h.db.Create(&p).Error)

	body := []byte(fmt.Sprintf(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_h1","order_id":"order_h1","amount":%d}}}}`, 500))
	rec := postWebhook(h, body, gateway.SignWebhook(body, testWebhookSecret))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, usecase.WebhookProcessed, decodeResult(t, rec).Status)

	var got model.Payment
	require.NoError(t, h.db.First(&got, p.ID).Error)
	assert.Equal(t, model.PaymentStatusSuccess, got.Status)
	assert.Equal(t, "pay_h1", got.GatewayPaymentID)
}

func TestPaymentHandler_Webhook_RateLimited(t *testing.T) {
	h := newHandlerEnv(t, middleware.NewIPRateLimiter(0.001, 2))

	body := []byte(`{"event":"unknown.event","payload":{}}`)
	sig := gateway.SignWebhook(body, testWebhookSecret)

	assert.Equal(t, http.StatusOK, postWebhook(h, body, sig).Code)
	assert.Equal(t, http.StatusOK, postWebhook(h, body, sig).Code)
	assert.Equal(t, http.StatusTooManyRequests, postWebhook(h, body, sig).Code)
}

// JWTなし => 401
func TestPaymentHandler_CreateOrder_RequiresAuth(t *testing.T) {
	h := newHandlerEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/payment/create-order", nil)
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPaymentHandler_Detail_InvalidID(t *testing.T) {
	h := newHandlerEnv(t, nil)
	u := testutil.SeedUser(t, h.db, "buyer@example.com", model.RoleUser)

	req := httptest.NewRequest(http.MethodGet, "/payment/abc", nil)
	req.Header.Set("Authorization", "Bearer "+h.token(t, u))
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// 一般ユーザーは返金できない
func TestAdminPaymentHandler_Refund_ForbiddenForUser(t *testing.T) {
	h := newHandlerEnv(t, nil)
	u := testutil.SeedUser(t, h.db, "buyer@example.com", model.RoleUser)

	req := httptest.NewRequest(http.MethodPost, "/admin/payment/refund", bytes.NewReader([]byte(`{"payment_id":1}`)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Authorization", "Bearer "+h.token(t, u))
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminPaymentHandler_Analytics_DateRange(t *testing.T) {
	h := newHandlerEnv(t, nil)
	admin := testutil.SeedUser(t, h.db, "admin@example.com", model.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/admin/payment/analytics?from=2026-01-01&to=2026-01-31", nil)
	req.Header.Set("Authorization", "Bearer "+h.token(t, admin))
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out usecase.AnalyticsOutput
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, int64(0), out.TotalTransactions)

	bad := httptest.NewRequest(http.MethodGet, "/admin/payment/analytics?from=yesterday", nil)
	bad.Header.Set("Authorization", "Bearer "+h.token(t, admin))
	rec = httptest.NewRecorder()
	h.e.ServeHTTP(rec, bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
