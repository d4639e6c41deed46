package server_test

import (
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
	"checkout/internal/server"
	"checkout/internal/testutil"
	"checkout/internal/usecase"

	"github.com/stretchr/testify/assert"
)

const (
	testKeySecret     = "test_key_secret"
	testWebhookSecret = "test_webhook_secret"
)

type nopNotifier struct{}

func (nopNotifier) Dispatch(model.Notification) {}

func newTestServer(t *testing.T) *server.Server {
	t.Helper()

	gdb := testutil.NewSQLiteDB(t)
	tx := infrarepo.NewTxManagerGorm(gdb)
	userRepo := infrarepo.NewUserGormRepository(gdb)
	cart := infrarepo.NewCartGormRepository(gdb)
	gw := gateway.NewClient(config.GatewayConfig{Mode: config.GatewayModeSandbox, KeySecret: testKeySecret, WebhookSecret: testWebhookSecret, Timeout: time.Second})

	checkout := usecase.NewCheckoutUsecase(tx, userRepo, infrarepo.NewAddressGormRepository(gdb), gw, nopNotifier{}, "INR")
	payments := usecase.NewPaymentUsecase(tx, gw, nopNotifier{}, checkout, "INR")
	limiter := middleware.NewIPRateLimiter(10, 10)

	cfg := config.Config{JWTSecret: "test-secret", ShutdownTimeout: time.Second}
	return server.New(cfg, userRepo, limiter, server.Handlers{
		Addresses:     handler.NewAddressHandler(usecase.NewAddressUsecase(infrarepo.NewAddressGormRepository(gdb))),
		Products:      handler.NewProductHandler(usecase.NewProductUsecase(tx)),
		Cart:          handler.NewCartHandler(usecase.NewCartUsecase(cart, cart, infrarepo.NewProductGormRepository(gdb))),
		Orders:        handler.NewOrderHandler(usecase.NewOrderUsecase(tx), checkout),
		Payments:      handler.NewPaymentHandler(payments, usecase.NewWebhookUsecase(tx, gw, cache.NoopDeduper{}, nopNotifier{}), limiter),
		AdminOrders:   handler.NewAdminOrderHandler(usecase.NewAdminOrderUsecase(tx, nopNotifier{})),
		AdminPayments: handler.NewAdminPaymentHandler(payments),
	})
}

func TestServer_Routes(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"health", http.MethodGet, "/healthz", http.StatusOK},
		{"cart needs auth", http.MethodGet, "/cart", http.StatusUnauthorized},
		{"checkout needs auth", http.MethodPost, "/orders/checkout", http.StatusUnauthorized},
		{"admin needs auth", http.MethodGet, "/admin/orders", http.StatusUnauthorized},
		{"audit logs need auth", http.MethodGet, "/admin/audit-logs", http.StatusUnauthorized},
		{"webhook without signature", http.MethodPost, "/payment/webhook", http.StatusUnauthorized},
		{"addresses need auth", http.MethodGet, "/addresses", http.StatusUnauthorized},
		{"product not found", http.MethodGet, "/products/999", http.StatusNotFound},
		{"restock needs auth", http.MethodPost, "/admin/products/1/restock", http.StatusUnauthorized},
		{"unknown", http.MethodGet, "/nope", http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			rec := httptest.NewRecorder()
			s.Echo().ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
