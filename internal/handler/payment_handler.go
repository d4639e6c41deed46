package handler

import (
	"io"
	"net/http"

	"checkout/internal/config"
	"checkout/internal/middleware"
	"checkout/internal/repository"
	"checkout/internal/usecase"

	"github.com/labstack/echo/v4"
)

const (
	WebhookSignatureHeader = "X-Gateway-Signature"
	maxWebhookBody         = 1 << 20
)

type PaymentHandler struct {
	payments *usecase.PaymentUsecase
	webhooks *usecase.WebhookUsecase
	limiter  *middleware.IPRateLimiter
}

func NewPaymentHandler(payments *usecase.PaymentUsecase, webhooks *usecase.WebhookUsecase, limiter *middleware.IPRateLimiter) *PaymentHandler {
	return &PaymentHandler{payments: payments, webhooks: webhooks, limiter: limiter}
}

type VerifyPaymentRequest struct {
	AddressID        int64  `json:"address_id"`
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	GatewaySignature string `json:"gateway_signature"`
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	// Webhookは署名で認証する（JWTなし）
	wh := e.Group("/payment/webhook")
	if h.limiter != nil {
		wh.Use(h.limiter.Middleware())
	}
	wh.POST("", h.webhook)

	g := e.Group("/payment")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.TokenVersionGuard(userRepo))

	g.POST("/create-order", h.createOrder)
	g.POST("/verify", h.verify)
	g.GET("/history", h.history)
	g.GET("/order/:orderId", h.byOrder)
	g.GET("/:id", h.detail)
}

func (h *PaymentHandler) createOrder(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.payments.CreateIntent(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) verify(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req VerifyPaymentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.payments.VerifyPayment(c.Request().Context(), userID, usecase.VerifyPaymentInput{
		AddressID:        req.AddressID,
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		GatewaySignature: req.GatewaySignature,
		IdempotencyKey:   c.Request().Header.Get("X-Idempotency-Key"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) history(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.payments.PaymentHistory(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) detail(c echo.Context) error {
	viewer, ok := viewerFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.payments.GetPayment(c.Request().Context(), viewer, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) byOrder(c echo.Context) error {
	viewer, ok := viewerFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	orderID, ok := parseIDParam(c, "orderId")
	if !ok {
		return badRequest(c, "invalid order id")
	}

	out, err := h.payments.GetPaymentByOrder(c.Request().Context(), viewer, orderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 署名は生のbodyで検証するので Bind しない
func (h *PaymentHandler) webhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return badRequest(c, "invalid body")
	}

	res, err := h.webhooks.Handle(c.Request().Context(), c.Request().Header.Get(WebhookSignatureHeader), body)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
