package handler

import (
	"net/http"
	"strings"
	"time"

	"checkout/internal/config"
	"checkout/internal/middleware"
	"checkout/internal/repository"
	"checkout/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /admin/payment の返金・再決済・集計
type AdminPaymentHandler struct {
	uc *usecase.PaymentUsecase
}

func NewAdminPaymentHandler(uc *usecase.PaymentUsecase) *AdminPaymentHandler {
	return &AdminPaymentHandler{uc: uc}
}

type RefundRequest struct {
	PaymentID int64 `json:"payment_id"`
	// 省略なら全額
	Amount *int64 `json:"amount"`
	Reason string `json:"reason"`
	Notes  string `json:"notes"`
}

func (h *AdminPaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	admin := e.Group("/admin/payment")
	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.TokenVersionGuard(userRepo))
	admin.Use(middleware.AdminRoleGuard())

	admin.POST("/refund", h.refund)
	admin.POST("/:id/retry", h.retry)
	admin.GET("/analytics", h.analytics)
}

func (h *AdminPaymentHandler) refund(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req RefundRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.ProcessRefund(c.Request().Context(), adminID, usecase.RefundInput{
		PaymentID: req.PaymentID,
		Amount:    req.Amount,
		Reason:    req.Reason,
		Notes:     req.Notes,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// POST /admin/payment/:id/retry
// GATEWAYのPENDING / FAILEDのみ。SUCCESS・REFUNDED・代引きは409
func (h *AdminPaymentHandler) retry(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.RetryPayment(c.Request().Context(), adminID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminPaymentHandler) analytics(c echo.Context) error {
	from, err := parseTimeQuery(c, "from")
	if err != nil {
		return badRequest(c, "invalid from")
	}
	to, err := parseTimeQuery(c, "to")
	if err != nil {
		return badRequest(c, "invalid to")
	}
	// 日付だけなら、その日の終わりまで含める
	if to != nil && isDateOnly(c.QueryParam("to")) {
		end := to.Add(24*time.Hour - time.Nanosecond)
		to = &end
	}

	out, err := h.uc.Analytics(c.Request().Context(), usecase.AnalyticsRange{From: from, To: to})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

const dateOnly = "2006-01-02"

// RFC3339 か YYYY-MM-DD。空なら nil
func parseTimeQuery(c echo.Context, name string) (*time.Time, error) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateOnly, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isDateOnly(v string) bool {
	_, err := time.Parse(dateOnly, strings.TrimSpace(v))
	return err == nil
}
