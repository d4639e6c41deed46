package server

import (
	"net/http"

	"checkout/internal/config"
	"checkout/internal/handler"
	"checkout/internal/repository"

	"github.com/labstack/echo/v4"
)

// 各handlerがグループとミドルウェアを自分で組む
type routeRegistrar interface {
	RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository)
}

type Handlers struct {
	Addresses     *handler.AddressHandler
	Products      *handler.ProductHandler
	Cart          *handler.CartHandler
	Orders        *handler.OrderHandler
	Payments      *handler.PaymentHandler
	AdminOrders   *handler.AdminOrderHandler
	AdminPayments *handler.AdminPaymentHandler
}

func (h Handlers) all() []routeRegistrar {
	return []routeRegistrar{h.Addresses, h.Products, h.Cart, h.Orders, h.Payments, h.AdminOrders, h.AdminPayments}
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository, h Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	for _, r := range h.all() {
		r.RegisterRoutes(e, cfg, userRepo)
	}
}
