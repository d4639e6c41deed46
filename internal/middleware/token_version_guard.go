package middleware

import (
	"net/http"

	"checkout/internal/repository"

	"github.com/labstack/echo/v4"
)

// AuthJWTの後ろに置く。tvがDBと違えば401（ログアウト済み）、無効ユーザーは403
func TokenVersionGuard(userRepo repository.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok1 := c.Get(CtxUserIDKey).(int64)
			tv, ok2 := c.Get(CtxTokenVersionKey).(int)
			if !ok1 || !ok2 || userID <= 0 || tv < 0 {
				return unauthorized(c)
			}

			user, err := userRepo.FindByID(c.Request().Context(), userID)
			if err != nil || user == nil || user.TokenVersion != tv {
				return unauthorized(c)
			}
			if !user.IsActive {
				return c.JSON(http.StatusForbidden, errorJSON("forbidden", "FORBIDDEN"))
			}

			return next(c)
		}
	}
}
