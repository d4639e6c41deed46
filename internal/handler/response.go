package handler

import (
	"net/http"
	"strconv"

	"checkout/internal/domain/model"
	"checkout/internal/logger"
	"checkout/internal/middleware"
	"checkout/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		if he.Status >= http.StatusInternalServerError {
			logger.Error("request failed", "path", c.Path(), "status", he.Status, "error", he.Message)
		}
		return c.JSON(he.Status, ErrorResponse{Error: he.Message, Code: string(he.Code)})
	}

	//500
	logger.Error("unexpected error", "path", c.Path(), "error", err.Error())
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: string(usecase.CodeInternal)})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: string(usecase.CodeValidation)})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: string(usecase.CodeUnauthorized)})
}

func getUserIDFromContext(c echo.Context) (int64, bool) {
	v := c.Get(middleware.CtxUserIDKey)
	if v == nil {
		return 0, false
	}

	id, ok := v.(int64)
	if !ok {
		return 0, false
	}

	return id, true
}

// 管理者は他人の決済も見られる
func viewerFromContext(c echo.Context) (usecase.Viewer, bool) {
	id, ok := getUserIDFromContext(c)
	if !ok {
		return usecase.Viewer{}, false
	}
	role, _ := c.Get(middleware.CtxUserRoleKey).(string)
	return usecase.Viewer{UserID: id, Admin: role == string(model.RoleAdmin)}, true
}

func parseIDParam(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
