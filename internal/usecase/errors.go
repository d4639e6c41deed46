package usecase

import (
	"errors"
	"fmt"
	"net/http"

	"checkout/internal/infra/gateway"
)

// クライアントが分岐に使うエラーコード
type ErrorCode string

const (
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeForbidden          ErrorCode = "FORBIDDEN"
	CodeInvalidState       ErrorCode = "INVALID_STATE"
	CodeInsufficientStock  ErrorCode = "INSUFFICIENT_STOCK"
	CodeInvalidSignature   ErrorCode = "INVALID_SIGNATURE"
	CodeGatewayUnavailable ErrorCode = "GATEWAY_UNAVAILABLE"
	CodeEmptyCart          ErrorCode = "EMPTY_CART"
	CodeValidation         ErrorCode = "VALIDATION"
	CodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	CodeInternal           ErrorCode = "INTERNAL"
)

type HTTPError struct {
	Status  int
	Code    ErrorCode
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// codeはstatusから決める
func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Code:    codeForStatus(status),
		Message: message,
	}
}

func newCodedError(status int, code ErrorCode, message string) error {
	return &HTTPError{Status: status, Code: code, Message: message}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func codeForStatus(status int) ErrorCode {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeInvalidState
	case http.StatusServiceUnavailable:
		return CodeGatewayUnavailable
	default:
		return CodeInternal
	}
}

func errValidation(msg string) error {
	return NewHTTPError(http.StatusBadRequest, msg)
}

func errUnauthorized() error {
	return NewHTTPError(http.StatusUnauthorized, "unauthorized")
}

func errForbidden() error {
	return NewHTTPError(http.StatusForbidden, "forbidden")
}

func errNotFound(what string) error {
	return NewHTTPError(http.StatusNotFound, what+" not found")
}

func errInvalidState(msg string) error {
	return NewHTTPError(http.StatusConflict, msg)
}

func errInsufficientStock(productName string) error {
	return newCodedError(http.StatusConflict, CodeInsufficientStock, "insufficient stock: "+productName)
}

func errEmptyCart() error {
	return newCodedError(http.StatusBadRequest, CodeEmptyCart, "cart is empty")
}

func errInvalidSignature() error {
	return newCodedError(http.StatusBadRequest, CodeInvalidSignature, "invalid payment signature")
}

// Webhookは認証失敗として401
func errInvalidWebhookSignature() error {
	return newCodedError(http.StatusUnauthorized, CodeInvalidSignature, "invalid webhook signature")
}

func errGatewayUnavailable() error {
	return NewHTTPError(http.StatusServiceUnavailable, "payment gateway unavailable")
}

func errDB() error {
	return NewHTTPError(http.StatusInternalServerError, "db error")
}

// ゲートウェイのエラーを利用者向けに変換
func mapGatewayError(err error) error {
	if errors.Is(err, gateway.ErrRejected) {
		return errInvalidState("payment gateway rejected the request")
	}
	return errGatewayUnavailable()
}
