package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"checkout/internal/middleware"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func hitFrom(e *echo.Echo, ip string) int {
	req := httptest.NewRequest(http.MethodPost, "/hook", nil)
	req.RemoteAddr = ip + ":5555"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestIPRateLimiter_BurstThen429(t *testing.T) {
	e := echo.New()
	lim := middleware.NewIPRateLimiter(0.001, 2)
	e.POST("/hook", okHandler, lim.Middleware())

	assert.Equal(t, http.StatusOK, hitFrom(e, "10.0.0.1"))
	assert.Equal(t, http.StatusOK, hitFrom(e, "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hitFrom(e, "10.0.0.1"))

	// 別IPは別バケット
	assert.Equal(t, http.StatusOK, hitFrom(e, "10.0.0.2"))
}

func TestIPRateLimiter_SweepResetsIdleBuckets(t *testing.T) {
	lim := middleware.NewIPRateLimiter(0.001, 1)

	assert.True(t, lim.Allow("10.0.0.9"))
	assert.False(t, lim.Allow("10.0.0.9"))

	time.Sleep(5 * time.Millisecond)
	lim.Sweep(time.Millisecond)

	assert.True(t, lim.Allow("10.0.0.9"))
}
