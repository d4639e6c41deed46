package middleware

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type ipLimiter struct {
	limiter *rate.Limiter
	// 最後に使った時刻（UnixNano）
	last atomic.Int64
}

// IPごとのトークンバケット。Webhookの受け口に掛ける
type IPRateLimiter struct {
	rps   rate.Limit
	burst int
	m     sync.Map // map[string]*ipLimiter
}

func NewIPRateLimiter(rps float64, burst int) *IPRateLimiter {
	return &IPRateLimiter{rps: rate.Limit(rps), burst: burst}
}

func (l *IPRateLimiter) get(ip string) *ipLimiter {
	if v, ok := l.m.Load(ip); ok {
		return v.(*ipLimiter)
	}
	lim := &ipLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
	v, _ := l.m.LoadOrStore(ip, lim)
	return v.(*ipLimiter)
}

func (l *IPRateLimiter) Allow(ip string) bool {
	lim := l.get(ip)
	lim.last.Store(time.Now().UnixNano())
	return lim.limiter.Allow()
}

// idle より長く使われていないIPを捨てる
func (l *IPRateLimiter) Sweep(idle time.Duration) {
	cutoff := time.Now().Add(-idle).UnixNano()
	l.m.Range(func(key, val any) bool {
		if val.(*ipLimiter).last.Load() < cutoff {
			l.m.Delete(key)
		}
		return true
	})
}

// ctxが終わるまで定期的にSweepする
func (l *IPRateLimiter) RunCleanup(ctx context.Context, every, idle time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Sweep(idle)
		}
	}
}

func (l *IPRateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP()) {
				return c.JSON(http.StatusTooManyRequests, errorJSON("rate limit exceeded", "RATE_LIMITED"))
			}
			return next(c)
		}
	}
}
