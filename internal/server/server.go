package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkout/internal/config"
	"checkout/internal/logger"
	"checkout/internal/middleware"
	"checkout/internal/repository"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

const (
	limiterSweepEvery = time.Minute
	limiterIdle       = 10 * time.Minute
)

type Server struct {
	cfg     config.Config
	echo    *echo.Echo
	limiter *middleware.IPRateLimiter
}

func New(cfg config.Config, userRepo repository.UserRepository, limiter *middleware.IPRateLimiter, h Handlers) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger())

	RegisterRoutes(e, cfg, userRepo, h)

	return &Server{cfg: cfg, echo: e, limiter: limiter}
}

func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// SIGINT/SIGTERMで止まる。処理中のリクエストは ShutdownTimeout まで待つ
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if s.limiter != nil {
		go s.limiter.RunCleanup(ctx, limiterSweepEvery, limiterIdle)
	}

	addr := s.cfg.Port
	if addr == "" {
		addr = "8080"
	}
	if addr[0] != ':' {
		addr = ":" + addr
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", addr)
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}
