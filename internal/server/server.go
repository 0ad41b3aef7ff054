package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/portpulse/portpulse/internal/breaker"
	"github.com/portpulse/portpulse/internal/config"
	"github.com/portpulse/portpulse/internal/domain"
	"github.com/portpulse/portpulse/internal/engine"
	"github.com/portpulse/portpulse/internal/live"
)

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	provider  domain.Provider
	breaker   *breaker.Breaker
	engine    *engine.Engine
	hub       *live.Hub
	limits    *ConnectionLimits
	clock     clockwork.Clock
	startTime time.Time
}

func NewServer(cfg *config.Config, provider domain.Provider, brk *breaker.Breaker, eng *engine.Engine, hub *live.Hub, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	srv := &Server{
		echo:      e,
		config:    cfg,
		provider:  provider,
		breaker:   brk,
		engine:    eng,
		hub:       hub,
		limits:    NewConnectionLimits(cfg.MaxConnections, cfg.MaxConnectionsPerIP, cfg.ConnectionRateLimit, cfg.ConnectionRateBurst),
		clock:     clock,
		startTime: clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
