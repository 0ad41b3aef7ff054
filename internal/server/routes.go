package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Snapshot endpoints: the REST view of what the stream distributes.
	api := s.echo.Group("/api/v1")
	api.GET("/positions", s.handlePositions)
	api.GET("/orders", s.handleOrders)
	api.GET("/holdings", s.handleHoldings)
	api.GET("/trades", s.handleTrades)
	api.GET("/pnl", s.handlePnL)

	// Trading action
	api.POST("/actions/squareoff/:id", s.handleSquareOff)

	// Internal visibility
	api.GET("/debug/status", s.handleDebugStatus)

	// Live stream
	s.echo.GET("/ws", s.handleWebSocket)
}
