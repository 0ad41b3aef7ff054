package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"uptime":  s.clock.Since(s.startTime).Seconds(),
		"clients": s.hub.ClientCount(),
	})
}

// handleDebugStatus exposes engine, breaker and registry internals for
// operators. Not part of the public API.
func (s *Server) handleDebugStatus(c echo.Context) error {
	counts := s.breaker.Counts()

	return respondOK(c, map[string]any{
		"engine": s.engine.Stats(),
		"hub":    s.hub.Stats(),
		"breaker": map[string]any{
			"state":                s.breaker.State().String(),
			"requests":             counts.Requests,
			"consecutive_failures": counts.ConsecutiveFailures,
		},
		"limits": map[string]any{
			"global_current": s.limits.Global().Current(),
			"global_max":     s.limits.Global().Max(),
			"capacity_pct":   s.limits.Global().CapacityPct(),
			"unique_ips":     s.limits.PerIP().UniqueIPs(),
		},
	})
}
