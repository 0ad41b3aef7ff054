package server

import (
	stderrors "errors"
	"log/slog"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/portpulse/portpulse/internal/breaker"
	"github.com/portpulse/portpulse/internal/domain"
	"github.com/portpulse/portpulse/internal/errors"
)

func (s *Server) handlePositions(c echo.Context) error {
	positions, err := breaker.Do(s.breaker, func() ([]domain.Position, error) {
		return s.provider.FetchPositions(c.Request().Context())
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, positions)
}

func (s *Server) handleOrders(c echo.Context) error {
	orders, err := breaker.Do(s.breaker, func() ([]domain.Order, error) {
		return s.provider.FetchOrders(c.Request().Context())
	})
	if err != nil {
		return respondError(c, err)
	}

	if status := c.QueryParam("status"); status != "" {
		want := domain.OrderStatus(strings.ToUpper(status))
		filtered := make([]domain.Order, 0, len(orders))
		for _, o := range orders {
			if o.Status == want {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}

	return respondOK(c, orders)
}

func (s *Server) handleHoldings(c echo.Context) error {
	holdings, err := breaker.Do(s.breaker, func() ([]domain.Holding, error) {
		return s.provider.FetchHoldings(c.Request().Context())
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, holdings)
}

func (s *Server) handleTrades(c echo.Context) error {
	from, err := parseTimeParam(c.QueryParam("from"))
	if err != nil {
		return respondError(c, errors.ValidationError("from must be an RFC 3339 timestamp"))
	}
	to, err := parseTimeParam(c.QueryParam("to"))
	if err != nil {
		return respondError(c, errors.ValidationError("to must be an RFC 3339 timestamp"))
	}

	trades, err := breaker.Do(s.breaker, func() ([]domain.Trade, error) {
		return s.provider.FetchTrades(c.Request().Context())
	})
	if err != nil {
		return respondError(c, err)
	}

	if !from.IsZero() || !to.IsZero() {
		filtered := make([]domain.Trade, 0, len(trades))
		for _, t := range trades {
			if !from.IsZero() && t.Time.Before(from) {
				continue
			}
			if !to.IsZero() && t.Time.After(to) {
				continue
			}
			filtered = append(filtered, t)
		}
		trades = filtered
	}

	return respondOK(c, trades)
}

func (s *Server) handlePnL(c echo.Context) error {
	pnl, err := breaker.Do(s.breaker, func() (domain.PnL, error) {
		return s.provider.FetchPnL(c.Request().Context())
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, pnl)
}

func (s *Server) handleSquareOff(c echo.Context) error {
	positionID := c.Param("id")
	if positionID == "" {
		return respondError(c, errors.ValidationError("position id is required"))
	}

	result, err := breaker.Do(s.breaker, func() (domain.SquareOffResult, error) {
		return s.provider.SquareOff(c.Request().Context(), positionID)
	})
	if err != nil {
		return respondError(c, mapSquareOffError(err))
	}

	slog.Info("Position squared off", "position_id", positionID, "order_id", result.OrderID)
	return respondOK(c, result)
}

func mapSquareOffError(err error) error {
	switch {
	case stderrors.Is(err, domain.ErrPositionNotOpen):
		return errors.New(errors.CodePositionNotOpen, "position is not open")
	case stderrors.Is(err, domain.ErrOrderRejected):
		return errors.Wrap(errors.CodeOrderRejected, "exit order was rejected", err)
	default:
		return err
	}
}

func parseTimeParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, value)
}
