package server

import (
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/portpulse/portpulse/internal/domain"
	"github.com/portpulse/portpulse/internal/errors"
)

// envelope is the uniform REST response shape.
type envelope struct {
	OK      bool       `json:"ok"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
	TraceID string     `json:"trace_id"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondOK(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, envelope{
		OK:      true,
		Data:    data,
		TraceID: traceID(c),
	})
}

func respondError(c echo.Context, err error) error {
	// Breaker rejections surface as 503, not as an internal failure.
	if stderrors.Is(err, domain.ErrUpstreamUnavailable) {
		err = errors.UnavailableError(err)
	}
	structured := errors.AsStructuredError(err)
	if structured.Code == errors.CodeInternal {
		slog.Error("Request failed", "path", c.Path(), "error", err)
	}
	return c.JSON(structured.HTTPStatus(), envelope{
		OK: false,
		Error: &errorBody{
			Code:    string(structured.Code),
			Message: structured.Message,
		},
		TraceID: traceID(c),
	})
}

func traceID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}
