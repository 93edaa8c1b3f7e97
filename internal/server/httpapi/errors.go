package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cghughes/authd/internal/common"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// statusFromError maps service sentinels to transport statuses.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrorConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// apiError converts a service error into a transport error. msg overrides
// the generic status text for operations whose message is part of the
// contract (collapsed auth errors keep their deliberately opaque text).
func apiError(err error, msg string) error {
	code := statusFromError(err)
	if msg == "" {
		msg = http.StatusText(code)
	}
	return echo.NewHTTPError(code, msg)
}

// errorHandler renders exactly one error payload per failed request.
func (s *Server) errorHandler(err error, c echo.Context) {
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		he = echo.NewHTTPError(statusFromError(err))
	}
	if c.Response().Committed {
		return
	}

	msg, ok := he.Message.(string)
	if !ok || msg == "" {
		msg = http.StatusText(he.Code)
	}
	if he.Code >= http.StatusInternalServerError {
		s.logger.Error(c.Request().Context(), "request failed", "error", err)
		// Internal detail never reaches the client.
		msg = http.StatusText(he.Code)
	}
	if writeErr := c.JSON(he.Code, errorResponse{Code: he.Code, Message: msg}); writeErr != nil {
		s.logger.Error(c.Request().Context(), "error response write failed", "error", writeErr)
	}
}
