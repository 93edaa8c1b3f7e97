package httpapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cghughes/authd/internal/server/db"
	"github.com/cghughes/authd/internal/server/models"
)

// ctxUserIDKey is the echo-context key carrying the authenticated caller's
// user id, set by authRequired.
const ctxUserIDKey = "httpapi.userID"

// requestContext assigns the request correlation id. Every database access
// downstream resolves its connection through this id, giving the request a
// single transaction regardless of how many services it touches.
func (s *Server) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := uuid.NewString()
		req := c.Request()
		c.SetRequest(req.WithContext(db.WithRequestID(req.Context(), id)))
		c.Response().Header().Set(echo.HeaderXRequestID, id)
		return next(c)
	}
}

// authRequired admits only requests carrying a valid Bearer access token.
// Access verification is signature-only; no store round-trip.
func (s *Server) authRequired(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		const prefix = "Bearer "
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if !strings.HasPrefix(header, prefix) {
			return echo.NewHTTPError(http.StatusUnauthorized, "Please authenticate")
		}
		token, err := s.tokens.Verify(c.Request().Context(), strings.TrimPrefix(header, prefix), models.TokenTypeAccess)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Please authenticate")
		}
		c.Set(ctxUserIDKey, token.UserID)
		return next(c)
	}
}
