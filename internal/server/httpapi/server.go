// Package httpapi exposes the auth and user-directory operations over
// HTTP. The transport is a thin boundary: it validates field presence,
// brackets every request in a transaction, and maps service errors to
// statuses; all behavior lives in the services.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cghughes/authd/internal/logging"
	"github.com/cghughes/authd/internal/server/db"
	"github.com/cghughes/authd/internal/server/services"
)

// Server wires the echo engine to the service layer.
type Server struct {
	e      *echo.Echo
	addr   string
	tx     *db.TxManager
	auth   *services.AuthService
	users  *services.UserService
	tokens *services.TokenService
	logger logging.Logger
}

func NewServer(addr string, tx *db.TxManager, auth *services.AuthService,
	users *services.UserService, tokens *services.TokenService, logger logging.Logger) *Server {
	s := &Server{
		e:      echo.New(),
		addr:   addr,
		tx:     tx,
		auth:   auth,
		users:  users,
		tokens: tokens,
		logger: logger,
	}

	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.HTTPErrorHandler = s.errorHandler
	s.e.Use(s.requestContext)

	v1 := s.e.Group("/v1")

	auth1 := v1.Group("/auth")
	auth1.POST("/register", s.register)
	auth1.POST("/login", s.login)
	auth1.POST("/logout", s.logout)
	auth1.POST("/refresh-tokens", s.refreshTokens)
	auth1.POST("/forgot-password", s.forgotPassword)
	auth1.POST("/reset-password", s.resetPassword)

	users1 := v1.Group("/users", s.authRequired)
	users1.POST("", s.createUser)
	users1.GET("", s.queryUsers)
	users1.GET("/:id", s.getUser)
	users1.PATCH("/:id", s.updateUser)
	users1.DELETE("/:id", s.deleteUser)

	return s
}

// Echo exposes the engine for tests.
func (s *Server) Echo() *echo.Echo {
	return s.e
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.e.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info(ctx, "http server listening", "addr", s.addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.e.Shutdown(shutdownCtx)
}

// inTx runs fn inside the request's transaction bracket: begin, fn, commit
// on success or rollback on error. fn must not write the response itself;
// the write function it returns runs only after a successful commit, so a
// commit failure still surfaces as an internal error.
func (s *Server) inTx(c echo.Context, fn func(ctx context.Context) (func() error, error)) error {
	ctx := c.Request().Context()
	if err := s.tx.Begin(ctx); err != nil {
		s.logger.Error(ctx, "transaction begin failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	write, err := fn(ctx)
	if err != nil {
		s.tx.Rollback(ctx)
		return err
	}

	if err := s.tx.Commit(ctx); err != nil {
		s.logger.Error(ctx, "transaction commit failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError)
	}
	return write()
}
