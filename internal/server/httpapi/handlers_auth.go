package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cghughes/authd/internal/server/models"
	"github.com/cghughes/authd/internal/server/services"
)

type registerRequest struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

type userResponse struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Role        string `json:"role"`
}

type tokenResponse struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type tokenPairResponse struct {
	Access  tokenResponse `json:"access"`
	Refresh tokenResponse `json:"refresh"`
}

type authResponse struct {
	User   userResponse      `json:"user"`
	Tokens tokenPairResponse `json:"tokens"`
}

func newUserResponse(user *models.User) userResponse {
	return userResponse{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Role:        user.Role,
	}
}

func newTokenPairResponse(pair *services.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		Access:  tokenResponse{Token: pair.Access.Value, Expires: pair.Access.Expires},
		Refresh: tokenResponse{Token: pair.Refresh.Value, Expires: pair.Refresh.Expires},
	}
}

func (s *Server) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil || req.DisplayName == "" || req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "displayName, email and password are required")
	}

	return s.inTx(c, func(ctx context.Context) (func() error, error) {
		user := &models.User{DisplayName: req.DisplayName, Email: req.Email, Password: req.Password}
		created, pair, err := s.auth.Register(ctx, user)
		if err != nil {
			return nil, apiError(err, "Email already taken")
		}
		return func() error {
			return c.JSON(http.StatusCreated, authResponse{User: newUserResponse(created), Tokens: newTokenPairResponse(pair)})
		}, nil
	})
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil || req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	return s.inTx(c, func(ctx context.Context) (func() error, error) {
		user, pair, err := s.auth.Login(ctx, req.Email, req.Password)
		if err != nil {
			return nil, apiError(err, "Incorrect email or password")
		}
		return func() error {
			return c.JSON(http.StatusOK, authResponse{User: newUserResponse(user), Tokens: newTokenPairResponse(pair)})
		}, nil
	})
}

func (s *Server) logout(c echo.Context) error {
	var req refreshTokenRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "refreshToken is required")
	}

	return s.inTx(c, func(ctx context.Context) (func() error, error) {
		if err := s.auth.Logout(ctx, req.RefreshToken); err != nil {
			return nil, apiError(err, "Token not found")
		}
		return func() error { return c.NoContent(http.StatusNoContent) }, nil
	})
}

func (s *Server) refreshTokens(c echo.Context) error {
	var req refreshTokenRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "refreshToken is required")
	}

	return s.inTx(c, func(ctx context.Context) (func() error, error) {
		pair, err := s.auth.Refresh(ctx, req.RefreshToken)
		if err != nil {
			return nil, apiError(err, "Please authenticate")
		}
		return func() error { return c.JSON(http.StatusOK, newTokenPairResponse(pair)) }, nil
	})
}

func (s *Server) forgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}

	return s.inTx(c, func(ctx context.Context) (func() error, error) {
		if err := s.auth.ForgotPassword(ctx, req.Email); err != nil {
			return nil, apiError(err, "No users found with this email")
		}
		return func() error { return c.NoContent(http.StatusNoContent) }, nil
	})
}

func (s *Server) resetPassword(c echo.Context) error {
	token := c.QueryParam("token")
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil || token == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token and password are required")
	}

	return s.inTx(c, func(ctx context.Context) (func() error, error) {
		if err := s.auth.ResetPassword(ctx, token, req.Password); err != nil {
			return nil, apiError(err, "Password reset failed")
		}
		return func() error { return c.NoContent(http.StatusNoContent) }, nil
	})
}
