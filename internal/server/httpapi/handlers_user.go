package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/cghughes/authd/internal/server/models"
)

type createUserRequest struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Role        string `json:"role"`
}

type updateUserRequest struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Role        string `json:"role"`
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	return id, nil
}

func (s *Server) createUser(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil || req.DisplayName == "" || req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "displayName, email and password are required")
	}

	return s.inTx(c, func(ctx context.Context) (func() error, error) {
		user := &models.User{
			DisplayName: req.DisplayName,
			Email:       req.Email,
			Password:    req.Password,
			Role:        req.Role,
		}
		created, err := s.users.Create(ctx, user)
		if err != nil {
			return nil, apiError(err, "Email already taken")
		}
		return func() error { return c.JSON(http.StatusCreated, newUserResponse(created)) }, nil
	})
}

func (s *Server) queryUsers(c echo.Context) error {
	email := c.QueryParam("email")
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	return s.inTx(c, func(ctx context.Context) (func() error, error) {
		found, err := s.users.Query(ctx, email, page, limit)
		if err != nil {
			return nil, apiError(err, "")
		}
		results := make([]userResponse, 0, len(found))
		for _, u := range found {
			results = append(results, newUserResponse(u))
		}
		return func() error { return c.JSON(http.StatusOK, results) }, nil
	})
}

func (s *Server) getUser(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	return s.inTx(c, func(ctx context.Context) (func() error, error) {
		user, err := s.users.GetByID(ctx, id)
		if err != nil {
			return nil, apiError(err, "User not found")
		}
		return func() error { return c.JSON(http.StatusOK, newUserResponse(user)) }, nil
	})
}

func (s *Server) updateUser(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	return s.inTx(c, func(ctx context.Context) (func() error, error) {
		user, err := s.users.GetByID(ctx, id)
		if err != nil {
			return nil, apiError(err, "User not found")
		}
		if req.DisplayName != "" {
			user.DisplayName = req.DisplayName
		}
		if req.Email != "" {
			user.Email = req.Email
		}
		if req.Role != "" {
			user.Role = req.Role
		}
		user.Password = req.Password
		if err := s.users.Update(ctx, user); err != nil {
			return nil, apiError(err, "Email already taken")
		}
		return func() error { return c.JSON(http.StatusOK, newUserResponse(user)) }, nil
	})
}

func (s *Server) deleteUser(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	return s.inTx(c, func(ctx context.Context) (func() error, error) {
		if err := s.users.DeleteByID(ctx, id); err != nil {
			return nil, apiError(err, "User not found")
		}
		return func() error { return c.NoContent(http.StatusNoContent) }, nil
	})
}
