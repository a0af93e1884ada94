package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/todo-service/internal/service"
)

// AuthHandler serves the /api/auth endpoints.
type AuthHandler struct {
	Auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// Register creates an account and returns the public user.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	in, err := req.validate()
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Auth.Register(ctx, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u)
}

// Login checks credentials and issues an access/refresh token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	email, password, err := req.validate()
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Auth.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// Refresh rotates the refresh token. The presented token stops working.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	raw, err := req.validate()
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	pair, err := h.Auth.Refresh(ctx, raw)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	id, err := currentUser(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	return c.JSON(http.StatusOK, h.Auth.Logout(ctx, id.UserID))
}

// Me echoes the identity carried by the access token.
func (h *AuthHandler) Me(c echo.Context) error {
	id, err := currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, id)
}
