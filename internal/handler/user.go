package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/todo-service/internal/service"
)

type UserHandler struct {
	Users *service.UserService
}

func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{Users: users}
}

func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	users, err := h.Users.List(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UserHandler) Get(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Users.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// Update applies a partial profile change. Only the profile owner may call it.
func (h *UserHandler) Update(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req updateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	upd, err := req.validate()
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Users.Update(ctx, actor.UserID, id, upd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// Delete removes the caller's account together with its todos.
func (h *UserHandler) Delete(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	ack, err := h.Users.Delete(ctx, actor.UserID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ack)
}
