package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/todo-service/internal/apperror"
	"github.com/iliyamo/todo-service/internal/middleware"
	"github.com/iliyamo/todo-service/internal/model"
)

// requestTimeout bounds the database and cache work of a single request.
const requestTimeout = 5 * time.Second

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// bind decodes the request body; malformed JSON is a validation error.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperror.Validation("Invalid request body")
	}
	return nil
}

func idParam(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.Validation("Validation failed (numeric string is expected)")
	}
	return id, nil
}

// currentUser returns the caller set by the auth middleware. Routes without
// it are misconfigured, so the failure is reported as an invalid token.
func currentUser(c echo.Context) (model.Identity, error) {
	id, ok := middleware.CurrentUser(c)
	if !ok {
		return model.Identity{}, apperror.TokenInvalid()
	}
	return id, nil
}
