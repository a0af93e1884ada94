package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/todo-service/internal/apperror"
	"github.com/iliyamo/todo-service/internal/model"
)

// TokenVerifier resolves an access token to an identity.
type TokenVerifier interface {
	VerifyToken(raw string) (model.Identity, error)
}

// Auth admits requests carrying a valid "Authorization: Bearer <token>"
// access token and stores the caller's identity in the context. Failures are
// returned as apperror values for the HTTP error handler to render.
func Auth(v TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			scheme, raw, ok := strings.Cut(header, " ")
			raw = strings.TrimSpace(raw)
			if !ok || !strings.EqualFold(scheme, "Bearer") || raw == "" {
				return apperror.TokenInvalid()
			}

			id, err := v.VerifyToken(raw)
			if err != nil {
				return err
			}
			c.Set(ctxIdentity, id)
			c.Set(ctxUserID, id.UserID)
			c.Set(ctxEmail, id.Email)
			return next(c)
		}
	}
}
