package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/todo-service/internal/model"
)

// Context keys set by Auth.
const (
	ctxUserID   = "user_id"
	ctxEmail    = "email"
	ctxIdentity = "identity"
)

// CurrentUser returns the identity stored by Auth.
func CurrentUser(c echo.Context) (model.Identity, bool) {
	id, ok := c.Get(ctxIdentity).(model.Identity)
	return id, ok
}

// userKey identifies the caller for rate limiting; "anon" before Auth ran.
func userKey(c echo.Context) string {
	if id, ok := CurrentUser(c); ok {
		return strconv.FormatUint(id.UserID, 10)
	}
	return "anon"
}
