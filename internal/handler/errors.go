package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/todo-service/internal/apperror"
)

// ErrorBody is the uniform error envelope.
type ErrorBody struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
	Code       string `json:"code"`
	Timestamp  string `json:"timestamp"`
	Path       string `json:"path"`
}

// NewHTTPErrorHandler renders every error returned by a handler or
// middleware as an ErrorBody. Typed application errors keep their status
// and message, echo's own errors keep their status, and anything else is
// logged and reported as a generic 500.
func NewHTTPErrorHandler(log *zap.Logger, now func() time.Time) echo.HTTPErrorHandler {
	if now == nil {
		now = time.Now
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		appErr := toAppError(err)
		if appErr.Status >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Error(err))
		}

		body := ErrorBody{
			StatusCode: appErr.Status,
			Message:    appErr.Message,
			Error:      http.StatusText(appErr.Status),
			Code:       appErr.Code,
			Timestamp:  now().UTC().Format(time.RFC3339Nano),
			Path:       c.Request().URL.RequestURI(),
		}
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(appErr.Status)
		} else {
			werr = c.JSON(appErr.Status, body)
		}
		if werr != nil {
			log.Warn("write error response", zap.Error(werr))
		}
	}
}

func toAppError(err error) *apperror.Error {
	if e, ok := apperror.From(err); ok {
		return e
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return fromEchoError(he)
	}
	return apperror.Internal()
}

// fromEchoError maps routing, binding and body limit errors raised by echo.
func fromEchoError(he *echo.HTTPError) *apperror.Error {
	msg := http.StatusText(he.Code)
	if m, ok := he.Message.(string); ok && m != "" {
		msg = m
	} else if he.Message != nil {
		msg = fmt.Sprint(he.Message)
	}

	code := "HTTP_ERROR"
	switch he.Code {
	case http.StatusBadRequest:
		code = apperror.CodeValidation
	case http.StatusNotFound:
		code = "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		code = "METHOD_NOT_ALLOWED"
	case http.StatusRequestEntityTooLarge:
		code = "PAYLOAD_TOO_LARGE"
	case http.StatusUnauthorized:
		code = apperror.CodeTokenInvalid
	case http.StatusTooManyRequests:
		code = apperror.CodeTooManyRequests
	}
	if he.Code >= http.StatusInternalServerError {
		return apperror.Internal()
	}
	return &apperror.Error{Status: he.Code, Code: code, Message: msg}
}
