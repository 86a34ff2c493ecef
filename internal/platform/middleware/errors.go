package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/leap/qmapi/pkg/apperrors"
)

// ErrorHandler renders every error as {"error": message}. Application errors
// map to their status through apperrors.HTTPStatus; echo errors keep theirs.
// Causes of 5xx errors are logged, never sent.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := "internal server error"

		var he *echo.HTTPError
		var appErr *apperrors.AppError
		switch {
		case errors.As(err, &appErr):
			status = apperrors.HTTPStatus(appErr)
			message = appErr.Message
		case errors.As(err, &he):
			status = he.Code
			if status < 500 {
				message = fmt.Sprint(he.Message)
			} else {
				message = http.StatusText(status)
			}
		}

		if status >= 500 {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Int("status", status).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, map[string]string{"error": message})
		}
		if err != nil {
			logger.Error().Err(err).Msg("failed to write error response")
		}
	}
}
