package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const RequestIDHeader = "X-Request-ID"

// RequestID reuses the caller's X-Request-ID or generates one, echoes it in
// the response and adds it to the request logger.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" || len(rid) > 128 {
				rid = uuid.NewString()
			}
			c.Set("request_id", rid)
			c.Response().Header().Set(RequestIDHeader, rid)

			ctx := c.Request().Context()
			if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
				logger := l.With().Str("request_id", rid).Logger()
				c.SetRequest(c.Request().WithContext(logger.WithContext(ctx)))
			}
			return next(c)
		}
	}
}
