package auth

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// CookieName is the cookie holding the session token.
const CookieName = "sid"

type contextKey string

const UserKey contextKey = "user"

// Authenticate resolves the session cookie on every request. Requests without
// a valid session continue anonymously; RequireUser decides whether that is
// allowed.
func Authenticate(svc *Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(CookieName)
			if err != nil || cookie.Value == "" {
				return next(c)
			}

			ctx := c.Request().Context()
			sess, err := svc.Resolve(ctx, cookie.Value)
			if err != nil {
				zerolog.Ctx(ctx).Debug().Err(err).Msg("ignoring session cookie")
				return next(c)
			}

			c.Set(string(UserKey), sess.Username)
			c.SetRequest(c.Request().WithContext(WithUser(ctx, sess.Username)))
			return next(c)
		}
	}
}

// RequireUser rejects anonymous requests unless skipper allows them.
func RequireUser(skipper middleware.Skipper) echo.MiddlewareFunc {
	if skipper == nil {
		skipper = middleware.DefaultSkipper
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper(c) || UserFromContext(c.Request().Context()) != "" {
				return next(c)
			}
			return c.JSON(http.StatusUnauthorized, map[string]interface{}{
				"code":       http.StatusUnauthorized,
				"statusText": http.StatusText(http.StatusUnauthorized),
			})
		}
	}
}

func WithUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, UserKey, username)
}

func UserFromContext(ctx context.Context) string {
	user, _ := ctx.Value(UserKey).(string)
	return user
}
