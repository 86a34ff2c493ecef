package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/leap/qmapi/pkg/apperrors"
)

type Handler struct {
	svc          *Service
	secureCookie bool
}

// NewHandler serves login and logout. secureCookie marks the cookie Secure,
// which browsers only send over HTTPS.
func NewHandler(svc *Service, secureCookie bool) *Handler {
	return &Handler{svc: svc, secureCookie: secureCookie}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/login", h.Login)
	g.GET("/logout", h.Logout)
}

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type loginResponse struct {
	Username  string    `json:"username"`
	LastLogin time.Time `json:"lastLogin"`
}

// Login accepts a form or JSON body.
func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.NewValidationError("invalid login request")
	}
	sess, token, err := h.svc.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}
	c.SetCookie(h.cookie(token, sess.ExpiresAt))
	return c.JSON(http.StatusOK, loginResponse{Username: sess.Username, LastLogin: sess.LastLogin})
}

func (h *Handler) Logout(c echo.Context) error {
	var token string
	if cookie, err := c.Cookie(CookieName); err == nil {
		token = cookie.Value
	}
	if err := h.svc.Logout(c.Request().Context(), token); err != nil {
		return err
	}
	cleared := h.cookie("", time.Unix(0, 0))
	cleared.MaxAge = -1
	c.SetCookie(cleared)
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) cookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}
