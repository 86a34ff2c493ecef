package main

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/leap/qmapi/internal/domain/catalog"
	"github.com/leap/qmapi/internal/domain/cohort"
	"github.com/leap/qmapi/internal/domain/measureresult"
	"github.com/leap/qmapi/internal/platform/auth"
	"github.com/leap/qmapi/internal/platform/db"
	"github.com/leap/qmapi/internal/platform/middleware"
	"github.com/leap/qmapi/internal/platform/telemetry"
)

const loginBurst = 5

// router builds the echo instance with the full middleware chain.
func (a *app) router() (*echo.Echo, error) {
	cfg, logger := a.cfg, a.logger

	users, err := auth.ParseUsers(cfg.Users)
	if err != nil {
		return nil, err
	}
	signer, err := auth.NewTokenSigner([]byte(cfg.SessionSecret))
	if err != nil {
		return nil, err
	}
	if cfg.SessionSecret == "" {
		logger.Warn().Msg("SESSION_SECRET not set, using a random key; sessions end on restart")
	}
	authSvc := auth.NewService(users, a.sessions, signer, auth.Options{TTL: cfg.SessionTTL, LoginDelay: cfg.LoginDelay})
	authSvc.SetMetrics(a.metrics)

	catalogSvc := catalog.NewService(a.catalog)
	resultsSvc := measureresult.NewService(a.catalog, a.facts)
	resultsSvc.SetMetrics(a.metrics)

	var source cohort.Source
	if a.warehouse != nil {
		source = a.warehouse
	}
	cohortSvc := cohort.NewService(catalogSvc, source, cfg.QueryMaxRows)
	cohortSvc.SetMetrics(a.metrics)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	e.Use(telemetry.TracingMiddleware(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(a.metrics.Middleware())
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, middleware.RequestIDHeader, "traceparent"},
		ExposeHeaders:    []string{middleware.RequestIDHeader, echo.HeaderContentDisposition},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit("64K"))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		Skipper:           isProbe,
	}))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, isDownload))
	e.Use(auth.Authenticate(authSvc))
	e.Use(auth.RequireUser(auth.AuthSkipper))
	e.Use(middleware.Audit(logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":    "ok",
			"version":   version,
			"data_mode": cfg.DataMode,
		})
	})
	e.GET("/health/db", db.HealthHandler(a.pool, a.checks...))
	e.GET("/metrics", a.metrics.Handler())

	authGroup := e.Group("/auth", middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.LoginRateLimitRPS,
		BurstSize:         loginBurst,
	}))
	auth.NewHandler(authSvc, cfg.IsProduction()).RegisterRoutes(authGroup)

	api := e.Group("/api")
	catalog.NewHandler(catalogSvc).RegisterRoutes(api)
	measureresult.NewHandler(resultsSvc).RegisterRoutes(api)
	cohort.NewHandler(cohortSvc).RegisterRoutes(api)

	return e, nil
}

func isProbe(c echo.Context) bool {
	p := c.Path()
	return p == "/health" || p == "/health/db" || p == "/metrics"
}

// isDownload exempts streamed CSV downloads from the request deadline.
func isDownload(c echo.Context) bool {
	return strings.HasSuffix(c.Path(), ".csv")
}
