package cohort

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/measures/:id/cohort", h.GetCohort)
	api.GET("/measures/:id/cohort.csv", h.GetCohortCSV)
}

func (h *Handler) GetCohort(c echo.Context) error {
	table, err := h.svc.Cohort(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, table)
}

// GetCohortCSV streams the cohort as a download. Headers are only sent with
// the first flushed bytes, so failures before that still produce a JSON error.
func (h *Handler) GetCohortCSV(c echo.Context) error {
	id := c.Param("id")
	w := &attachment{c: c, filename: id + "-cohort.csv"}
	_, err := h.svc.CohortCSV(c.Request().Context(), id, w)
	if err != nil && c.Response().Committed {
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Str("measure", id).Msg("cohort csv aborted mid-stream")
		return nil
	}
	if err != nil {
		return err
	}
	if !c.Response().Committed {
		w.start()
	}
	return nil
}

type attachment struct {
	c        echo.Context
	filename string
}

func (a *attachment) start() {
	res := a.c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+a.filename+`"`)
	res.WriteHeader(http.StatusOK)
}

func (a *attachment) Write(p []byte) (int, error) {
	if !a.c.Response().Committed {
		a.start()
	}
	return a.c.Response().Write(p)
}
