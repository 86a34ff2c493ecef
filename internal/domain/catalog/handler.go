package catalog

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/leap/qmapi/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/catalog", h.GetCatalog)
	api.GET("/organizations", h.ListOrganizations)
	api.GET("/measures", h.ListMeasures)
	api.GET("/data-sources", h.ListDataSources)
	api.GET("/payers", h.ListPayers)
}

func (h *Handler) GetCatalog(c echo.Context) error {
	snap, err := h.svc.Snapshot(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) ListOrganizations(c echo.Context) error {
	items, err := h.svc.ListOrganizations(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page(c, items))
}

// ListMeasures lists enabled measures unless ?enabled=false is passed.
func (h *Handler) ListMeasures(c echo.Context) error {
	enabledOnly := true
	if v := c.QueryParam("enabled"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid enabled parameter")
		}
		enabledOnly = b
	}
	items, err := h.svc.ListMeasures(c.Request().Context(), enabledOnly)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page(c, items))
}

func (h *Handler) ListDataSources(c echo.Context) error {
	items, err := h.svc.ListDataSources(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page(c, items))
}

func (h *Handler) ListPayers(c echo.Context) error {
	items, err := h.svc.ListPayers(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page(c, items))
}

func page[T any](c echo.Context, items []T) *pagination.Response {
	pg := pagination.FromContext(c)
	data, total := pagination.Slice(items, pg)
	resp := pagination.NewResponse(data, total, pg.Limit, pg.Offset)
	resp.Links = pg.Links(c.Request().URL.Path, total)
	return resp
}
