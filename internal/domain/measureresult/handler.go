package measureresult

import (
	"encoding/csv"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/results", h.GetResults)
	api.GET("/results/detail", h.GetDetail)
}

// GetResults answers with the aggregated report, or a flattened CSV download
// when format=csv.
func (h *Handler) GetResults(c echo.Context) error {
	report, err := h.svc.Aggregate(c.Request().Context(), Filter{
		StartDate:     c.QueryParam("startDate"),
		EndDate:       c.QueryParam("endDate"),
		OrgIDs:        queryList(c, "org"),
		MeasureIDs:    queryList(c, "measure"),
		DataSourceIDs: queryList(c, "ds"),
	})
	if err != nil {
		return err
	}
	if strings.EqualFold(c.QueryParam("format"), "csv") {
		return writeCSV(c, report)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) GetDetail(c echo.Context) error {
	detail, err := h.svc.GetMeasureDetail(c.Request().Context(), DetailQuery{
		MeasureID:     c.QueryParam("measure"),
		OrgID:         c.QueryParam("org"),
		Month:         firstNonEmpty(c.QueryParam("month"), c.QueryParam("date")),
		DataSourceIDs: queryList(c, "ds"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, detail)
}

// queryList collects a repeated parameter, also accepting the name[] form and
// comma separated values.
func queryList(c echo.Context, name string) []string {
	params := c.QueryParams()
	var out []string
	for _, key := range []string{name, name + "[]"} {
		for _, raw := range params[key] {
			for _, v := range strings.Split(raw, ",") {
				if v = strings.TrimSpace(v); v != "" {
					out = append(out, v)
				}
			}
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var csvHeader = []string{"org_id", "measure_id", "month", "numerator", "denominator", "pct"}

// writeCSV flattens the report to one line per (org, measure, month). An
// undefined percentage is written as an empty field.
func writeCSV(c echo.Context, report *Report) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="measure-results.csv"`)
	res.WriteHeader(http.StatusOK)

	w := csv.NewWriter(res)
	if err := w.Write(csvHeader); err != nil {
		return err
	}

	orgIDs := make([]string, 0, len(report.Organizations))
	for id := range report.Organizations {
		orgIDs = append(orgIDs, id)
	}
	sort.Strings(orgIDs)

	for _, orgID := range orgIDs {
		for _, series := range report.Organizations[orgID].Measures {
			for _, month := range SortedMonths(series.Data) {
				cell := series.Data[month]
				pct := ""
				if cell.Pct != nil {
					pct = strconv.FormatFloat(*cell.Pct, 'f', 2, 64)
				}
				record := []string{
					orgID,
					series.ID,
					month,
					strconv.FormatInt(cell.Numerator, 10),
					strconv.FormatInt(cell.Denominator, 10),
					pct,
				}
				if err := w.Write(record); err != nil {
					return err
				}
			}
		}
	}
	w.Flush()
	return w.Error()
}
