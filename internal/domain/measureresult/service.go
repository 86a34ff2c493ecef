package measureresult

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/leap/qmapi/internal/domain/catalog"
	"github.com/leap/qmapi/internal/platform/telemetry"
	"github.com/leap/qmapi/pkg/apperrors"
)

const (
	msgNoOrganizations = "No organization(s) found"
	msgNoMeasures      = "No measure(s) found"
	msgNoDataSources   = "No dataSource(s) found"
)

// Service aggregates monthly measure facts into per-organization reports.
// It holds no mutable state and is safe for concurrent use.
type Service struct {
	catalog Catalog
	facts   FactStore
	metrics *telemetry.Metrics
	now     func() time.Time
}

func NewService(cat Catalog, facts FactStore) *Service {
	return &Service{catalog: cat, facts: facts, now: time.Now}
}

func (s *Service) SetMetrics(m *telemetry.Metrics) { s.metrics = m }
func (s *Service) SetClock(now func() time.Time)   { s.now = now }

// resolved is the outcome of filter normalization.
type resolved struct {
	orgs        []catalog.Organization
	measures    []catalog.Measure
	dataSources []catalog.DataSource
}

// Aggregate resolves f against the catalog, runs one fact query over the
// normalized window and reshapes the grouped sums into a Report.
func (s *Service) Aggregate(ctx context.Context, f Filter) (report *Report, err error) {
	start := time.Now()
	rows := -1
	ctx, span := telemetry.StartSpan(ctx, "measureresult.Aggregate")
	defer func() {
		s.metrics.ObserveAggregation("aggregate", outcome(err), time.Since(start), rows)
		telemetry.EndSpan(span, err)
	}()

	from, to := normalizeWindow(f.StartDate, f.EndDate, s.now())
	span.SetAttributes(
		attribute.String("qm.start_date", from.Format(dateLayout)),
		attribute.String("qm.end_date", to.Format(dateLayout)),
	)

	r, err := s.resolve(ctx, f.OrgIDs, f.MeasureIDs, f.DataSourceIDs)
	if err != nil {
		return nil, err
	}

	facts, err := s.facts.QueryFacts(ctx, FactQuery{
		From:          from,
		To:            to,
		OrgIDs:        orgIDs(r.orgs),
		MeasureIDs:    measureIDs(r.measures),
		DataSourceIDs: dataSourceIDs(r.dataSources),
	})
	if err != nil {
		return nil, apperrors.NewDataAccessError("failed to query measure results", err)
	}
	rows = len(facts)
	span.SetAttributes(attribute.Int("qm.fact_rows", rows))

	groups := group(facts, from, to)

	report = &Report{
		StartDate:     from.Format(dateLayout),
		EndDate:       to.Format(dateLayout),
		Organizations: make(map[string]*OrgResult, len(r.orgs)),
		Measures:      make([]MeasureInfo, 0, len(r.measures)),
	}
	for _, m := range r.measures {
		report.Measures = append(report.Measures, measureInfo(m))
	}
	for _, o := range r.orgs {
		res := &OrgResult{
			Name:        o.Name,
			Description: o.Description,
			Measures:    make([]MeasureSeries, 0, len(r.measures)),
		}
		for _, m := range r.measures {
			res.Measures = append(res.Measures, MeasureSeries{
				ID:   m.ID,
				Name: m.Name,
				Data: groups.series(o.ID, m.ID),
			})
		}
		report.Organizations[o.ID] = res
	}

	zerolog.Ctx(ctx).Debug().
		Int("organizations", len(r.orgs)).
		Int("measures", len(r.measures)).
		Int("fact_rows", rows).
		Msg("aggregated measure results")
	return report, nil
}

// GetMeasureDetail computes the single cell of one measure, organization and
// month, using the same normalization rules as Aggregate.
func (s *Service) GetMeasureDetail(ctx context.Context, q DetailQuery) (detail *Detail, err error) {
	start := time.Now()
	rows := -1
	ctx, span := telemetry.StartSpan(ctx, "measureresult.GetMeasureDetail",
		attribute.String("qm.measure_id", q.MeasureID),
		attribute.String("qm.org_id", q.OrgID),
	)
	defer func() {
		s.metrics.ObserveAggregation("detail", outcome(err), time.Since(start), rows)
		telemetry.EndSpan(span, err)
	}()

	measureID := strings.TrimSpace(q.MeasureID)
	orgID := strings.TrimSpace(q.OrgID)
	if measureID == "" {
		return nil, apperrors.NewValidationError("measure is required")
	}
	if orgID == "" {
		return nil, apperrors.NewValidationError("org is required")
	}

	r, err := s.resolve(ctx, []string{orgID}, []string{measureID}, q.DataSourceIDs)
	if err != nil {
		return nil, err
	}
	org, measure := r.orgs[0], r.measures[0]

	from, to := normalizeMonth(q.Month, s.now())
	facts, err := s.facts.QueryFacts(ctx, FactQuery{
		From:          from,
		To:            to,
		OrgIDs:        []string{org.ID},
		MeasureIDs:    []string{measure.ID},
		DataSourceIDs: dataSourceIDs(r.dataSources),
	})
	if err != nil {
		return nil, apperrors.NewDataAccessError("failed to query measure results", err)
	}
	rows = len(facts)

	detail = &Detail{
		Month:         MonthKey(from),
		StartDate:     from.Format(dateLayout),
		EndDate:       to.Format(dateLayout),
		Measure:       measureInfo(measure),
		Organization:  OrgInfo{ID: org.ID, Name: org.Name, Description: org.Description},
		DataSourceIDs: dataSourceIDs(r.dataSources),
		HasCohort:     measure.HasCohort(),
	}
	if cell, ok := group(facts, from, to).series(org.ID, measure.ID)[detail.Month]; ok {
		detail.Cell = &cell
	}
	return detail, nil
}

func (s *Service) resolve(ctx context.Context, orgFilter, measureFilter, dsFilter []string) (*resolved, error) {
	orgs, err := s.catalog.ListOrganizations(ctx)
	if err != nil {
		return nil, apperrors.NewDataAccessError("failed to list organizations", err)
	}
	measures, err := s.catalog.ListMeasures(ctx, true)
	if err != nil {
		return nil, apperrors.NewDataAccessError("failed to list measures", err)
	}
	dataSources, err := s.catalog.ListDataSources(ctx)
	if err != nil {
		return nil, apperrors.NewDataAccessError("failed to list data sources", err)
	}

	var r resolved
	if r.orgs, err = intersect(orgFilter, orgs, func(o catalog.Organization) string { return o.ID }, msgNoOrganizations); err != nil {
		return nil, err
	}
	if r.measures, err = intersect(measureFilter, measures, func(m catalog.Measure) string { return m.ID }, msgNoMeasures); err != nil {
		return nil, err
	}
	// The catalog is asked for enabled measures only; this keeps a store
	// that ignores the flag from leaking disabled ones.
	r.measures = enabledOnly(r.measures)
	if len(r.measures) == 0 && len(normalizeIDs(measureFilter)) > 0 {
		return nil, apperrors.NewNotFoundError(msgNoMeasures)
	}
	if r.dataSources, err = intersect(dsFilter, dataSources, func(d catalog.DataSource) string { return d.ID }, msgNoDataSources); err != nil {
		return nil, err
	}
	return &r, nil
}

// intersect keeps the catalog entries named by requested, in catalog order.
// An empty request selects everything; a non-empty request that matches
// nothing fails with a NotFound error carrying msg.
func intersect[T any](requested []string, all []T, id func(T) string, msg string) ([]T, error) {
	ids := normalizeIDs(requested)
	if len(ids) == 0 {
		return all, nil
	}
	want := make(map[string]struct{}, len(ids))
	for _, v := range ids {
		want[v] = struct{}{}
	}
	out := make([]T, 0, len(ids))
	for _, item := range all {
		if _, ok := want[id(item)]; ok {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil, apperrors.NewNotFoundError(msg)
	}
	return out, nil
}

// normalizeIDs trims entries and drops blanks and duplicates.
func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, v := range ids {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func enabledOnly(measures []catalog.Measure) []catalog.Measure {
	out := measures[:0:0]
	for _, m := range measures {
		if m.Enabled {
			out = append(out, m)
		}
	}
	return out
}

type seriesKey struct {
	org, measure string
}

type sums struct {
	numerator, denominator int64
}

type grouped map[seriesKey]map[string]*sums

// group sums rows by (org, measure, month). Rows outside [from, to] are
// dropped, so stores may return either raw or pre-summed rows.
func group(rows []FactRow, from, to time.Time) grouped {
	g := make(grouped)
	for _, row := range rows {
		d := row.Date.UTC()
		if d.Before(from) || d.After(to) {
			continue
		}
		k := seriesKey{org: row.OrgID, measure: row.MeasureID}
		months, ok := g[k]
		if !ok {
			months = make(map[string]*sums)
			g[k] = months
		}
		month := MonthKey(d)
		acc, ok := months[month]
		if !ok {
			acc = &sums{}
			months[month] = acc
		}
		acc.numerator += row.Numerator
		acc.denominator += row.Denominator
	}
	return g
}

func (g grouped) series(orgID, measureID string) map[string]Cell {
	months := g[seriesKey{org: orgID, measure: measureID}]
	data := make(map[string]Cell, len(months))
	for month, v := range months {
		data[month] = newCell(v.numerator, v.denominator)
	}
	return data
}

func measureInfo(m catalog.Measure) MeasureInfo {
	return MeasureInfo{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Numerator:   m.Numerator,
		Denominator: m.Denominator,
	}
}

func orgIDs(orgs []catalog.Organization) []string {
	ids := make([]string, len(orgs))
	for i, o := range orgs {
		ids[i] = o.ID
	}
	return ids
}

func measureIDs(measures []catalog.Measure) []string {
	ids := make([]string, len(measures))
	for i, m := range measures {
		ids[i] = m.ID
	}
	return ids
}

func dataSourceIDs(ds []catalog.DataSource) []string {
	ids := make([]string, len(ds))
	for i, d := range ds {
		ids[i] = d.ID
	}
	return ids
}

// SortedMonths returns the month keys of data in ascending order.
func SortedMonths(data map[string]Cell) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case apperrors.IsNotFound(err):
		return "not_found"
	case apperrors.TypeOf(err) == apperrors.ErrorTypeValidation:
		return "invalid"
	default:
		return "error"
	}
}
