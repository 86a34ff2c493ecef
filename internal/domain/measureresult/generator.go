package measureresult

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/leap/qmapi/internal/domain/catalog"
	"github.com/leap/qmapi/pkg/apperrors"
)

// maxGeneratedMonths bounds a single series to fifty years.
const maxGeneratedMonths = 600

// GenerateOptions narrows what the generator fills. Empty lists mean every
// organization and every enabled measure; an empty StartDate means January
// of the previous year.
type GenerateOptions struct {
	OrgIDs     []string
	MeasureIDs []string
	StartDate  string
}

// Generator produces plausible random fact rows for demos. Each
// (org, measure, data source) series keeps one denominator and a percentage
// that climbs through the year and restarts every January.
type Generator struct {
	catalog Catalog
	writer  FactWriter
	now     func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewGenerator(cat Catalog, writer FactWriter, seed int64) *Generator {
	return &Generator{
		catalog: cat,
		writer:  writer,
		now:     time.Now,
		rnd:     rand.New(rand.NewSource(seed)),
	}
}

func (g *Generator) SetClock(now func() time.Time) { g.now = now }

// Generate writes one row per month from the start month up to, but not
// including, the current month, for every selected org, measure and data
// source. It returns the number of rows written.
func (g *Generator) Generate(ctx context.Context, opts GenerateOptions) (int, error) {
	orgs, err := g.catalog.ListOrganizations(ctx)
	if err != nil {
		return 0, apperrors.NewDataAccessError("failed to list organizations", err)
	}
	measures, err := g.catalog.ListMeasures(ctx, true)
	if err != nil {
		return 0, apperrors.NewDataAccessError("failed to list measures", err)
	}
	sources, err := g.catalog.ListDataSources(ctx)
	if err != nil {
		return 0, apperrors.NewDataAccessError("failed to list data sources", err)
	}
	if orgs, err = intersect(opts.OrgIDs, orgs, func(o catalog.Organization) string { return o.ID }, msgNoOrganizations); err != nil {
		return 0, err
	}
	if measures, err = intersect(opts.MeasureIDs, measures, func(m catalog.Measure) string { return m.ID }, msgNoMeasures); err != nil {
		return 0, err
	}

	now := g.now().UTC()
	start, ok := parseDate(opts.StartDate)
	if !ok {
		start = defaultStart(now)
	}
	start = monthStart(start)
	months := monthsBetween(start, now)
	if months > maxGeneratedMonths {
		months = maxGeneratedMonths
	}

	g.mu.Lock()
	rows := make([]FactRow, 0, len(orgs)*len(measures)*len(sources)*months)
	for _, o := range orgs {
		for _, m := range measures {
			for _, ds := range sources {
				rows = append(rows, g.series(o.ID, m.ID, ds.ID, start, months)...)
			}
		}
	}
	g.mu.Unlock()

	n, err := g.writer.InsertFacts(ctx, rows)
	if err != nil {
		return 0, apperrors.NewDataAccessError("failed to store generated measure results", err)
	}
	zerolog.Ctx(ctx).Info().
		Int("rows", n).
		Str("start", start.Format(dateLayout)).
		Int("months", months).
		Msg("generated measure results")
	return n, nil
}

// series must be called with g.mu held.
func (g *Generator) series(orgID, measureID, dsID string, start time.Time, months int) []FactRow {
	denominator := int64(100 + g.rnd.Intn(1001))
	rows := make([]FactRow, 0, months)
	prev := 0.0
	for i := 0; i < months; i++ {
		date := start.AddDate(0, i, 0)
		if date.Month() == time.January {
			prev = 0
		}
		pct := nextPercent(prev, g.rnd.Float64())
		rows = append(rows, FactRow{
			OrgID:        orgID,
			MeasureID:    measureID,
			DataSourceID: dsID,
			Date:         date,
			Numerator:    int64(math.Round(float64(denominator) / 100 * pct)),
			Denominator:  denominator,
		})
		prev = pct
	}
	return rows
}

// nextPercent grows prev by up to 12.5 points, capped at 100 and rounded to
// two decimals.
func nextPercent(prev, r float64) float64 {
	pct := math.Min(100, prev+r*100/8)
	return math.Round(pct*100) / 100
}
