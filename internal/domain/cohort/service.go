package cohort

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/leap/qmapi/internal/domain/catalog"
	"github.com/leap/qmapi/internal/platform/telemetry"
	"github.com/leap/qmapi/pkg/apperrors"
)

const DefaultMaxRows = 1000

// MeasureLookup resolves a measure, including its cohort query.
type MeasureLookup interface {
	GetMeasure(ctx context.Context, id string) (*catalog.Measure, error)
}

type Service struct {
	measures MeasureLookup
	source   Source
	maxRows  int
	metrics  *telemetry.Metrics
}

// NewService builds the cohort service. A nil source leaves every call
// answering Unavailable.
func NewService(measures MeasureLookup, source Source, maxRows int) *Service {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Service{measures: measures, source: source, maxRows: maxRows}
}

func (s *Service) SetMetrics(m *telemetry.Metrics) { s.metrics = m }

// Cohort runs the cohort query of measureID and collects up to the row limit.
func (s *Service) Cohort(ctx context.Context, measureID string) (*Table, error) {
	table := &Table{MeasureID: measureID, Header: []string{}, Data: [][]interface{}{}}
	truncated, err := s.run(ctx, measureID, table)
	if err != nil {
		return nil, err
	}
	table.Truncated = truncated
	return table, nil
}

// CohortCSV writes the same rows as Cohort to w as CSV, header first, and
// returns the number of data rows written.
func (s *Service) CohortCSV(ctx context.Context, measureID string, w io.Writer) (int, error) {
	sink := &csvSink{w: csv.NewWriter(w)}
	if _, err := s.run(ctx, measureID, sink); err != nil {
		return sink.rows, err
	}
	sink.w.Flush()
	if err := sink.w.Error(); err != nil {
		return sink.rows, apperrors.NewInternalError("failed to write cohort csv", err)
	}
	return sink.rows, nil
}

func (s *Service) run(ctx context.Context, measureID string, sink Sink) (truncated bool, err error) {
	ctx, span := telemetry.StartSpan(ctx, "cohort.query", attribute.String("measure.id", measureID))
	defer func() { telemetry.EndSpan(span, err) }()

	if measureID == "" {
		return false, apperrors.NewValidationError("measure is required")
	}
	if s.source == nil {
		return false, apperrors.NewUnavailableError("cohort warehouse is not configured")
	}

	m, err := s.measures.GetMeasure(ctx, measureID)
	if err != nil {
		return false, err
	}
	if !m.HasCohort() {
		return false, apperrors.NewNotFoundError("No cohort query for measure " + measureID)
	}

	counter := &countingSink{Sink: sink}
	start := time.Now()
	truncated, err = s.source.Stream(ctx, m.CohortSQL, s.maxRows, counter)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, apperrors.NewDataAccessError("failed to run cohort query", err)
	}
	s.metrics.ObserveCohortRows(counter.n)

	zerolog.Ctx(ctx).Debug().
		Str("measure", measureID).
		Int("rows", counter.n).
		Bool("truncated", truncated).
		Dur("took", time.Since(start)).
		Msg("cohort query finished")
	return truncated, nil
}

type countingSink struct {
	Sink
	n int
}

func (c *countingSink) Append(values []interface{}) error {
	c.n++
	return c.Sink.Append(values)
}

type csvSink struct {
	w      *csv.Writer
	record []string
	rows   int
}

func (s *csvSink) Columns(names []string) error {
	s.record = make([]string, len(names))
	return s.w.Write(names)
}

func (s *csvSink) Append(values []interface{}) error {
	for i, v := range values {
		s.record[i] = formatValue(v)
	}
	s.rows++
	return s.w.Write(s.record)
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if h, m, sec := x.Clock(); h == 0 && m == 0 && sec == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
