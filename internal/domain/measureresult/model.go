package measureresult

import "time"

// Filter selects the facts that go into a Report. Empty ID lists select the
// whole catalog; dates are free-form and normalized to month boundaries.
type Filter struct {
	StartDate     string
	EndDate       string
	OrgIDs        []string
	MeasureIDs    []string
	DataSourceIDs []string
}

// DetailQuery selects a single (organization, measure, month) cell.
type DetailQuery struct {
	MeasureID     string
	OrgID         string
	Month         string
	DataSourceIDs []string
}

// FactRow is one stored monthly observation. Stores may also return rows that
// are already summed across data sources, in which case DataSourceID is empty.
type FactRow struct {
	OrgID        string    `db:"org_id" json:"org_id"`
	MeasureID    string    `db:"measure_id" json:"measure_id"`
	DataSourceID string    `db:"ds_id" json:"ds_id,omitempty"`
	Date         time.Time `db:"date" json:"date"`
	Numerator    int64     `db:"numerator" json:"numerator"`
	Denominator  int64     `db:"denominator" json:"denominator"`
}

// FactQuery is the single range query issued per aggregation. Bounds are
// inclusive calendar dates. A nil OrgIDs does not restrict organizations.
type FactQuery struct {
	From          time.Time
	To            time.Time
	OrgIDs        []string
	MeasureIDs    []string
	DataSourceIDs []string
}

// Cell is the aggregate of one (organization, measure, month). Pct is nil when
// the denominator is zero.
type Cell struct {
	Numerator   int64    `json:"numerator"`
	Denominator int64    `json:"denominator"`
	Pct         *float64 `json:"pct"`
}

type MeasureSeries struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Data map[string]Cell `json:"data"`
}

type OrgResult struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Measures    []MeasureSeries `json:"measures"`
}

// MeasureInfo describes a measure that took part in a report.
type MeasureInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Numerator   string `json:"numerator"`
	Denominator string `json:"denominator"`
}

// Report is the result of Aggregate. Organizations is keyed by org ID and
// each measure's Data by "YYYY-MM"; months without facts are absent.
type Report struct {
	StartDate     string                `json:"startDate"`
	EndDate       string                `json:"endDate"`
	Organizations map[string]*OrgResult `json:"organizations"`
	Measures      []MeasureInfo         `json:"measures"`
}

type OrgInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Detail is the result of GetMeasureDetail. Cell is nil when the month has no
// facts.
type Detail struct {
	Month         string      `json:"month"`
	StartDate     string      `json:"startDate"`
	EndDate       string      `json:"endDate"`
	Measure       MeasureInfo `json:"measure"`
	Organization  OrgInfo     `json:"organization"`
	DataSourceIDs []string    `json:"dataSources"`
	Cell          *Cell       `json:"result"`
	HasCohort     bool        `json:"hasCohort"`
}
