package catalog

// Organization maps to the organizations table.
type Organization struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
}

// DataSource maps to the data_sources table, e.g. one EHR extract.
type DataSource struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
}

// Payer maps to the payers table.
type Payer struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Measure maps to the measures table. CohortSQL is the warehouse query that
// lists the patients behind the measure and is never sent to clients.
type Measure struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	Numerator   string `db:"numerator" json:"numerator"`
	Denominator string `db:"denominator" json:"denominator"`
	CohortSQL   string `db:"cohort_sql" json:"-"`
	Enabled     bool   `db:"enabled" json:"enabled"`
}

// HasCohort reports whether a drill-down query is configured.
func (m *Measure) HasCohort() bool { return m.CohortSQL != "" }

// Snapshot is the whole reference catalog.
type Snapshot struct {
	DataSources   []DataSource   `json:"dataSources"`
	Measures      []Measure      `json:"measures"`
	Organizations []Organization `json:"organizations"`
	Payers        []Payer        `json:"payers"`
}
