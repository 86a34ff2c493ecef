package cohort

// Table is the tabular result of a cohort query. Header holds the column
// names in query order; each entry of Data is one row aligned with it.
type Table struct {
	MeasureID string          `json:"measureId"`
	Header    []string        `json:"header"`
	Data      [][]interface{} `json:"data"`
	Truncated bool            `json:"truncated"`
}

// Sink receives the columns of a query once, then its rows one at a time.
// The values slice is reused between calls.
type Sink interface {
	Columns(names []string) error
	Append(values []interface{}) error
}

func (t *Table) Columns(names []string) error {
	t.Header = append([]string(nil), names...)
	return nil
}

func (t *Table) Append(values []interface{}) error {
	t.Data = append(t.Data, append([]interface{}(nil), values...))
	return nil
}
