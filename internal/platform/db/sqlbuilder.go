package db

import (
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
)

// Dialect builds PostgreSQL statements with numbered placeholders. Every value
// passed through a Predicate ends up in the argument list, never in the SQL
// text.
var Dialect = goqu.Dialect("postgres")

// Predicate is a single typed WHERE clause.
type Predicate = exp.Expression

// Eq matches column = value.
func Eq(column string, value interface{}) Predicate {
	return goqu.I(column).Eq(value)
}

// In matches column IN (values...). An empty list matches nothing.
func In[T any](column string, values []T) Predicate {
	if len(values) == 0 {
		return goqu.L("1 = 0")
	}
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return goqu.I(column).In(args...)
}

// Between matches from <= column <= to.
func Between(column string, from, to interface{}) Predicate {
	return goqu.I(column).Between(exp.NewRangeVal(from, to))
}

// Gte matches column >= value.
func Gte(column string, value interface{}) Predicate {
	return goqu.I(column).Gte(value)
}

// Lte matches column <= value.
func Lte(column string, value interface{}) Predicate {
	return goqu.I(column).Lte(value)
}

// Select starts a prepared SELECT over table with the given predicates ANDed
// together.
func Select(table string, where ...Predicate) *goqu.SelectDataset {
	ds := Dialect.From(goqu.T(table)).Prepared(true)
	if len(where) > 0 {
		ds = ds.Where(where...)
	}
	return ds
}

// SQLBuilder is satisfied by goqu datasets.
type SQLBuilder interface {
	ToSQL() (string, []interface{}, error)
}

// Build renders a dataset to SQL text and its arguments.
func Build(b SQLBuilder) (string, []interface{}, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build query: %w", err)
	}
	return query, args, nil
}
