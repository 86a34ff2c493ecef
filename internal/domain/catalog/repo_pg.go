package catalog

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leap/qmapi/internal/platform/db"
	"github.com/leap/qmapi/pkg/apperrors"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

var measureCols = []interface{}{"id", "name", "description", "numerator", "denominator", "cohort_sql", "enabled"}

func scanMeasure(row pgx.Row) (*Measure, error) {
	var m Measure
	err := row.Scan(&m.ID, &m.Name, &m.Description, &m.Numerator, &m.Denominator, &m.CohortSQL, &m.Enabled)
	return &m, err
}

func organizationsQuery() (string, []interface{}, error) {
	return db.Build(db.Select("organizations").Select("id", "name", "description").Order(goqu.I("id").Asc()))
}

func measuresQuery(enabledOnly bool) (string, []interface{}, error) {
	ds := db.Select("measures").Select(measureCols...).Order(goqu.I("id").Asc())
	if enabledOnly {
		ds = ds.Where(db.Eq("enabled", true))
	}
	return db.Build(ds)
}

func measureByIDQuery(id string) (string, []interface{}, error) {
	return db.Build(db.Select("measures", db.Eq("id", id)).Select(measureCols...))
}

func dataSourcesQuery() (string, []interface{}, error) {
	return db.Build(db.Select("data_sources").Select("id", "name", "description").Order(goqu.I("id").Asc()))
}

func payersQuery() (string, []interface{}, error) {
	return db.Build(db.Select("payers").Select("id", "name").Order(goqu.I("id").Asc()))
}

func (r *repoPG) ListOrganizations(ctx context.Context) ([]Organization, error) {
	query, args, err := organizationsQuery()
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Organization{}
	for rows.Next() {
		var o Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Description); err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

func (r *repoPG) ListMeasures(ctx context.Context, enabledOnly bool) ([]Measure, error) {
	query, args, err := measuresQuery(enabledOnly)
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Measure{}
	for rows.Next() {
		m, err := scanMeasure(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *m)
	}
	return items, rows.Err()
}

func (r *repoPG) GetMeasure(ctx context.Context, id string) (*Measure, error) {
	query, args, err := measureByIDQuery(id)
	if err != nil {
		return nil, err
	}
	m, err := scanMeasure(r.conn(ctx).QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("measure not found")
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *repoPG) ListDataSources(ctx context.Context) ([]DataSource, error) {
	query, args, err := dataSourcesQuery()
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []DataSource{}
	for rows.Next() {
		var d DataSource
		if err := rows.Scan(&d.ID, &d.Name, &d.Description); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *repoPG) ListPayers(ctx context.Context) ([]Payer, error) {
	query, args, err := payersQuery()
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Payer{}
	for rows.Next() {
		var p Payer
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}
