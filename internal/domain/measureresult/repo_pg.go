package measureresult

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leap/qmapi/internal/platform/db"
)

// insertBatchSize keeps a single INSERT well below PostgreSQL's 65535
// parameter limit.
const insertBatchSize = 1000

type factRepoPG struct{ pool *pgxpool.Pool }

// NewFactRepoPG returns a PostgreSQL fact store. QueryFacts sums rows across
// data sources in SQL, so it returns one row per (org, measure, month).
func NewFactRepoPG(pool *pgxpool.Pool) FactRepository {
	return &factRepoPG{pool: pool}
}

func (r *factRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

var monthExpr = goqu.L("date_trunc('month', mr.date)::date")

func factsQuery(q FactQuery) (string, []interface{}, error) {
	ds := db.Dialect.From(goqu.T("measure_results").As("mr")).Prepared(true).
		Select(
			goqu.I("mr.org_id"),
			goqu.I("mr.measure_id"),
			monthExpr.As("month"),
			goqu.Cast(goqu.SUM("mr.numerator"), "BIGINT").As("numerator"),
			goqu.Cast(goqu.SUM("mr.denominator"), "BIGINT").As("denominator"),
		).
		Where(
			db.Between("mr.date", q.From, q.To),
			db.In("mr.measure_id", q.MeasureIDs),
			db.In("mr.ds_id", q.DataSourceIDs),
		).
		GroupBy(goqu.I("mr.org_id"), goqu.I("mr.measure_id"), monthExpr).
		Order(monthExpr.Asc(), goqu.I("mr.org_id").Asc(), goqu.I("mr.measure_id").Asc())
	if q.OrgIDs != nil {
		ds = ds.Where(db.In("mr.org_id", q.OrgIDs))
	}
	return db.Build(ds)
}

func (r *factRepoPG) QueryFacts(ctx context.Context, q FactQuery) ([]FactRow, error) {
	query, args, err := factsQuery(q)
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []FactRow{}
	for rows.Next() {
		var f FactRow
		if err := rows.Scan(&f.OrgID, &f.MeasureID, &f.Date, &f.Numerator, &f.Denominator); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func insertQuery(rows []FactRow) (string, []interface{}, error) {
	vals := make([][]interface{}, len(rows))
	for i, f := range rows {
		vals[i] = []interface{}{f.OrgID, f.MeasureID, f.DataSourceID, monthStart(f.Date.UTC()), f.Numerator, f.Denominator}
	}
	return db.Build(db.Dialect.Insert("measure_results").Prepared(true).
		Cols("org_id", "measure_id", "ds_id", "date", "numerator", "denominator").
		Vals(vals...))
}

// InsertFacts writes rows in batches inside one transaction.
func (r *factRepoPG) InsertFacts(ctx context.Context, rows []FactRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		query, args, err := insertQuery(rows[start:end])
		if err != nil {
			return 0, err
		}
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("insert measure results: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit measure results: %w", err)
	}
	return inserted, nil
}
