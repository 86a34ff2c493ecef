package cohort

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// Source runs a cohort query and feeds at most limit rows into sink. It
// reports whether more rows were available.
type Source interface {
	Stream(ctx context.Context, query string, limit int, sink Sink) (truncated bool, err error)
}

// Warehouse is the MySQL-compatible reporting database the cohort queries
// run against.
type Warehouse struct {
	db *sqlx.DB
}

// NewWarehouse opens a connection pool for dsn. No connection is made until
// the first query or Ping.
func NewWarehouse(dsn string) (*Warehouse, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse warehouse dsn: %w", err)
	}
	cfg.ParseTime = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("warehouse connector: %w", err)
	}

	db := sqlx.NewDb(sql.OpenDB(connector), "mysql")
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &Warehouse{db: db}, nil
}

// NewWarehouseFromDB wraps an existing handle.
func NewWarehouseFromDB(db *sqlx.DB) *Warehouse {
	return &Warehouse{db: db}
}

func (w *Warehouse) Ping(ctx context.Context) error {
	return w.db.PingContext(ctx)
}

func (w *Warehouse) Close() error {
	return w.db.Close()
}

func (w *Warehouse) Stream(ctx context.Context, query string, limit int, sink Sink) (bool, error) {
	rows, err := w.db.QueryxContext(ctx, query)
	if err != nil {
		return false, fmt.Errorf("run cohort query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return false, fmt.Errorf("read cohort columns: %w", err)
	}
	if err := sink.Columns(columns); err != nil {
		return false, err
	}

	n := 0
	for rows.Next() {
		if n >= limit {
			return true, nil
		}
		values, err := rows.SliceScan()
		if err != nil {
			return false, fmt.Errorf("scan cohort row: %w", err)
		}
		for i, v := range values {
			values[i] = normalize(v)
		}
		if err := sink.Append(values); err != nil {
			return false, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("iterate cohort rows: %w", err)
	}
	return false, nil
}

// normalize turns driver values into JSON friendly ones. Text columns come
// back from the driver as raw bytes.
func normalize(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
