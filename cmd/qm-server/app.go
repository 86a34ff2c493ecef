package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/leap/qmapi/internal/config"
	"github.com/leap/qmapi/internal/domain/catalog"
	"github.com/leap/qmapi/internal/domain/cohort"
	"github.com/leap/qmapi/internal/domain/measureresult"
	"github.com/leap/qmapi/internal/platform/auth"
	"github.com/leap/qmapi/internal/platform/db"
	"github.com/leap/qmapi/internal/platform/telemetry"
)

const sessionSweepInterval = time.Minute

// app holds the collaborators of a running server.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	metrics *telemetry.Metrics

	pool      *pgxpool.Pool
	catalog   catalog.Repository
	facts     measureresult.FactStore
	sessions  auth.Store
	warehouse *cohort.Warehouse

	checks  []db.Check
	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: telemetry.NewMetrics()}
	if err := a.initData(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initSessions(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initWarehouse(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// initData wires the catalog and fact store. In mock mode both live in memory
// and the facts are generated at startup.
func (a *app) initData(ctx context.Context) error {
	if a.cfg.IsMock() {
		a.catalog = catalog.NewMemoryRepo(catalog.Demo())
		store := measureresult.NewMemoryStore()
		gen := measureresult.NewGenerator(a.catalog, store, time.Now().UnixNano())
		n, err := gen.Generate(ctx, measureresult.GenerateOptions{})
		if err != nil {
			return fmt.Errorf("generate demo facts: %w", err)
		}
		a.facts = store
		a.logger.Info().Int("rows", n).Msg("generated in-memory measure results")
		return nil
	}

	pool, err := db.NewPool(ctx, a.cfg.DatabaseURL, a.cfg.DBMaxConns, a.cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	a.pool = pool
	a.closers = append(a.closers, pool.Close)
	a.checks = append(a.checks, db.Check{Name: "postgres", Pinger: pool})
	a.catalog = catalog.NewRepoPG(pool)
	a.facts = measureresult.NewFactRepoPG(pool)
	a.logger.Info().Msg("connected to database")
	return nil
}

func (a *app) initSessions(ctx context.Context) error {
	if a.cfg.RedisURL != "" {
		client, err := auth.NewRedisClient(a.cfg.RedisURL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		store := auth.NewRedisStore(client)
		if err := store.Ping(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("redis not reachable yet, sessions will fail until it is")
		}
		a.sessions = store
		a.checks = append(a.checks, db.Check{Name: "redis", Pinger: store})
		return nil
	}

	store := auth.NewMemoryStore()
	scheduler, err := store.StartSweeper(sessionSweepInterval, a.metrics.SetActiveSessions)
	if err != nil {
		return fmt.Errorf("start session sweeper: %w", err)
	}
	a.closers = append(a.closers, scheduler.Stop)
	a.sessions = store
	return nil
}

func (a *app) initWarehouse(ctx context.Context) error {
	if a.cfg.WarehouseDSN == "" {
		a.logger.Info().Msg("WAREHOUSE_DSN not set, cohort drill-down disabled")
		return nil
	}
	w, err := cohort.NewWarehouse(a.cfg.WarehouseDSN)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() { _ = w.Close() })
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := w.Ping(pingCtx); err != nil {
		a.logger.Warn().Err(err).Msg("cohort warehouse not reachable")
	}
	a.warehouse = w
	a.checks = append(a.checks, db.Check{Name: "warehouse", Pinger: w})
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status, at := "pending", ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				at = s.AppliedAt.Format(time.RFC3339)
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, at)
	}
}
