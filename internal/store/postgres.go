package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/ofertas-ai/offers-cli/internal/db"
	"github.com/ofertas-ai/offers-cli/internal/model"
	"github.com/ofertas-ai/offers-cli/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	retry   resilience.RetryConfig
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run": `INSERT INTO runs (id, region_key, phase, state, created_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`,
	"get_run":    `SELECT id, region_key, state, created_at FROM runs WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("postgres", "save_run")
	return &PostgresStore{pool: pool, retry: retry, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	region_key TEXT NOT NULL,
	phase      TEXT NOT NULL,
	state      JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS offers (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	market_id   TEXT NOT NULL,
	market_name TEXT NOT NULL,
	category    TEXT NOT NULL,
	product     TEXT NOT NULL,
	price       TEXT NOT NULL,
	old_price   TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_region_key ON runs(region_key);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_offers_run_id ON offers(run_id);
CREATE INDEX IF NOT EXISTS idx_offers_category ON offers(category);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *model.Run) error {
	stateJSON, err := json.Marshal(run.State)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run state")
	}

	return resilience.Do(ctx, s.retry, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO runs (id, region_key, phase, state, created_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`,
			run.ID, run.RegionKey, string(run.State.Phase), stateJSON, run.CreatedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert run %s", run.ID)
		}

		if _, err := db.CopyFrom(ctx, s.pool, "offers", offerColumns, offerRows(run)); err != nil {
			return eris.Wrapf(err, "postgres: insert offers for run %s", run.ID)
		}
		return nil
	})
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var stateJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, region_key, state, created_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.RegionKey, &stateJSON, &r.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if err := json.Unmarshal(stateJSON, &r.State); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal run state")
	}
	r.Region = r.State.Region
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, region_key, state, created_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.RegionKey != "" {
		query += fmt.Sprintf(` AND region_key = $%d`, argIdx)
		args = append(args, filter.RegionKey)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var stateJSON []byte

		if err := rows.Scan(&r.ID, &r.RegionKey, &stateJSON, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := json.Unmarshal(stateJSON, &r.State); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run state")
		}
		r.Region = r.State.Region
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
