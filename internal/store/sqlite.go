package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/ofertas-ai/offers-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	region_key TEXT NOT NULL,
	phase      TEXT NOT NULL,
	state      TEXT NOT NULL,
	created_at DATETIME NOT NULL
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
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_offers_run_id ON offers(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.Run) error {
	stateJSON, err := json.Marshal(run.State)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run state")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, region_key, phase, state, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.RegionKey, string(run.State.Phase), string(stateJSON), run.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
	}

	rows := offerRows(run)
	if len(rows) > 0 {
		placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(offerColumns)), ", ") + ")"
		insertSQL := `INSERT INTO offers (` + strings.Join(offerColumns, ", ") + `) VALUES ` + placeholder
		stmt, err := tx.PrepareContext(ctx, insertSQL)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare offer insert")
		}
		defer stmt.Close()

		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				return eris.Wrapf(err, "sqlite: insert offers for run %s", run.ID)
			}
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit run")
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, region_key, state, created_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, region_key, state, created_at FROM runs WHERE 1=1`
	var args []any

	if filter.RegionKey != "" {
		query += ` AND region_key = ?`
		args = append(args, filter.RegionKey)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var stateJSON string

	err := row.Scan(&r.ID, &r.RegionKey, &stateJSON, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(stateJSON), &r.State); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal run state")
	}
	r.Region = r.State.Region
	return &r, nil
}
