// Package store persists completed search runs. Two drivers exist: SQLite
// for local single-user use and PostgreSQL for shared deployments.
package store

import (
	"context"

	"github.com/ofertas-ai/offers-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	RegionKey string `json:"region_key,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for run history.
type Store interface {
	SaveRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

// offerColumns are the denormalized per-product columns written alongside
// each run. The run row's state JSON is authoritative; these rows exist for
// ad hoc SQL over offer prices.
var offerColumns = []string{"run_id", "market_id", "market_name", "category", "product", "price", "old_price"}

func offerRows(run *model.Run) [][]any {
	var rows [][]any
	for _, m := range run.State.Markets {
		for _, p := range m.Products {
			rows = append(rows, []any{run.ID, m.ID, m.Name, p.Category, p.Name, p.Price, p.OldPrice})
		}
	}
	return rows
}
