package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/ofertas-ai/offers-cli/internal/model"
	"github.com/ofertas-ai/offers-cli/internal/offers"
	"github.com/ofertas-ai/offers-cli/internal/store"
	"github.com/ofertas-ai/offers-cli/pkg/anthropic"
	"github.com/ofertas-ai/offers-cli/pkg/offersapi"
)

// buildBackend constructs the search backend selected by config: "llm"
// prompts Claude in-process, "http" posts to a running serve instance.
func buildBackend() (offers.Backend, error) {
	switch cfg.Backend.Mode {
	case "llm", "":
		if cfg.Anthropic.Key == "" {
			return nil, eris.New("anthropic key not configured (set OFERTAS_ANTHROPIC_KEY)")
		}
		client := anthropic.NewClient(cfg.Anthropic.Key,
			anthropic.WithRateLimit(cfg.Anthropic.RateLimit, cfg.Anthropic.RateBurst))
		return offers.NewLLMBackend(client, cfg.Anthropic.Model), nil
	case "http":
		api := offersapi.NewClient(offersapi.WithBaseURL(cfg.Backend.BaseURL))
		return offers.NewRemoteBackend(api), nil
	default:
		return nil, eris.Errorf("unknown backend mode %q", cfg.Backend.Mode)
	}
}

// initStore opens the configured run store and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	var err error

	switch cfg.Store.Driver {
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// storeSink adapts a store to the orchestrator's RunSink.
type storeSink struct {
	st store.Store
}

func (s storeSink) SaveRun(ctx context.Context, run model.Run) error {
	return s.st.SaveRun(ctx, &run)
}
