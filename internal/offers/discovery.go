package offers

import (
	"context"
	"errors"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ofertas-ai/offers-cli/internal/extract"
	"github.com/ofertas-ai/offers-cli/internal/model"
)

// DiscoveryError is the only failure that crosses the orchestrator boundary.
// It always carries the upstream cause.
type DiscoveryError struct {
	Err error
}

func (e *DiscoveryError) Error() string {
	return "offers: discovery failed: " + e.Err.Error()
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// IsDiscoveryError reports whether err is a discovery failure.
func IsDiscoveryError(err error) bool {
	var de *DiscoveryError
	return errors.As(err, &de)
}

// Discoverer produces the candidate market list for a region.
type Discoverer interface {
	Discover(ctx context.Context, region model.Region) ([]model.MarketStub, error)
}

// DiscoveryClient asks the backend for candidate markets. It issues exactly
// one request and does not retry; any failure surfaces as a DiscoveryError.
type DiscoveryClient struct {
	backend Backend
}

// NewDiscoveryClient creates a DiscoveryClient on the given backend.
func NewDiscoveryClient(backend Backend) *DiscoveryClient {
	return &DiscoveryClient{backend: backend}
}

func (c *DiscoveryClient) Discover(ctx context.Context, region model.Region) ([]model.MarketStub, error) {
	body, err := c.backend.Request(ctx, ActionFind, Query{
		State: region.State,
		City:  region.City,
	})
	if err != nil {
		return nil, &DiscoveryError{Err: err}
	}

	var parsed struct {
		Supermarkets []model.MarketStub `json:"supermarkets"`
	}
	if err := extract.Decode(body, &parsed); err != nil {
		return nil, &DiscoveryError{Err: err}
	}

	stubs := make([]model.MarketStub, 0, len(parsed.Supermarkets))
	seen := make(map[string]bool)
	for i, s := range parsed.Supermarkets {
		if s.Name == "" {
			zap.L().Warn("discovery: dropping nameless market", zap.Int("index", i))
			continue
		}
		// IDs must be unique and stable for the run; repair absent or
		// duplicated ones with the ordinal position.
		if s.ID == "" || seen[s.ID] {
			s.ID = strconv.Itoa(i + 1)
		}
		seen[s.ID] = true
		stubs = append(stubs, s)
	}

	if len(stubs) == 0 {
		return nil, &DiscoveryError{Err: eris.New("no usable supermarkets in response")}
	}

	zap.L().Info("discovery complete",
		zap.String("city", region.City),
		zap.String("state", region.State),
		zap.Int("markets", len(stubs)),
	)
	return stubs, nil
}
