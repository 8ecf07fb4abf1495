package offers

import (
	"context"

	"go.uber.org/zap"

	"github.com/ofertas-ai/offers-cli/internal/extract"
	"github.com/ofertas-ai/offers-cli/internal/model"
)

// Fallback sentinel values shown when a market's offer data is unavailable.
const (
	FallbackBadgeText = "Verificar no Site"
	FallbackSavings   = "-"
	FallbackValidity  = "Indisponível"
)

// FallbackPayload is the degraded detail payload. One market's unavailable
// data must never block or fail the run, so every detail failure resolves
// to this instead of an error.
func FallbackPayload() model.DetailPayload {
	return model.DetailPayload{
		Tier:      model.TierMedium,
		BadgeText: FallbackBadgeText,
		Savings:   FallbackSavings,
		Validity:  FallbackValidity,
		Products:  []model.ProductOffer{},
	}
}

// DetailFetcher enriches one discovered market with current offers.
type DetailFetcher interface {
	FetchDetails(ctx context.Context, stub model.MarketStub, region model.Region) model.DetailPayload
}

// DetailClient asks the backend for one market's priced offers. Transport
// and extraction failures, and empty product lists, are all absorbed into
// FallbackPayload; this call never returns an error.
type DetailClient struct {
	backend Backend
}

// NewDetailClient creates a DetailClient on the given backend.
func NewDetailClient(backend Backend) *DetailClient {
	return &DetailClient{backend: backend}
}

func (c *DetailClient) FetchDetails(ctx context.Context, stub model.MarketStub, region model.Region) model.DetailPayload {
	body, err := c.backend.Request(ctx, ActionDetails, Query{
		State:      region.State,
		City:       region.City,
		MarketName: stub.Name,
	})
	if err != nil {
		zap.L().Warn("details: request failed, using fallback",
			zap.String("market", stub.Name),
			zap.Error(err),
		)
		return FallbackPayload()
	}

	var payload model.DetailPayload
	if err := extract.Decode(body, &payload); err != nil {
		zap.L().Warn("details: unparseable response, using fallback",
			zap.String("market", stub.Name),
			zap.Error(err),
		)
		return FallbackPayload()
	}

	if len(payload.Products) == 0 {
		zap.L().Info("details: empty offer list, using fallback",
			zap.String("market", stub.Name),
		)
		return FallbackPayload()
	}

	switch payload.Tier {
	case model.TierCheap, model.TierMedium, model.TierExpensive:
	default:
		payload.Tier = model.TierMedium
	}

	zap.L().Info("details complete",
		zap.String("market", stub.Name),
		zap.Int("products", len(payload.Products)),
	)
	return payload
}
