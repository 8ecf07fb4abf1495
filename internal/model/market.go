package model

import (
	"net/url"
	"time"
)

// RunPhase represents the current state of a search run.
type RunPhase string

const (
	PhaseDiscovering     RunPhase = "discovering"
	PhasePartial         RunPhase = "partial"
	PhaseComplete        RunPhase = "complete"
	PhaseDiscoveryFailed RunPhase = "discovery_failed"
)

// MarketStatus represents the enrichment state of a single market record.
type MarketStatus string

const (
	MarketStatusPending MarketStatus = "pending"
	MarketStatusReady   MarketStatus = "ready"
	MarketStatusFailed  MarketStatus = "failed"
)

// PriceTier classifies a market's overall price level.
type PriceTier string

const (
	TierCheap     PriceTier = "CHEAP"
	TierMedium    PriceTier = "MEDIUM"
	TierExpensive PriceTier = "EXPENSIVE"
)

// Product categories requested from the backend, in display order.
const (
	CategoryGrocery  = "Mercearia"
	CategoryBeverage = "Bebidas"
	CategoryCleaning = "Limpeza"
	CategoryProduce  = "Hortifruti"
	CategoryOther    = "Outros"
)

// CategoryOrder is the fixed display ordering for offer categories.
var CategoryOrder = []string{
	CategoryGrocery,
	CategoryBeverage,
	CategoryCleaning,
	CategoryProduce,
	CategoryOther,
}

// Region identifies the location for one search run.
type Region struct {
	State string `json:"state"`
	City  string `json:"city"`
}

// Valid reports whether both the state code and the city are set.
func (r Region) Valid() bool {
	return r.State != "" && r.City != ""
}

// MarketStub is a discovered market before enrichment. Immutable once created.
type MarketStub struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProductOffer is one priced item from a market's current offers.
// Price and OldPrice are opaque two-decimal strings (e.g. "12,90");
// they are displayed, never parsed.
type ProductOffer struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	OldPrice string `json:"oldPrice,omitempty"`
}

// DetailPayload holds the enrichment data for one market.
type DetailPayload struct {
	Tier      PriceTier      `json:"badgeType,omitempty"`
	BadgeText string         `json:"badgeText,omitempty"`
	Savings   string         `json:"savings,omitempty"`
	Validity  string         `json:"validity,omitempty"`
	Link      string         `json:"link,omitempty"`
	Products  []ProductOffer `json:"products"`
}

// MarketRecord is the per-market state tracked during a run. ID and Name are
// fixed at discovery time; the remaining fields are meaningful once Status
// has left MarketStatusPending.
type MarketRecord struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Status    MarketStatus   `json:"status"`
	Tier      PriceTier      `json:"badgeType,omitempty"`
	BadgeText string         `json:"badgeText,omitempty"`
	Savings   string         `json:"savings,omitempty"`
	Validity  string         `json:"validity,omitempty"`
	Link      string         `json:"link,omitempty"`
	Products  []ProductOffer `json:"products"`
}

// SourceURL returns the market's offer link when it is a usable http(s) URL,
// otherwise a Google search URL for the market's current flyer in the region.
func (m MarketRecord) SourceURL(region Region) string {
	if len(m.Link) >= 4 && m.Link[:4] == "http" {
		return m.Link
	}
	q := url.QueryEscape("ofertas folheto " + m.Name + " " + region.City + " " + region.State)
	return "https://www.google.com/search?q=" + q
}

// GroupedProducts buckets a record's products by category, preserving the
// order within each category. Unknown categories fall under CategoryOther.
func (m MarketRecord) GroupedProducts() map[string][]ProductOffer {
	known := make(map[string]bool, len(CategoryOrder))
	for _, c := range CategoryOrder {
		known[c] = true
	}
	grouped := make(map[string][]ProductOffer)
	for _, p := range m.Products {
		cat := p.Category
		if cat == "" || !known[cat] {
			cat = CategoryOther
		}
		grouped[cat] = append(grouped[cat], p)
	}
	return grouped
}

// RunState is the externally observed aggregate for one search run.
// Markets keep discovery order for the run's whole lifetime.
type RunState struct {
	Region  Region         `json:"region"`
	Phase   RunPhase       `json:"phase"`
	Markets []MarketRecord `json:"markets"`
	Error   string         `json:"error,omitempty"`
}

// PendingCount returns the number of markets still awaiting enrichment.
func (s RunState) PendingCount() int {
	n := 0
	for _, m := range s.Markets {
		if m.Status == MarketStatusPending {
			n++
		}
	}
	return n
}

// Clone returns a deep copy safe to hand to readers.
func (s RunState) Clone() RunState {
	out := s
	out.Markets = make([]MarketRecord, len(s.Markets))
	for i, m := range s.Markets {
		out.Markets[i] = m
		if m.Products != nil {
			out.Markets[i].Products = append([]ProductOffer(nil), m.Products...)
		}
	}
	return out
}

// Run is a persisted search run.
type Run struct {
	ID        string    `json:"id"`
	Region    Region    `json:"region"`
	RegionKey string    `json:"region_key"`
	State     RunState  `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}
