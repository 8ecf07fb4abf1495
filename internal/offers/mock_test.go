package offers

import (
	"context"
	"sync"

	"github.com/ofertas-ai/offers-cli/internal/model"
	"github.com/ofertas-ai/offers-cli/pkg/anthropic"
)

// stubBackend answers Request from a canned response map keyed by action,
// recording every query it sees.
type stubBackend struct {
	mu        sync.Mutex
	responses map[Action]string
	err       error
	queries   []Query
}

func (b *stubBackend) Request(_ context.Context, action Action, q Query) (string, error) {
	b.mu.Lock()
	b.queries = append(b.queries, q)
	b.mu.Unlock()
	if b.err != nil {
		return "", b.err
	}
	return b.responses[action], nil
}

func (b *stubBackend) seen() []Query {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Query(nil), b.queries...)
}

// fakeDiscoverer returns fixed stubs or a fixed error.
type fakeDiscoverer struct {
	stubs []model.MarketStub
	err   error
}

func (d *fakeDiscoverer) Discover(context.Context, model.Region) ([]model.MarketStub, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.stubs, nil
}

// gatedDetails blocks each FetchDetails until the test releases that market,
// so tests control resolution order across markets.
type gatedDetails struct {
	mu       sync.Mutex
	gates    map[string]chan struct{}
	payloads map[string]model.DetailPayload
}

func newGatedDetails() *gatedDetails {
	return &gatedDetails{
		gates:    make(map[string]chan struct{}),
		payloads: make(map[string]model.DetailPayload),
	}
}

func (d *gatedDetails) gate(marketID string, payload model.DetailPayload) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gates[marketID] = make(chan struct{})
	d.payloads[marketID] = payload
}

// set registers an ungated payload that resolves immediately.
func (d *gatedDetails) set(marketID string, payload model.DetailPayload) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payloads[marketID] = payload
}

func (d *gatedDetails) release(marketID string) {
	d.mu.Lock()
	ch := d.gates[marketID]
	d.mu.Unlock()
	close(ch)
}

func (d *gatedDetails) FetchDetails(ctx context.Context, stub model.MarketStub, _ model.Region) model.DetailPayload {
	d.mu.Lock()
	ch := d.gates[stub.ID]
	payload := d.payloads[stub.ID]
	d.mu.Unlock()
	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return FallbackPayload()
		}
	}
	return payload
}

// instantDetails resolves immediately with the same payload for every market.
type instantDetails struct {
	payload model.DetailPayload
}

func (d *instantDetails) FetchDetails(context.Context, model.MarketStub, model.Region) model.DetailPayload {
	return d.payload
}

// memorySink collects persisted runs.
type memorySink struct {
	mu   sync.Mutex
	runs []model.Run
}

func (s *memorySink) SaveRun(_ context.Context, run model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *memorySink) saved() []model.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Run(nil), s.runs...)
}

// cannedLLM implements anthropic.Client with a fixed text response.
type cannedLLM struct {
	text string
	err  error
	last anthropic.MessageRequest
}

func (c *cannedLLM) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	c.last = req
	if c.err != nil {
		return nil, c.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: c.text}},
	}, nil
}
