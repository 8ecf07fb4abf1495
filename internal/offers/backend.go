// Package offers implements the two-phase supermarket offer search: discover
// candidate markets for a region, then enrich each one concurrently with
// current priced offers, publishing incremental per-market state.
package offers

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ofertas-ai/offers-cli/pkg/anthropic"
)

// Action discriminates the two backend operations.
type Action string

const (
	ActionFind    Action = "find"
	ActionDetails Action = "details"
)

// Query carries the parameters of one backend request.
type Query struct {
	State      string `json:"state"`
	City       string `json:"city"`
	MarketName string `json:"marketName,omitempty"`
}

// Backend is the callable the discovery and detail clients sit on. The
// response body is free-form text that usually wraps a JSON object.
type Backend interface {
	Request(ctx context.Context, action Action, q Query) (string, error)
}

// LLMBackend answers find/details requests by prompting the Claude API
// directly, in-process.
type LLMBackend struct {
	client anthropic.Client
	model  string
	now    func() time.Time
}

// NewLLMBackend creates an in-process backend on top of the Claude client.
func NewLLMBackend(client anthropic.Client, model string) *LLMBackend {
	return &LLMBackend{
		client: client,
		model:  model,
		now:    time.Now,
	}
}

func (b *LLMBackend) Request(ctx context.Context, action Action, q Query) (string, error) {
	var prompt string
	switch action {
	case ActionFind:
		prompt = findPrompt(q)
	case ActionDetails:
		prompt = detailsPrompt(q, b.now())
	default:
		return "", eris.Errorf("offers: unknown action %q", action)
	}

	start := time.Now()
	resp, err := b.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     b.model,
		MaxTokens: 2048,
		System:    systemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", eris.Wrapf(err, "offers: %s request", action)
	}

	zap.L().Debug("backend request complete",
		zap.String("action", string(action)),
		zap.String("city", q.City),
		zap.Duration("duration", time.Since(start)),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
	)
	return resp.Text(), nil
}
