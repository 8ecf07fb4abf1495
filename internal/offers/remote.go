package offers

import (
	"context"
	"errors"

	"github.com/ofertas-ai/offers-cli/internal/resilience"
	"github.com/ofertas-ai/offers-cli/pkg/offersapi"
)

// RemoteBackend satisfies Backend by posting to a running serve instance.
// Transport-level failures and retryable HTTP statuses are retried here;
// the callers still apply their own failure policy on top.
type RemoteBackend struct {
	api   offersapi.Client
	retry resilience.RetryConfig
}

// NewRemoteBackend wraps an offers service client.
func NewRemoteBackend(api offersapi.Client) *RemoteBackend {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("offersapi", "search")
	return &RemoteBackend{api: api, retry: retry}
}

func (b *RemoteBackend) Request(ctx context.Context, action Action, q Query) (string, error) {
	return resilience.DoVal(ctx, b.retry, func(ctx context.Context) (string, error) {
		body, err := b.api.Search(ctx, offersapi.SearchRequest{
			Action:     string(action),
			State:      q.State,
			City:       q.City,
			MarketName: q.MarketName,
		})
		if err != nil {
			var apiErr *offersapi.APIError
			if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
				return "", resilience.NewTransientError(err, apiErr.StatusCode)
			}
			return "", err
		}
		return body, nil
	})
}
