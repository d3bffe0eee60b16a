package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
)

const resultsSummaryPath = "/api/results/summary"

type ResultsClient struct {
	client *Client
}

func NewResultsClient(client *Client) *ResultsClient {
	return &ResultsClient{client: client}
}

func (r *ResultsClient) Summary(ctx context.Context) (*domain.ResultsSummary, error) {
	body, outcome := r.client.do(ctx, request{
		method: http.MethodGet,
		path:   resultsSummaryPath,
	})
	if !outcome.OK() {
		return nil, outcomeToError(outcome)
	}

	var resp resultsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed results: %w", domain.ErrTransient, err)
	}
	return resp.toDomain(), nil
}

func outcomeToError(o ports.Outcome) error {
	switch o.Kind {
	case ports.OutcomeAuthExpired:
		return domain.ErrSessionExpired
	case ports.OutcomeConflict:
		return fmt.Errorf("%w: forbidden", domain.ErrTransient)
	case ports.OutcomeNotFound:
		return domain.ErrNotFound
	}
	if o.Reason == domain.ReasonTimeout {
		return domain.ErrTimeout
	}
	if o.Err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransient, o.Err)
	}
	return fmt.Errorf("%w: status %d %s", domain.ErrTransient, o.Status, o.Message)
}
