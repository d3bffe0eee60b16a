package ports

import (
	"context"

	"github.com/vncsmyrnk/ballot/internal/core/domain"
)

type ResultsClient interface {
	Summary(ctx context.Context) (*domain.ResultsSummary, error)
}

type ResultsService interface {
	Summary(ctx context.Context) (*domain.ResultsSummary, error)
}
