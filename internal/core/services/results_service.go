package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
)

type resultsService struct {
	client ports.ResultsClient
}

func NewResultsService(client ports.ResultsClient) ports.ResultsService {
	return &resultsService{
		client: client,
	}
}

// Summary fetches the tallies and orders each position's candidates by vote
// count, highest first. Percentages are recomputed when the server omits them.
func (s *resultsService) Summary(ctx context.Context) (*domain.ResultsSummary, error) {
	summary, err := s.client.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch results: %w", err)
	}

	for i := range summary.Positions {
		pos := &summary.Positions[i]

		var counted int64
		for _, c := range pos.Candidates {
			counted += c.VoteCount
		}
		for _, n := range pos.ByType {
			counted += n
		}
		if pos.TotalVotes == 0 {
			pos.TotalVotes = counted
		}

		for j := range pos.Candidates {
			c := &pos.Candidates[j]
			if c.Percentage == 0 && c.VoteCount > 0 && pos.TotalVotes > 0 {
				c.Percentage = roundPercent(float64(c.VoteCount) / float64(pos.TotalVotes) * 100)
			}
		}

		sort.SliceStable(pos.Candidates, func(a, b int) bool {
			return pos.Candidates[a].VoteCount > pos.Candidates[b].VoteCount
		})
	}

	return summary, nil
}

func roundPercent(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
