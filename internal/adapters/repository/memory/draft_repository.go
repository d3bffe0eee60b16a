package memory

import (
	"context"
	"sync"

	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
)

type draftRepository struct {
	mu     sync.Mutex
	drafts map[string]domain.Draft
}

func NewDraftRepository() ports.DraftRepository {
	return &draftRepository{
		drafts: map[string]domain.Draft{},
	}
}

func (r *draftRepository) Save(_ context.Context, draft *domain.Draft) error {
	d := *draft
	d.Entries = append([]domain.BallotEntry(nil), draft.Entries...)
	r.mu.Lock()
	r.drafts[d.VoterKey] = d
	r.mu.Unlock()
	return nil
}

func (r *draftRepository) Load(_ context.Context, voterKey string) (*domain.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[voterKey]
	if !ok {
		return nil, nil
	}
	d.Entries = append([]domain.BallotEntry(nil), d.Entries...)
	return &d, nil
}

func (r *draftRepository) Delete(_ context.Context, voterKey string) error {
	r.mu.Lock()
	delete(r.drafts, voterKey)
	r.mu.Unlock()
	return nil
}
