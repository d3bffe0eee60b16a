package ports

import (
	"context"

	"github.com/vncsmyrnk/ballot/internal/core/domain"
)

// StateListener is how the presentation layer follows the voting flow.
// Choice is nil when a selection was cleared.
type StateListener interface {
	StateChanged(change domain.StateChange)
	SelectionChanged(positionID domain.PositionID, choice *domain.Choice)
}

type DraftRepository interface {
	Save(ctx context.Context, draft *domain.Draft) error
	Load(ctx context.Context, voterKey string) (*domain.Draft, error) // nil, nil when nothing is stored
	Delete(ctx context.Context, voterKey string) error
}

// BallotResetter drops any ballot state tied to the current voter.
type BallotResetter interface {
	Reset()
}

type BallotSnapshot struct {
	State      domain.State         `json:"state"`
	Context    domain.StateContext  `json:"context"`
	Positions  []domain.Position    `json:"positions"`
	Selections []domain.BallotEntry `json:"selections"`
	Complete   bool                 `json:"complete"`
	Missing    []domain.PositionID  `json:"missing,omitempty"`
}

type VotingController interface {
	State() domain.State
	Snapshot() BallotSnapshot
	LoadBallot(ctx context.Context) error
	Select(positionID domain.PositionID, choice domain.Choice) error
	Clear(positionID domain.PositionID) error
	ClearAll() error
	RequestSubmit() (*domain.Summary, error)
	Cancel() error
	Confirm(ctx context.Context) error
	RetrySubmit() (*domain.Summary, error)
	Subscribe(listener StateListener) (unsubscribe func())
	BallotResetter
}
