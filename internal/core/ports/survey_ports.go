package ports

import (
	"context"

	"github.com/vncsmyrnk/ballot/internal/core/domain"
)

type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeAuthExpired
	OutcomeConflict
	OutcomeNotFound
	OutcomeValidationFailed
	OutcomeTransient
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeAuthExpired:
		return "auth_expired"
	case OutcomeConflict:
		return "conflict"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeValidationFailed:
		return "validation_failed"
	}
	return "transient"
}

// Outcome is the decoded result of one call to an external service. It is
// built once at the network boundary.
type Outcome struct {
	Kind    OutcomeKind
	Status  int
	Message string
	Reason  domain.FailureReason
	Err     error
}

func (o Outcome) OK() bool {
	return o.Kind == OutcomeOK
}

type PositionsResult struct {
	Outcome
	Positions   []domain.Position
	Participant *domain.Identity
}

type SubmitResult struct {
	Outcome
}

type SurveyClient interface {
	FetchPositions(ctx context.Context, voter domain.Voter) PositionsResult
	SubmitVote(ctx context.Context, ballot domain.Ballot) SubmitResult
}
