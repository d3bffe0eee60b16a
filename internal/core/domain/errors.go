package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidPosition    = errors.New("position is not part of this ballot")
	ErrInvalidCandidate   = errors.New("candidate does not belong to this position")
	ErrInvalidChoice      = errors.New("invalid ballot choice")
	ErrIncompleteBallot   = errors.New("ballot is incomplete")
	ErrNoPositions        = errors.New("there are no positions to vote on")
	ErrSessionExpired     = errors.New("session expired")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyVoted       = errors.New("participant has already voted")
	ErrNotFound           = errors.New("participant or survey not found")
	ErrBallotRejected     = errors.New("ballot rejected by server")
	ErrTransient          = errors.New("request failed")
	ErrTimeout            = errors.New("request timed out")
	ErrInvalidTransition  = errors.New("operation not allowed in current state")
	ErrSubmissionInFlight = errors.New("a submission is already in flight")
)

// IncompleteBallotError names every position that still has no selection.
type IncompleteBallotError struct {
	Missing []PositionID
}

func (e *IncompleteBallotError) Error() string {
	ids := make([]string, len(e.Missing))
	for i, id := range e.Missing {
		ids[i] = id.String()
	}
	return fmt.Sprintf("%s: missing positions [%s]", ErrIncompleteBallot, strings.Join(ids, ", "))
}

func (e *IncompleteBallotError) Is(target error) bool {
	return target == ErrIncompleteBallot
}
