package domain

import "time"

type State string

const (
	StateIdle           State = "idle"
	StateLoading        State = "loading"
	StateReady          State = "ready"
	StateConfirming     State = "confirming"
	StateSubmitting     State = "submitting"
	StateVoted          State = "voted"
	StateAlreadyVoted   State = "already_voted"
	StateSessionExpired State = "session_expired"
	StateFailed         State = "failed"
)

// Terminal states accept no further input for the session.
func (s State) Terminal() bool {
	return s == StateVoted || s == StateAlreadyVoted
}

type Phase string

const (
	PhaseLoad   Phase = "load"
	PhaseSubmit Phase = "submit"
)

type FailureReason string

const (
	ReasonNetwork     FailureReason = "network"
	ReasonTimeout     FailureReason = "timeout"
	ReasonServer      FailureReason = "server"
	ReasonMalformed   FailureReason = "malformed_response"
	ReasonNotFound    FailureReason = "not_found"
	ReasonRejected    FailureReason = "rejected"
	ReasonNoPositions FailureReason = "no_positions"
)

// StateContext travels with every state change notification.
type StateContext struct {
	Phase            Phase         `json:"phase,omitempty"`
	Message          string        `json:"message,omitempty"`
	Reason           FailureReason `json:"reason,omitempty"`
	Missing          []PositionID  `json:"missing,omitempty"`
	Summary          *Summary      `json:"summary,omitempty"`
	ProbablyRecorded bool          `json:"probably_recorded,omitempty"`
}

type StateChange struct {
	From    State        `json:"from"`
	To      State        `json:"to"`
	Context StateContext `json:"context"`
	At      time.Time    `json:"at"`
}
