package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
)

type errorResponse struct {
	Error   string                `json:"error"`
	Missing []domain.PositionID   `json:"missing,omitempty"`
	Ballot  *ports.BallotSnapshot `json:"ballot,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func writeBadRequest(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
}

func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	var incomplete *domain.IncompleteBallotError
	if errors.As(err, &incomplete) {
		resp.Missing = incomplete.Missing
	}
	writeJSON(w, errorStatus(err), resp)
}

// writeStateError is writeError plus the ballot snapshot, whose context
// carries the message to display for the state the failure led to.
func writeStateError(w http.ResponseWriter, err error, snap ports.BallotSnapshot) {
	writeJSON(w, errorStatus(err), errorResponse{Error: err.Error(), Missing: snap.Context.Missing, Ballot: &snap})
}

// errorStatus maps core errors onto status codes for the presentation layer.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrIncompleteBallot),
		errors.Is(err, domain.ErrInvalidPosition),
		errors.Is(err, domain.ErrInvalidCandidate),
		errors.Is(err, domain.ErrInvalidChoice):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrSubmissionInFlight),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrAlreadyVoted):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotAuthenticated),
		errors.Is(err, domain.ErrSessionExpired),
		errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrTransient),
		errors.Is(err, domain.ErrBallotRejected),
		errors.Is(err, domain.ErrNoPositions):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
