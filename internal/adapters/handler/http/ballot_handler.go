package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
)

type BallotHandler struct {
	controller ports.VotingController
}

func NewBallotHandler(controller ports.VotingController) *BallotHandler {
	return &BallotHandler{
		controller: controller,
	}
}

type selectionRequest struct {
	CandidateID *int64 `json:"candidate_id"`
	Special     string `json:"special"`
}

func (r selectionRequest) choice() (domain.Choice, error) {
	switch {
	case r.CandidateID != nil && r.Special != "":
		return domain.Choice{}, domain.ErrInvalidChoice
	case r.CandidateID != nil:
		return domain.CandidateChoice(domain.CandidateID(*r.CandidateID)), nil
	case r.Special != "":
		s, err := domain.ParseSpecialResponse(r.Special)
		if err != nil {
			return domain.Choice{}, err
		}
		return domain.SpecialChoice(s), nil
	}
	return domain.Choice{}, domain.ErrInvalidChoice
}

func (h *BallotHandler) GetBallot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.Snapshot())
}

// LoadBallot answers with the snapshot. When loading failed the snapshot is
// embedded in the error body, since it carries the state and message to
// display.
func (h *BallotHandler) LoadBallot(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.LoadBallot(r.Context()); err != nil {
		writeStateError(w, err, h.controller.Snapshot())
		return
	}
	writeJSON(w, http.StatusOK, h.controller.Snapshot())
}

func (h *BallotHandler) Select(w http.ResponseWriter, r *http.Request) {
	positionID, err := domain.ParsePositionID(chi.URLParam(r, "positionID"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w)
		return
	}
	choice, err := req.choice()
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.controller.Select(positionID, choice); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BallotHandler) Clear(w http.ResponseWriter, r *http.Request) {
	positionID, err := domain.ParsePositionID(chi.URLParam(r, "positionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.controller.Clear(positionID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BallotHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.ClearAll(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BallotHandler) RequestSubmit(w http.ResponseWriter, r *http.Request) {
	summary, err := h.controller.RequestSubmit()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Confirm answers with the snapshot on failure too, so an already-voted
// outcome still carries whether this voter's own earlier attempt recorded it.
func (h *BallotHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Confirm(r.Context()); err != nil {
		writeStateError(w, err, h.controller.Snapshot())
		return
	}
	writeJSON(w, http.StatusOK, h.controller.Snapshot())
}

func (h *BallotHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Cancel(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BallotHandler) Retry(w http.ResponseWriter, r *http.Request) {
	summary, err := h.controller.RetrySubmit()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
