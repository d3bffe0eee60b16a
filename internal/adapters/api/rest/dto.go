package rest

import (
	"encoding/json"
	"strings"

	"github.com/vncsmyrnk/ballot/internal/core/domain"
)

// Wire vocabulary of the voting server for special responses.
var specialWire = map[domain.SpecialResponse]string{
	domain.NoOpinion:  "no_se",
	domain.NoneOfThem: "ninguno",
	domain.Abstain:    "abstencion",
	domain.Blank:      "blanco",
}

func specialFromWire(s string) (domain.SpecialResponse, bool) {
	for k, v := range specialWire {
		if v == s {
			return k, true
		}
	}
	return "", false
}

type candidateDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Party       string `json:"party"`
	Description string `json:"description"`
	PhotoURL    string `json:"photo_url"`
}

type positionDTO struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Candidates  []candidateDTO `json:"candidates"`
}

func (p positionDTO) toDomain() domain.Position {
	pos := domain.Position{
		ID:          domain.PositionID(p.ID),
		Name:        p.Name,
		Description: p.Description,
		Candidates:  make([]domain.Candidate, 0, len(p.Candidates)),
	}
	for _, c := range p.Candidates {
		pos.Candidates = append(pos.Candidates, domain.Candidate{
			ID:          domain.CandidateID(c.ID),
			Name:        c.Name,
			Party:       c.Party,
			Description: c.Description,
			PhotoURL:    c.PhotoURL,
		})
	}
	return pos
}

func positionsToDomain(in []positionDTO) []domain.Position {
	out := make([]domain.Position, 0, len(in))
	for _, p := range in {
		out = append(out, p.toDomain())
	}
	return out
}

type userDTO struct {
	ID        json.RawMessage `json:"id"`
	Email     string          `json:"email"`
	Name      string          `json:"name"`
	FullName  string          `json:"full_name"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
}

func (u *userDTO) toDomain(role domain.Role) *domain.Identity {
	if u == nil {
		return nil
	}
	name := u.Name
	if name == "" {
		name = u.FullName
	}
	if name == "" {
		name = strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	id := strings.Trim(string(u.ID), `"`)
	if id == "null" {
		id = ""
	}
	return &domain.Identity{
		ID:    id,
		Email: u.Email,
		Name:  name,
		Role:  role,
	}
}

type publicPositionsResponse struct {
	Participant *userDTO      `json:"participant"`
	Positions   []positionDTO `json:"positions"`
}

type surveyDTO struct {
	ID        json.RawMessage `json:"id"`
	Title     string          `json:"title"`
	Positions []positionDTO   `json:"positions"`
}

type activeSurveysResponse struct {
	Participant *userDTO    `json:"participant"`
	Surveys     []surveyDTO `json:"surveys"`
}

type voteDTO struct {
	Type        string `json:"type"`
	CandidateID *int64 `json:"candidate_id,omitempty"`
}

type submitRequest struct {
	Email string             `json:"email,omitempty"`
	Token string             `json:"token,omitempty"`
	Votes map[string]voteDTO `json:"votes"`
}

type submitResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

func ballotToWire(b domain.Ballot) map[string]voteDTO {
	votes := make(map[string]voteDTO, b.Len())
	for _, e := range b.Entries() {
		var v voteDTO
		if e.Choice.Kind == domain.ChoiceCandidate {
			id := int64(e.Choice.CandidateID)
			v = voteDTO{Type: "candidate", CandidateID: &id}
		} else {
			v = voteDTO{Type: specialWire[e.Choice.Special]}
		}
		votes[e.PositionID.String()] = v
	}
	return votes
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string   `json:"access_token"`
	User        *userDTO `json:"user"`
}

type verifyResponse struct {
	User *userDTO `json:"user"`
}

type candidateResultDTO struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	VoteCount  int64   `json:"vote_count"`
	Percentage float64 `json:"percentage"`
}

type positionResultDTO struct {
	PositionID          int64                `json:"position_id"`
	PositionName        string               `json:"position_name"`
	PositionDescription string               `json:"position_description"`
	TotalVotes          int64                `json:"total_votes"`
	Candidates          []candidateResultDTO `json:"candidates"`
	VotesByType         map[string]int64     `json:"votes_by_type"`
}

type resultsResponse struct {
	Summary struct {
		TotalVotesCast    int64 `json:"total_votes_cast"`
		TotalParticipants int64 `json:"total_participants"`
	} `json:"summary"`
	Results []positionResultDTO `json:"results"`
}

func (r resultsResponse) toDomain() *domain.ResultsSummary {
	out := &domain.ResultsSummary{
		TotalVotesCast:    r.Summary.TotalVotesCast,
		TotalParticipants: r.Summary.TotalParticipants,
		Positions:         make([]domain.PositionResult, 0, len(r.Results)),
	}
	for _, p := range r.Results {
		pr := domain.PositionResult{
			PositionID:  domain.PositionID(p.PositionID),
			Name:        p.PositionName,
			Description: p.PositionDescription,
			TotalVotes:  p.TotalVotes,
		}
		for _, c := range p.Candidates {
			pr.Candidates = append(pr.Candidates, domain.CandidateResult{
				ID:         domain.CandidateID(c.ID),
				Name:       c.Name,
				VoteCount:  c.VoteCount,
				Percentage: c.Percentage,
			})
		}
		for k, n := range p.VotesByType {
			if s, ok := specialFromWire(k); ok {
				if pr.ByType == nil {
					pr.ByType = map[domain.SpecialResponse]int64{}
				}
				pr.ByType[s] = n
			}
		}
		out.Positions = append(out.Positions, pr)
	}
	return out
}
