package domain

import "strconv"

type PositionID int64

func (id PositionID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func ParsePositionID(s string) (PositionID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidPosition
	}
	return PositionID(v), nil
}

type CandidateID int64

type Candidate struct {
	ID          CandidateID `json:"id"`
	Name        string      `json:"name"`
	Party       string      `json:"party,omitempty"`
	Description string      `json:"description,omitempty"`
	PhotoURL    string      `json:"photo_url,omitempty"`
}

// Position is a contest on the ballot. Candidates keep the order the survey
// service returned them in.
type Position struct {
	ID          PositionID  `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Candidates  []Candidate `json:"candidates"`
}

func (p Position) Candidate(id CandidateID) (Candidate, bool) {
	for _, c := range p.Candidates {
		if c.ID == id {
			return c, true
		}
	}
	return Candidate{}, false
}

func (p Position) clone() Position {
	out := p
	out.Candidates = append([]Candidate(nil), p.Candidates...)
	return out
}

// ClonePositions returns a deep copy so callers cannot mutate a fetched set.
func ClonePositions(positions []Position) []Position {
	out := make([]Position, len(positions))
	for i, p := range positions {
		out[i] = p.clone()
	}
	return out
}
