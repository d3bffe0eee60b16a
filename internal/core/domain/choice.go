package domain

import "fmt"

// SpecialResponse is a non-candidate answer to a position.
type SpecialResponse string

const (
	NoOpinion  SpecialResponse = "no_opinion"
	NoneOfThem SpecialResponse = "none"
	Abstain    SpecialResponse = "abstain"
	Blank      SpecialResponse = "blank"
)

var SpecialResponses = []SpecialResponse{NoOpinion, NoneOfThem, Abstain, Blank}

func (s SpecialResponse) Valid() bool {
	switch s {
	case NoOpinion, NoneOfThem, Abstain, Blank:
		return true
	}
	return false
}

func (s SpecialResponse) Label() string {
	switch s {
	case NoOpinion:
		return "No opinion"
	case NoneOfThem:
		return "None"
	case Abstain:
		return "Abstain"
	case Blank:
		return "Blank vote"
	}
	return string(s)
}

func ParseSpecialResponse(s string) (SpecialResponse, error) {
	r := SpecialResponse(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown special response %q", ErrInvalidChoice, s)
	}
	return r, nil
}

type ChoiceKind string

const (
	ChoiceCandidate ChoiceKind = "candidate"
	ChoiceSpecial   ChoiceKind = "special"
)

// Choice is the single value chosen for a position: a candidate or a special
// response, never both.
type Choice struct {
	Kind        ChoiceKind      `json:"kind"`
	CandidateID CandidateID     `json:"candidate_id,omitempty"`
	Special     SpecialResponse `json:"special,omitempty"`
}

func CandidateChoice(id CandidateID) Choice {
	return Choice{Kind: ChoiceCandidate, CandidateID: id}
}

func SpecialChoice(s SpecialResponse) Choice {
	return Choice{Kind: ChoiceSpecial, Special: s}
}

// Validate checks the choice is well formed for the given position.
func (c Choice) Validate(p Position) error {
	switch c.Kind {
	case ChoiceCandidate:
		if c.Special != "" {
			return fmt.Errorf("%w: candidate choice carries a special response", ErrInvalidChoice)
		}
		if _, ok := p.Candidate(c.CandidateID); !ok {
			return fmt.Errorf("%w: candidate %d, position %d", ErrInvalidCandidate, c.CandidateID, p.ID)
		}
		return nil
	case ChoiceSpecial:
		if c.CandidateID != 0 {
			return fmt.Errorf("%w: special choice carries a candidate", ErrInvalidChoice)
		}
		if !c.Special.Valid() {
			return fmt.Errorf("%w: unknown special response %q", ErrInvalidChoice, c.Special)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown kind %q", ErrInvalidChoice, c.Kind)
}

func (c Choice) String() string {
	if c.Kind == ChoiceCandidate {
		return fmt.Sprintf("candidate:%d", c.CandidateID)
	}
	return string(c.Kind) + ":" + string(c.Special)
}
