package domain

import (
	"time"

	"github.com/google/uuid"
)

// Voter identifies who a ballot is cast for. A voter with both Email and
// LinkToken uses the one-time link flow; otherwise the session bearer
// credential is used and Email is informational.
type Voter struct {
	Email     string `json:"email,omitempty"`
	LinkToken string `json:"-"`
}

func LinkVoter(email, token string) Voter {
	return Voter{Email: email, LinkToken: token}
}

func (v Voter) IsLink() bool {
	return v.Email != "" && v.LinkToken != ""
}

type BallotEntry struct {
	PositionID PositionID `json:"position_id"`
	Choice     Choice     `json:"choice"`
}

// Ballot is a finalized snapshot with exactly one entry per position.
// Entries are only reachable through copies.
type Ballot struct {
	ID        uuid.UUID
	Voter     Voter
	CreatedAt time.Time
	entries   []BallotEntry
}

func NewBallot(id uuid.UUID, voter Voter, createdAt time.Time, entries []BallotEntry) Ballot {
	return Ballot{
		ID:        id,
		Voter:     voter,
		CreatedAt: createdAt,
		entries:   append([]BallotEntry(nil), entries...),
	}
}

func (b Ballot) Entries() []BallotEntry {
	return append([]BallotEntry(nil), b.entries...)
}

func (b Ballot) Len() int {
	return len(b.entries)
}

func (b Ballot) Choice(id PositionID) (Choice, bool) {
	for _, e := range b.entries {
		if e.PositionID == id {
			return e.Choice, true
		}
	}
	return Choice{}, false
}

func (b Ballot) PositionIDs() []PositionID {
	ids := make([]PositionID, len(b.entries))
	for i, e := range b.entries {
		ids[i] = e.PositionID
	}
	return ids
}

type SummaryLine struct {
	PositionID   PositionID `json:"position_id"`
	PositionName string     `json:"position_name"`
	Choice       Choice     `json:"choice"`
	Label        string     `json:"label"`
}

// Summary is what the voter is asked to confirm before submission.
type Summary struct {
	BallotID uuid.UUID     `json:"ballot_id"`
	Lines    []SummaryLine `json:"lines"`
}

// Draft is an in-progress selection saved so it survives a failed submit or
// a re-authentication.
type Draft struct {
	VoterKey  string
	Entries   []BallotEntry
	UpdatedAt time.Time
}
