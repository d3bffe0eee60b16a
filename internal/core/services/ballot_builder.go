package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vncsmyrnk/ballot/internal/core/domain"
)

// BallotBuilder tracks one selection per position for a fixed set of
// positions. It is not safe for concurrent use; the controller serializes
// access.
type BallotBuilder struct {
	positions  []domain.Position
	index      map[domain.PositionID]int
	selections map[domain.PositionID]domain.Choice
	now        func() time.Time
	newID      func() uuid.UUID
}

func NewBallotBuilder() *BallotBuilder {
	return &BallotBuilder{
		index:      map[domain.PositionID]int{},
		selections: map[domain.PositionID]domain.Choice{},
		now:        time.Now,
		newID:      uuid.New,
	}
}

// Initialize replaces any prior state. Nothing is selected afterwards.
func (b *BallotBuilder) Initialize(positions []domain.Position) {
	b.positions = domain.ClonePositions(positions)
	b.index = make(map[domain.PositionID]int, len(positions))
	for i, p := range b.positions {
		b.index[p.ID] = i
	}
	b.selections = make(map[domain.PositionID]domain.Choice, len(positions))
}

func (b *BallotBuilder) Positions() []domain.Position {
	return domain.ClonePositions(b.positions)
}

func (b *BallotBuilder) position(id domain.PositionID) (domain.Position, error) {
	i, ok := b.index[id]
	if !ok {
		return domain.Position{}, fmt.Errorf("%w: %d", domain.ErrInvalidPosition, id)
	}
	return b.positions[i], nil
}

// Select sets the choice for a position, replacing any earlier one.
func (b *BallotBuilder) Select(id domain.PositionID, choice domain.Choice) error {
	p, err := b.position(id)
	if err != nil {
		return err
	}
	if err := choice.Validate(p); err != nil {
		return err
	}
	b.selections[id] = choice
	return nil
}

func (b *BallotBuilder) Clear(id domain.PositionID) error {
	if _, err := b.position(id); err != nil {
		return err
	}
	delete(b.selections, id)
	return nil
}

func (b *BallotBuilder) ClearAll() {
	b.selections = make(map[domain.PositionID]domain.Choice, len(b.positions))
}

func (b *BallotBuilder) Selection(id domain.PositionID) (domain.Choice, bool) {
	c, ok := b.selections[id]
	return c, ok
}

// Entries lists current selections in position order.
func (b *BallotBuilder) Entries() []domain.BallotEntry {
	entries := make([]domain.BallotEntry, 0, len(b.selections))
	for _, p := range b.positions {
		if c, ok := b.selections[p.ID]; ok {
			entries = append(entries, domain.BallotEntry{PositionID: p.ID, Choice: c})
		}
	}
	return entries
}

func (b *BallotBuilder) Missing() []domain.PositionID {
	var missing []domain.PositionID
	for _, p := range b.positions {
		if _, ok := b.selections[p.ID]; !ok {
			missing = append(missing, p.ID)
		}
	}
	return missing
}

func (b *BallotBuilder) IsComplete() bool {
	return len(b.selections) == len(b.positions)
}

// Finalize snapshots the selections into a Ballot. In-progress state is left
// untouched.
func (b *BallotBuilder) Finalize(voter domain.Voter) (domain.Ballot, error) {
	if missing := b.Missing(); len(missing) > 0 {
		return domain.Ballot{}, &domain.IncompleteBallotError{Missing: missing}
	}
	return domain.NewBallot(b.newID(), voter, b.now(), b.Entries()), nil
}

// Summarize labels every entry of a ballot built from this builder's
// positions.
func (b *BallotBuilder) Summarize(ballot domain.Ballot) domain.Summary {
	summary := domain.Summary{BallotID: ballot.ID}
	for _, e := range ballot.Entries() {
		line := domain.SummaryLine{PositionID: e.PositionID, Choice: e.Choice}
		if p, err := b.position(e.PositionID); err == nil {
			line.PositionName = p.Name
			line.Label = choiceLabel(p, e.Choice)
		}
		summary.Lines = append(summary.Lines, line)
	}
	return summary
}

func choiceLabel(p domain.Position, c domain.Choice) string {
	if c.Kind == domain.ChoiceSpecial {
		return c.Special.Label()
	}
	if cand, ok := p.Candidate(c.CandidateID); ok {
		return cand.Name
	}
	return "Unknown"
}
