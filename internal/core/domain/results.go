package domain

type CandidateResult struct {
	ID         CandidateID `json:"id"`
	Name       string      `json:"name"`
	VoteCount  int64       `json:"vote_count"`
	Percentage float64     `json:"percentage"`
}

type PositionResult struct {
	PositionID  PositionID                `json:"position_id"`
	Name        string                    `json:"position_name"`
	Description string                    `json:"position_description,omitempty"`
	TotalVotes  int64                     `json:"total_votes"`
	Candidates  []CandidateResult         `json:"candidates"`
	ByType      map[SpecialResponse]int64 `json:"votes_by_type,omitempty"`
}

// Leader returns the candidate with the most votes. Ties resolve to the
// earliest candidate in server order.
func (r PositionResult) Leader() (CandidateResult, bool) {
	var best CandidateResult
	found := false
	for _, c := range r.Candidates {
		if !found || c.VoteCount > best.VoteCount {
			best = c
			found = true
		}
	}
	return best, found && best.VoteCount > 0
}

type ResultsSummary struct {
	TotalVotesCast    int64            `json:"total_votes_cast"`
	TotalParticipants int64            `json:"total_participants,omitempty"`
	Positions         []PositionResult `json:"results"`
}
