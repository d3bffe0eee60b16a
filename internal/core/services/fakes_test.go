package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
)

func newTestLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func samplePositions() []domain.Position {
	return []domain.Position{
		{ID: 1, Name: "President", Candidates: []domain.Candidate{{ID: 10, Name: "Ana"}, {ID: 11, Name: "Bruno"}}},
		{ID: 2, Name: "Treasurer", Candidates: []domain.Candidate{{ID: 20, Name: "Carla"}}},
	}
}

type fakeSurvey struct {
	mu        sync.Mutex
	positions ports.PositionsResult
	submits   []ports.SubmitResult
	fetched   []domain.Voter
	submitted []domain.Ballot

	// when set, SubmitVote signals started and blocks until release is
	// closed or ctx is done
	started chan struct{}
	release chan struct{}
}

func okPositions(positions []domain.Position) ports.PositionsResult {
	return ports.PositionsResult{Outcome: ports.Outcome{Kind: ports.OutcomeOK, Status: 200}, Positions: positions}
}

func submitOutcome(kind ports.OutcomeKind, status int) ports.SubmitResult {
	return ports.SubmitResult{Outcome: ports.Outcome{Kind: kind, Status: status}}
}

func (f *fakeSurvey) FetchPositions(_ context.Context, voter domain.Voter) ports.PositionsResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, voter)
	res := f.positions
	res.Positions = domain.ClonePositions(res.Positions)
	return res
}

func (f *fakeSurvey) SubmitVote(ctx context.Context, ballot domain.Ballot) ports.SubmitResult {
	f.mu.Lock()
	f.submitted = append(f.submitted, ballot)
	var res ports.SubmitResult
	if len(f.submits) > 0 {
		res = f.submits[0]
		f.submits = f.submits[1:]
	} else {
		res = submitOutcome(ports.OutcomeOK, 200)
	}
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return ports.SubmitResult{Outcome: ports.Outcome{Kind: ports.OutcomeTransient, Reason: domain.ReasonNetwork, Err: ctx.Err()}}
		}
	}
	return res
}

func (f *fakeSurvey) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

func (f *fakeSurvey) lastSubmitted() domain.Ballot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitted[len(f.submitted)-1]
}

type recordingListener struct {
	mu         sync.Mutex
	changes    []domain.StateChange
	selections []domain.PositionID
}

func (l *recordingListener) StateChanged(change domain.StateChange) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, change)
}

func (l *recordingListener) SelectionChanged(positionID domain.PositionID, _ *domain.Choice) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.selections = append(l.selections, positionID)
}

func (l *recordingListener) states() []domain.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.State, len(l.changes))
	for i, c := range l.changes {
		out[i] = c.To
	}
	return out
}

func (l *recordingListener) last() domain.StateChange {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.changes[len(l.changes)-1]
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
