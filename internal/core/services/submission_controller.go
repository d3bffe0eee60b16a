package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
)

const defaultSubmitTimeout = 20 * time.Second

// SubmissionController drives fetch -> select -> confirm -> submit for one
// voter. All state lives behind mu; network calls are made with mu released
// and the Loading/Submitting states act as the single-flight gate.
type SubmissionController struct {
	mu         sync.Mutex
	state      domain.State
	context    domain.StateContext
	builder    *BallotBuilder
	voter      domain.Voter
	pending    *domain.Ballot
	attempts   int
	unresolved bool

	// loadedFor is the voter key the builder was initialized for; generation
	// moves on every Reset so results of calls started earlier are dropped.
	loadedFor  string
	generation uint64

	survey  ports.SurveyClient
	session ports.SessionStore
	drafts  ports.DraftRepository

	listenersMu  sync.RWMutex
	listeners    map[int]ports.StateListener
	nextListener int

	submitTimeout time.Duration
	now           func() time.Time
	logger        logrus.FieldLogger
}

type ControllerOption func(*SubmissionController)

// WithVoter switches the controller to the one-time link flow.
func WithVoter(voter domain.Voter) ControllerOption {
	return func(c *SubmissionController) {
		c.voter = voter
	}
}

func WithDrafts(repo ports.DraftRepository) ControllerOption {
	return func(c *SubmissionController) {
		c.drafts = repo
	}
}

func WithSubmitTimeout(d time.Duration) ControllerOption {
	return func(c *SubmissionController) {
		if d > 0 {
			c.submitTimeout = d
		}
	}
}

func WithControllerClock(now func() time.Time) ControllerOption {
	return func(c *SubmissionController) {
		c.now = now
	}
}

func NewSubmissionController(survey ports.SurveyClient, session ports.SessionStore, logger logrus.FieldLogger, opts ...ControllerOption) *SubmissionController {
	c := &SubmissionController{
		state:         domain.StateIdle,
		builder:       NewBallotBuilder(),
		survey:        survey,
		session:       session,
		listeners:     map[int]ports.StateListener{},
		submitTimeout: defaultSubmitTimeout,
		now:           time.Now,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.builder.now = c.now
	return c
}

func (c *SubmissionController) State() domain.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *SubmissionController) Snapshot() ports.BallotSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	positions := c.builder.Positions()
	return ports.BallotSnapshot{
		State:      c.state,
		Context:    c.context,
		Positions:  positions,
		Selections: c.builder.Entries(),
		Complete:   len(positions) > 0 && c.builder.IsComplete(),
		Missing:    c.builder.Missing(),
	}
}

func (c *SubmissionController) Subscribe(listener ports.StateListener) func() {
	c.listenersMu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = listener
	c.listenersMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		delete(c.listeners, id)
		c.listenersMu.Unlock()
	}
}

func (c *SubmissionController) LoadBallot(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case domain.StateIdle, domain.StateReady, domain.StateSessionExpired, domain.StateFailed:
	default:
		err := c.invalidLocked("load ballot")
		c.mu.Unlock()
		return err
	}

	voter := c.voter
	if !voter.IsLink() && !c.session.IsAuthenticated() {
		change := c.transitionLocked(domain.StateSessionExpired, domain.StateContext{
			Phase:   domain.PhaseLoad,
			Message: "Please log in to vote.",
		})
		c.mu.Unlock()
		c.notify(change)
		return domain.ErrNotAuthenticated
	}

	key := c.voterKey()
	var carry []domain.BallotEntry
	if key == c.loadedFor {
		carry = c.builder.Entries()
	} else {
		// another voter: nothing from the previous one may carry over
		c.builder.Initialize(nil)
		c.attempts = 0
		c.unresolved = false
	}
	c.pending = nil
	c.loadedFor = key
	gen := c.generation
	change := c.transitionLocked(domain.StateLoading, domain.StateContext{Phase: domain.PhaseLoad})
	c.mu.Unlock()
	c.notify(change)

	res := c.survey.FetchPositions(ctx, voter)

	var draft *domain.Draft
	if res.OK() && len(res.Positions) > 0 {
		draft = c.loadDraft(key)
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return fmt.Errorf("%w: ballot was reset while loading", domain.ErrInvalidTransition)
	}
	sc := domain.StateContext{Phase: domain.PhaseLoad}
	var to domain.State
	var err error

	switch res.Kind {
	case ports.OutcomeOK:
		if len(res.Positions) == 0 {
			to = domain.StateFailed
			sc.Reason = domain.ReasonNoPositions
			sc.Message = "There are no positions available to vote on."
			err = domain.ErrNoPositions
			break
		}
		c.builder.Initialize(res.Positions)
		if draft != nil {
			c.restoreLocked(draft.Entries)
		}
		c.restoreLocked(carry)
		if restored := len(c.builder.Entries()); restored > 0 {
			sc.Message = fmt.Sprintf("Restored %d earlier selection(s).", restored)
		}
		to = domain.StateReady
	case ports.OutcomeAuthExpired:
		c.session.Clear()
		to = domain.StateSessionExpired
		sc.Message = "Your session has expired. Please log in again."
		err = domain.ErrSessionExpired
	case ports.OutcomeConflict:
		to = domain.StateAlreadyVoted
		sc.Message = "You have already voted in this survey."
		err = domain.ErrAlreadyVoted
	case ports.OutcomeNotFound:
		to = domain.StateFailed
		sc.Reason = domain.ReasonNotFound
		sc.Message = "Participant not found. Check your voting link."
		err = domain.ErrNotFound
	default:
		to = domain.StateFailed
		sc.Reason = res.Reason
		sc.Message = failureMessage("Could not load the ballot", res.Outcome)
		err = outcomeError(res.Outcome)
	}

	change = c.transitionLocked(to, sc)
	c.mu.Unlock()
	c.notify(change)

	if to == domain.StateAlreadyVoted {
		c.deleteDraft(key)
	}
	return err
}

func (c *SubmissionController) Select(positionID domain.PositionID, choice domain.Choice) error {
	c.mu.Lock()
	if c.state != domain.StateReady {
		err := c.invalidLocked("select")
		c.mu.Unlock()
		return err
	}
	if err := c.builder.Select(positionID, choice); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	c.notifySelection(positionID, &choice)
	return nil
}

func (c *SubmissionController) Clear(positionID domain.PositionID) error {
	c.mu.Lock()
	if c.state != domain.StateReady {
		err := c.invalidLocked("clear")
		c.mu.Unlock()
		return err
	}
	_, had := c.builder.Selection(positionID)
	if err := c.builder.Clear(positionID); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	if had {
		c.notifySelection(positionID, nil)
	}
	return nil
}

func (c *SubmissionController) ClearAll() error {
	c.mu.Lock()
	if c.state != domain.StateReady {
		err := c.invalidLocked("clear all")
		c.mu.Unlock()
		return err
	}
	cleared := c.builder.Entries()
	c.builder.ClearAll()
	c.mu.Unlock()

	for _, e := range cleared {
		c.notifySelection(e.PositionID, nil)
	}
	return nil
}

// RequestSubmit moves a complete ballot to Confirming and returns the summary
// to show. An incomplete ballot stays in Ready.
func (c *SubmissionController) RequestSubmit() (*domain.Summary, error) {
	c.mu.Lock()
	if c.state != domain.StateReady {
		err := c.invalidLocked("submit")
		c.mu.Unlock()
		return nil, err
	}
	if err := c.sameVoterLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}

	ballot, err := c.builder.Finalize(c.ballotVoter())
	if err != nil {
		var incomplete *domain.IncompleteBallotError
		if !errors.As(err, &incomplete) {
			c.mu.Unlock()
			return nil, err
		}
		c.context = domain.StateContext{
			Missing: incomplete.Missing,
			Message: fmt.Sprintf("Please choose an option for every position (%d missing).", len(incomplete.Missing)),
		}
		change := domain.StateChange{From: c.state, To: c.state, Context: c.context, At: c.now()}
		c.mu.Unlock()
		c.notify(change)
		return nil, err
	}

	summary := c.builder.Summarize(ballot)
	c.pending = &ballot
	c.attempts = 0
	change := c.transitionLocked(domain.StateConfirming, domain.StateContext{Summary: &summary})
	c.mu.Unlock()
	c.notify(change)
	return &summary, nil
}

// Cancel leaves confirmation, or abandons a failed submission, keeping every
// selection.
func (c *SubmissionController) Cancel() error {
	c.mu.Lock()
	switch {
	case c.state == domain.StateConfirming:
	case c.state == domain.StateFailed && c.pending != nil:
	default:
		err := c.invalidLocked("cancel")
		c.mu.Unlock()
		return err
	}
	c.pending = nil
	c.attempts = 0
	change := c.transitionLocked(domain.StateReady, domain.StateContext{})
	c.mu.Unlock()
	c.notify(change)
	return nil
}

// RetrySubmit re-enables confirmation of the ballot whose submission failed.
// The ballot keeps its ID so the server sees the same idempotency key.
func (c *SubmissionController) RetrySubmit() (*domain.Summary, error) {
	c.mu.Lock()
	if c.state != domain.StateFailed || c.context.Phase != domain.PhaseSubmit || c.pending == nil {
		err := c.invalidLocked("retry")
		c.mu.Unlock()
		return nil, err
	}
	summary := c.builder.Summarize(*c.pending)
	change := c.transitionLocked(domain.StateConfirming, domain.StateContext{Summary: &summary})
	c.mu.Unlock()
	c.notify(change)
	return &summary, nil
}

// Confirm submits the pending ballot. Only one submission may be in flight;
// a second call while Submitting returns ErrSubmissionInFlight without any
// request. The caller's cancellation does not abort an in-flight submission;
// the configured submit timeout bounds it instead.
func (c *SubmissionController) Confirm(ctx context.Context) error {
	c.mu.Lock()
	if c.state == domain.StateSubmitting {
		c.mu.Unlock()
		return domain.ErrSubmissionInFlight
	}
	if c.state != domain.StateConfirming || c.pending == nil {
		err := c.invalidLocked("confirm")
		c.mu.Unlock()
		return err
	}
	if err := c.sameVoterLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	ballot := *c.pending
	c.attempts++
	attempt := c.attempts
	key := c.loadedFor
	gen := c.generation
	change := c.transitionLocked(domain.StateSubmitting, domain.StateContext{
		Phase:   domain.PhaseSubmit,
		Summary: c.context.Summary,
	})
	c.mu.Unlock()
	c.notify(change)

	c.logger.WithFields(logrus.Fields{
		"ballot_id": ballot.ID,
		"attempt":   attempt,
		"positions": ballot.Len(),
	}).Info("submitting ballot")

	subCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.submitTimeout)
	res := c.survey.SubmitVote(subCtx, ballot)
	if res.Kind == ports.OutcomeTransient && errors.Is(subCtx.Err(), context.DeadlineExceeded) {
		res.Reason = domain.ReasonTimeout
	}
	cancel()

	c.mu.Lock()
	stale := c.generation != gen
	sc := domain.StateContext{Phase: domain.PhaseSubmit}
	var to domain.State
	var err error
	saveDraft := false
	expired := false
	keepPending := false
	unresolved := c.unresolved

	switch res.Kind {
	case ports.OutcomeOK:
		to = domain.StateVoted
		sc.Message = res.Message
		if sc.Message == "" {
			sc.Message = "Your vote has been recorded."
		}
		unresolved = false
	case ports.OutcomeAuthExpired:
		expired = true
		to = domain.StateSessionExpired
		sc.Message = "Your session expired before the vote was recorded. Please log in again."
		err = domain.ErrSessionExpired
		saveDraft = true
	case ports.OutcomeConflict:
		to = domain.StateAlreadyVoted
		sc.ProbablyRecorded = unresolved
		if sc.ProbablyRecorded {
			sc.Message = "Your vote appears to have been recorded by an earlier attempt."
		} else {
			sc.Message = "A vote has already been recorded for this participant."
		}
		err = domain.ErrAlreadyVoted
	case ports.OutcomeValidationFailed:
		keepPending = true
		to = domain.StateFailed
		sc.Reason = domain.ReasonRejected
		sc.Message = failureMessage("The server rejected the ballot", res.Outcome)
		err = fmt.Errorf("%w: %s", domain.ErrBallotRejected, res.Message)
		saveDraft = true
	case ports.OutcomeNotFound:
		keepPending = true
		to = domain.StateFailed
		sc.Reason = domain.ReasonNotFound
		sc.Message = "Participant not found. Check your voting link."
		err = domain.ErrNotFound
		saveDraft = true
	default:
		// The server may or may not have recorded this ballot.
		keepPending = true
		unresolved = true
		to = domain.StateFailed
		sc.Reason = res.Reason
		sc.Message = failureMessage("Your vote could not be sent", res.Outcome)
		err = outcomeError(res.Outcome)
		saveDraft = true
	}

	if stale {
		// the ballot was reset mid-flight; only the draft of the voter who
		// submitted is still ours to update
		c.mu.Unlock()
		c.logger.WithFields(logrus.Fields{"ballot_id": ballot.ID, "to": to}).Warn("discarding submission result after reset")
	} else {
		if expired {
			c.session.Clear()
		}
		if !keepPending {
			c.pending = nil
		}
		c.unresolved = unresolved
		change = c.transitionLocked(to, sc)
		c.mu.Unlock()
		c.notify(change)
	}

	if saveDraft {
		c.saveDraft(key, ballot.Entries())
	} else {
		c.deleteDraft(key)
	}
	return err
}

// Reset forgets the loaded ballot, its selections and any retry state, and
// returns to Idle. It is called whenever the logged-in identity changes.
// A load or submission still in flight finishes without touching the new
// state.
func (c *SubmissionController) Reset() {
	c.mu.Lock()
	c.generation++
	c.builder.Initialize(nil)
	c.pending = nil
	c.attempts = 0
	c.unresolved = false
	c.loadedFor = ""
	change := c.transitionLocked(domain.StateIdle, domain.StateContext{})
	c.mu.Unlock()
	c.notify(change)
}

// sameVoterLocked refuses to finalize a ballot loaded for someone other than
// the current voter.
func (c *SubmissionController) sameVoterLocked() error {
	if c.voterKey() != c.loadedFor {
		return fmt.Errorf("%w: ballot was loaded for another voter, reload it", domain.ErrInvalidTransition)
	}
	return nil
}

func (c *SubmissionController) transitionLocked(to domain.State, sc domain.StateContext) domain.StateChange {
	change := domain.StateChange{From: c.state, To: to, Context: sc, At: c.now()}
	c.state = to
	c.context = sc

	c.logger.WithFields(logrus.Fields{
		"from":   change.From,
		"to":     to,
		"phase":  sc.Phase,
		"reason": sc.Reason,
	}).Info("ballot state changed")
	return change
}

func (c *SubmissionController) invalidLocked(op string) error {
	return fmt.Errorf("%w: cannot %s while %s", domain.ErrInvalidTransition, op, c.state)
}

// restoreLocked re-applies earlier selections, dropping any that no longer
// fit the fetched positions.
func (c *SubmissionController) restoreLocked(entries []domain.BallotEntry) {
	for _, e := range entries {
		if err := c.builder.Select(e.PositionID, e.Choice); err != nil {
			c.logger.WithError(err).WithField("position_id", e.PositionID).Debug("dropping stale selection")
		}
	}
}

func (c *SubmissionController) ballotVoter() domain.Voter {
	if c.voter.IsLink() {
		return c.voter
	}
	if id, ok := c.session.Identity(); ok {
		return domain.Voter{Email: id.Email}
	}
	return domain.Voter{}
}

func (c *SubmissionController) voterKey() string {
	if c.voter.IsLink() {
		return "link:" + strings.ToLower(c.voter.Email)
	}
	id, ok := c.session.Identity()
	if !ok {
		return ""
	}
	if id.ID != "" {
		return string(id.Role) + ":" + id.ID
	}
	return "session:" + strings.ToLower(id.Email)
}

func (c *SubmissionController) notify(change domain.StateChange) {
	for _, l := range c.snapshotListeners() {
		l.StateChanged(change)
	}
}

func (c *SubmissionController) notifySelection(positionID domain.PositionID, choice *domain.Choice) {
	for _, l := range c.snapshotListeners() {
		l.SelectionChanged(positionID, choice)
	}
}

func (c *SubmissionController) snapshotListeners() []ports.StateListener {
	c.listenersMu.RLock()
	defer c.listenersMu.RUnlock()
	out := make([]ports.StateListener, 0, len(c.listeners))
	for _, l := range c.listeners {
		out = append(out, l)
	}
	return out
}

func (c *SubmissionController) loadDraft(key string) *domain.Draft {
	if c.drafts == nil || key == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	draft, err := c.drafts.Load(ctx, key)
	if err != nil {
		c.logger.WithError(err).Warn("failed to load ballot draft")
		return nil
	}
	return draft
}

func (c *SubmissionController) saveDraft(key string, entries []domain.BallotEntry) {
	if c.drafts == nil || key == "" || len(entries) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	draft := &domain.Draft{VoterKey: key, Entries: entries, UpdatedAt: c.now()}
	if err := c.drafts.Save(ctx, draft); err != nil {
		c.logger.WithError(err).Warn("failed to save ballot draft")
	}
}

func (c *SubmissionController) deleteDraft(key string) {
	if c.drafts == nil || key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := c.drafts.Delete(ctx, key); err != nil {
		c.logger.WithError(err).Warn("failed to delete ballot draft")
	}
}

func outcomeError(o ports.Outcome) error {
	if o.Reason == domain.ReasonTimeout {
		return domain.ErrTimeout
	}
	if o.Err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransient, o.Err)
	}
	if o.Message != "" {
		return fmt.Errorf("%w: %s", domain.ErrTransient, o.Message)
	}
	return domain.ErrTransient
}

func failureMessage(prefix string, o ports.Outcome) string {
	switch {
	case o.Reason == domain.ReasonTimeout:
		return prefix + ": the server did not answer in time. Please try again."
	case o.Message != "":
		return prefix + ": " + o.Message
	case o.Reason == domain.ReasonNetwork:
		return prefix + ": connection error. Please try again."
	}
	return prefix + ". Please try again."
}
