package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
	"github.com/vncsmyrnk/ballot/internal/core/services"
)

type stubSurvey struct {
	mu        sync.Mutex
	positions []domain.Position
	submit    ports.SubmitResult
	submitted int
}

func (s *stubSurvey) FetchPositions(_ context.Context, _ domain.Voter) ports.PositionsResult {
	return ports.PositionsResult{
		Outcome:   ports.Outcome{Kind: ports.OutcomeOK, Status: http.StatusOK},
		Positions: domain.ClonePositions(s.positions),
	}
}

func (s *stubSurvey) SubmitVote(_ context.Context, _ domain.Ballot) ports.SubmitResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted++
	return s.submit
}

type stubAuth struct {
	session ports.SessionStore
}

func (a *stubAuth) Login(_ context.Context, role domain.Role, email, password string) ports.LoginResult {
	if password != "secret" {
		return ports.LoginResult{Outcome: ports.Outcome{Kind: ports.OutcomeAuthExpired, Status: http.StatusUnauthorized, Message: "Invalid credentials"}}
	}
	return ports.LoginResult{
		Outcome:     ports.Outcome{Kind: ports.OutcomeOK, Status: http.StatusOK},
		AccessToken: "token",
		User:        domain.Identity{ID: "1", Email: email, Role: role},
	}
}

func (a *stubAuth) Verify(_ context.Context) ports.VerifyResult {
	id, _ := a.session.Identity()
	return ports.VerifyResult{Outcome: ports.Outcome{Kind: ports.OutcomeOK, Status: http.StatusOK}, User: id}
}

type stubResults struct{}

func (stubResults) Summary(_ context.Context) (*domain.ResultsSummary, error) {
	return &domain.ResultsSummary{TotalVotesCast: 3}, nil
}

type bridge struct {
	server  *httptest.Server
	survey  *stubSurvey
	session *services.SessionStore
	events  *EventHub
}

func newBridge(t *testing.T) *bridge {
	t.Helper()
	logger, _ := test.NewNullLogger()

	survey := &stubSurvey{
		positions: []domain.Position{
			{ID: 1, Name: "President", Candidates: []domain.Candidate{{ID: 10, Name: "Ana"}, {ID: 11, Name: "Bruno"}}},
			{ID: 2, Name: "Treasurer", Candidates: []domain.Candidate{{ID: 20, Name: "Carla"}}},
		},
		submit: ports.SubmitResult{Outcome: ports.Outcome{Kind: ports.OutcomeOK, Status: http.StatusOK, Message: "Votes submitted successfully"}},
	}
	session := services.NewSessionStore(logger)
	controller := services.NewSubmissionController(survey, session, logger)
	authService := services.NewAuthService(&stubAuth{session: session}, session, logger, services.WithBallotReset(controller))
	events := NewEventHub(logger, nil)
	controller.Subscribe(events)

	handler := NewHandler(
		NewBallotHandler(controller),
		NewSessionHandler(authService),
		NewResultsHandler(services.NewResultsService(stubResults{})),
		events,
		[]string{"http://localhost:3000"},
	)
	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		events.Close()
		server.Close()
	})
	return &bridge{server: server, survey: survey, session: session, events: events}
}

func (b *bridge) call(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, b.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := b.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (b *bridge) login(t *testing.T) {
	t.Helper()
	resp, _ := b.call(t, http.MethodPost, "/api/session/login", map[string]string{"email": "p@example.com", "password": "secret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBallotFlow(t *testing.T) {
	b := newBridge(t)
	b.login(t)

	resp, data := b.call(t, http.MethodPost, "/api/ballot/load", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var snap ports.BallotSnapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, domain.StateReady, snap.State)
	assert.Len(t, snap.Positions, 2)

	resp, _ = b.call(t, http.MethodPut, "/api/ballot/selections/1", map[string]any{"candidate_id": 11})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = b.call(t, http.MethodPut, "/api/ballot/selections/2", map[string]any{"special": "abstain"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, data = b.call(t, http.MethodPost, "/api/ballot/submit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var summary domain.Summary
	require.NoError(t, json.Unmarshal(data, &summary))
	require.Len(t, summary.Lines, 2)
	assert.Equal(t, "Bruno", summary.Lines[0].Label)
	assert.Equal(t, "Abstain", summary.Lines[1].Label)

	resp, data = b.call(t, http.MethodPost, "/api/ballot/confirm", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, domain.StateVoted, snap.State)
	assert.Equal(t, "Votes submitted successfully", snap.Context.Message)

	resp, _ = b.call(t, http.MethodPost, "/api/ballot/confirm", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, 1, b.survey.submitted)
}

func TestBallotLoadRequiresSession(t *testing.T) {
	b := newBridge(t)

	resp, data := b.call(t, http.MethodPost, "/api/ballot/load", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var body errorResponse
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Contains(t, body.Error, "not authenticated")
	require.NotNil(t, body.Ballot)
	assert.Equal(t, domain.StateSessionExpired, body.Ballot.State)
	assert.Equal(t, "Please log in to vote.", body.Ballot.Context.Message)

	_, data = b.call(t, http.MethodGet, "/api/ballot", nil)
	var snap ports.BallotSnapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, domain.StateSessionExpired, snap.State)
}

func TestMalformedBodiesGetJSONErrors(t *testing.T) {
	b := newBridge(t)
	b.login(t)
	b.call(t, http.MethodPost, "/api/ballot/load", nil)

	for _, path := range []string{"/api/ballot/selections/1", "/api/session/login"} {
		method := http.MethodPut
		if path == "/api/session/login" {
			method = http.MethodPost
		}
		req, err := http.NewRequest(method, b.server.URL+path, strings.NewReader("{not json"))
		require.NoError(t, err)
		resp, err := b.server.Client().Do(req)
		require.NoError(t, err)
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"), path)
		var body errorResponse
		require.NoError(t, json.Unmarshal(data, &body), path)
		assert.Equal(t, "invalid request body", body.Error)
	}
}

func TestConfirmConflictAfterUnresolvedAttempt(t *testing.T) {
	b := newBridge(t)
	b.survey.submit = ports.SubmitResult{Outcome: ports.Outcome{Kind: ports.OutcomeTransient, Reason: domain.ReasonNetwork}}
	b.login(t)
	b.call(t, http.MethodPost, "/api/ballot/load", nil)
	b.call(t, http.MethodPut, "/api/ballot/selections/1", map[string]any{"candidate_id": 10})
	b.call(t, http.MethodPut, "/api/ballot/selections/2", map[string]any{"candidate_id": 20})
	b.call(t, http.MethodPost, "/api/ballot/submit", nil)

	resp, _ := b.call(t, http.MethodPost, "/api/ballot/confirm", nil)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	resp, _ = b.call(t, http.MethodPost, "/api/ballot/retry", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	b.survey.mu.Lock()
	b.survey.submit = ports.SubmitResult{Outcome: ports.Outcome{Kind: ports.OutcomeConflict, Status: http.StatusConflict}}
	b.survey.mu.Unlock()
	resp, data := b.call(t, http.MethodPost, "/api/ballot/confirm", nil)

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var body errorResponse
	require.NoError(t, json.Unmarshal(data, &body))
	require.NotNil(t, body.Ballot)
	assert.Equal(t, domain.StateAlreadyVoted, body.Ballot.State)
	assert.True(t, body.Ballot.Context.ProbablyRecorded)
}

func TestLogoutResetsBallot(t *testing.T) {
	b := newBridge(t)
	b.login(t)
	b.call(t, http.MethodPost, "/api/ballot/load", nil)
	b.call(t, http.MethodPut, "/api/ballot/selections/1", map[string]any{"candidate_id": 10})

	resp, _ := b.call(t, http.MethodPost, "/api/session/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, data := b.call(t, http.MethodGet, "/api/ballot", nil)
	var snap ports.BallotSnapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, domain.StateIdle, snap.State)
	assert.Empty(t, snap.Selections)
}

func TestBallotSelectionErrors(t *testing.T) {
	b := newBridge(t)
	b.login(t)
	resp, _ := b.call(t, http.MethodPost, "/api/ballot/load", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{name: "unknown candidate", path: "/api/ballot/selections/2", body: map[string]any{"candidate_id": 10}, status: http.StatusUnprocessableEntity},
		{name: "unknown position", path: "/api/ballot/selections/9", body: map[string]any{"candidate_id": 10}, status: http.StatusUnprocessableEntity},
		{name: "bad position id", path: "/api/ballot/selections/abc", body: map[string]any{"candidate_id": 10}, status: http.StatusUnprocessableEntity},
		{name: "both fields", path: "/api/ballot/selections/1", body: map[string]any{"candidate_id": 10, "special": "blank"}, status: http.StatusUnprocessableEntity},
		{name: "unknown special", path: "/api/ballot/selections/1", body: map[string]any{"special": "maybe"}, status: http.StatusUnprocessableEntity},
		{name: "not json", path: "/api/ballot/selections/1", body: "nope", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := b.call(t, http.MethodPut, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestBallotIncompleteSubmit(t *testing.T) {
	b := newBridge(t)
	b.login(t)
	b.call(t, http.MethodPost, "/api/ballot/load", nil)
	b.call(t, http.MethodPut, "/api/ballot/selections/1", map[string]any{"candidate_id": 10})

	resp, data := b.call(t, http.MethodPost, "/api/ballot/submit", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var body errorResponse
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, []domain.PositionID{2}, body.Missing)
}

func TestBallotCancelAndClear(t *testing.T) {
	b := newBridge(t)
	b.login(t)
	b.call(t, http.MethodPost, "/api/ballot/load", nil)
	b.call(t, http.MethodPut, "/api/ballot/selections/1", map[string]any{"candidate_id": 10})
	b.call(t, http.MethodPut, "/api/ballot/selections/2", map[string]any{"special": "blank"})

	resp, _ := b.call(t, http.MethodPost, "/api/ballot/submit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = b.call(t, http.MethodPost, "/api/ballot/cancel", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = b.call(t, http.MethodDelete, "/api/ballot/selections/1", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, data := b.call(t, http.MethodGet, "/api/ballot", nil)
	var snap ports.BallotSnapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, []domain.PositionID{1}, snap.Missing)

	resp, _ = b.call(t, http.MethodDelete, "/api/ballot/selections", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, data = b.call(t, http.MethodGet, "/api/ballot", nil)
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Empty(t, snap.Selections)

	resp, _ = b.call(t, http.MethodPost, "/api/ballot/retry", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestBallotRetryAfterFailure(t *testing.T) {
	b := newBridge(t)
	b.survey.submit = ports.SubmitResult{Outcome: ports.Outcome{Kind: ports.OutcomeTransient, Status: http.StatusBadGateway, Reason: domain.ReasonServer}}
	b.login(t)
	b.call(t, http.MethodPost, "/api/ballot/load", nil)
	b.call(t, http.MethodPut, "/api/ballot/selections/1", map[string]any{"candidate_id": 10})
	b.call(t, http.MethodPut, "/api/ballot/selections/2", map[string]any{"candidate_id": 20})
	b.call(t, http.MethodPost, "/api/ballot/submit", nil)

	resp, _ := b.call(t, http.MethodPost, "/api/ballot/confirm", nil)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp, _ = b.call(t, http.MethodPost, "/api/ballot/retry", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	b.survey.mu.Lock()
	b.survey.submit = ports.SubmitResult{Outcome: ports.Outcome{Kind: ports.OutcomeOK, Status: http.StatusOK}}
	b.survey.mu.Unlock()
	resp, _ = b.call(t, http.MethodPost, "/api/ballot/confirm", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessionEndpoints(t *testing.T) {
	b := newBridge(t)

	_, data := b.call(t, http.MethodGet, "/api/session", nil)
	var session sessionResponse
	require.NoError(t, json.Unmarshal(data, &session))
	assert.False(t, session.Authenticated)

	resp, _ := b.call(t, http.MethodGet, "/api/session?verify=true", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = b.call(t, http.MethodPost, "/api/session/login", map[string]string{"email": "p@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, data = b.call(t, http.MethodPost, "/api/session/login", map[string]string{"email": "a@example.com", "password": "secret", "role": "admin"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(data, &session))
	assert.True(t, session.Authenticated)
	assert.Equal(t, domain.RoleAdmin, session.User.Role)

	resp, data = b.call(t, http.MethodGet, "/api/session?verify=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(data, &session))
	assert.Equal(t, "a@example.com", session.User.Email)

	resp, _ = b.call(t, http.MethodPost, "/api/session/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, b.session.IsAuthenticated())
}

func TestResultsEndpoint(t *testing.T) {
	b := newBridge(t)

	resp, data := b.call(t, http.MethodGet, "/api/results", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary domain.ResultsSummary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, int64(3), summary.TotalVotesCast)
}

func TestCORSPreflight(t *testing.T) {
	b := newBridge(t)

	req, err := http.NewRequest(http.MethodOptions, b.server.URL+"/api/ballot/load", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := b.server.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestEventsStream(t *testing.T) {
	b := newBridge(t)
	b.login(t)

	wsURL := "ws" + strings.TrimPrefix(b.server.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return b.events.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	resp, _ := b.call(t, http.MethodPost, "/api/ballot/load", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []Event
	for len(got) < 2 {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var ev Event
		require.NoError(t, conn.ReadJSON(&ev))
		got = append(got, ev)
	}
	assert.Equal(t, EventStateChanged, got[0].Type)
	assert.Equal(t, domain.StateLoading, got[0].Change.To)
	assert.Equal(t, domain.StateReady, got[1].Change.To)

	b.call(t, http.MethodPut, "/api/ballot/selections/1", map[string]any{"candidate_id": 10})
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventSelectionChanged, ev.Type)
	require.NotNil(t, ev.PositionID)
	assert.Equal(t, domain.PositionID(1), *ev.PositionID)
	assert.Equal(t, domain.CandidateChoice(10), *ev.Choice)
}
