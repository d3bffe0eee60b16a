package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
)

type fakeAuthClient struct {
	login  ports.LoginResult
	verify ports.VerifyResult
	calls  int
}

func (f *fakeAuthClient) Login(_ context.Context, _ domain.Role, _, _ string) ports.LoginResult {
	f.calls++
	return f.login
}

func (f *fakeAuthClient) Verify(_ context.Context) ports.VerifyResult {
	f.calls++
	return f.verify
}

func TestAuthService_Login(t *testing.T) {
	client := &fakeAuthClient{login: ports.LoginResult{
		Outcome:     ports.Outcome{Kind: ports.OutcomeOK, Status: 200},
		AccessToken: "token-1",
		User:        domain.Identity{ID: "7", Email: "p@example.com"},
	}}
	session := NewSessionStore(newTestLogger())
	svc := NewAuthService(client, session, newTestLogger())

	id, err := svc.Login(context.Background(), domain.RoleParticipant, "p@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleParticipant, id.Role)

	token, ok := session.Token()
	require.True(t, ok)
	assert.Equal(t, "token-1", token)

	current, ok := svc.Current()
	require.True(t, ok)
	assert.Equal(t, "p@example.com", current.Email)
}

func TestAuthService_LoginFailures(t *testing.T) {
	tests := []struct {
		name    string
		outcome ports.Outcome
		wantErr error
	}{
		{name: "wrong password", outcome: ports.Outcome{Kind: ports.OutcomeAuthExpired, Status: 401, Message: "Invalid credentials"}, wantErr: domain.ErrInvalidCredentials},
		{name: "disabled account", outcome: ports.Outcome{Kind: ports.OutcomeConflict, Status: 403}, wantErr: domain.ErrInvalidCredentials},
		{name: "server down", outcome: ports.Outcome{Kind: ports.OutcomeTransient, Reason: domain.ReasonNetwork}, wantErr: domain.ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeAuthClient{login: ports.LoginResult{Outcome: tt.outcome}}
			session := NewSessionStore(newTestLogger())
			svc := NewAuthService(client, session, newTestLogger())

			_, err := svc.Login(context.Background(), domain.RoleParticipant, "p@example.com", "secret")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, session.IsAuthenticated())
		})
	}
}

func TestAuthService_LoginRequiresFields(t *testing.T) {
	client := &fakeAuthClient{}
	svc := NewAuthService(client, NewSessionStore(newTestLogger()), newTestLogger())

	_, err := svc.Login(context.Background(), domain.RoleAdmin, "", "secret")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Zero(t, client.calls)
}

func TestAuthService_VerifyExpiredClearsSession(t *testing.T) {
	client := &fakeAuthClient{verify: ports.VerifyResult{Outcome: ports.Outcome{Kind: ports.OutcomeAuthExpired, Status: 401}}}
	session := NewSessionStore(newTestLogger())
	session.SetCredential("token", participant)
	svc := NewAuthService(client, session, newTestLogger())

	_, err := svc.Verify(context.Background())

	assert.ErrorIs(t, err, domain.ErrSessionExpired)
	assert.False(t, session.IsAuthenticated())
}

func TestAuthService_VerifyWithoutSession(t *testing.T) {
	client := &fakeAuthClient{}
	svc := NewAuthService(client, NewSessionStore(newTestLogger()), newTestLogger())

	_, err := svc.Verify(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.Zero(t, client.calls)
}

func TestAuthService_Logout(t *testing.T) {
	session := NewSessionStore(newTestLogger())
	session.SetCredential("token", participant)
	svc := NewAuthService(&fakeAuthClient{}, session, newTestLogger())

	require.NoError(t, svc.Logout(context.Background()))
	_, ok := svc.Current()
	assert.False(t, ok)
}

func TestAuthService_LoginAndLogoutResetBallot(t *testing.T) {
	logger := newTestLogger()
	session := NewSessionStore(logger)
	session.SetCredential("token", participant)
	controller := NewSubmissionController(&fakeSurvey{positions: okPositions(samplePositions())}, session, logger)
	client := &fakeAuthClient{login: ports.LoginResult{
		Outcome:     ports.Outcome{Kind: ports.OutcomeOK, Status: 200},
		AccessToken: "token-2",
		User:        otherParticipant,
	}}
	svc := NewAuthService(client, session, logger, WithBallotReset(controller))

	require.NoError(t, controller.LoadBallot(context.Background()))
	require.NoError(t, controller.Select(1, domain.CandidateChoice(10)))

	require.NoError(t, svc.Logout(context.Background()))
	assert.Equal(t, domain.StateIdle, controller.State())
	assert.Empty(t, controller.Snapshot().Selections)

	_, err := svc.Login(context.Background(), domain.RoleParticipant, "other@example.com", "secret")
	require.NoError(t, err)
	require.NoError(t, controller.LoadBallot(context.Background()))
	assert.Empty(t, controller.Snapshot().Selections)

	require.NoError(t, controller.Select(2, domain.CandidateChoice(20)))
	_, err = svc.Login(context.Background(), domain.RoleParticipant, "other@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, controller.State())
	assert.Empty(t, controller.Snapshot().Selections)
}
