package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
)

type AuthService struct {
	client    ports.AuthClient
	session   ports.SessionStore
	resetters []ports.BallotResetter
	logger    logrus.FieldLogger
}

type AuthOption func(*AuthService)

// WithBallotReset registers state that belongs to whoever is logged in and
// must be dropped on login and logout.
func WithBallotReset(r ports.BallotResetter) AuthOption {
	return func(s *AuthService) {
		s.resetters = append(s.resetters, r)
	}
}

func NewAuthService(client ports.AuthClient, session ports.SessionStore, logger logrus.FieldLogger, opts ...AuthOption) *AuthService {
	s := &AuthService{
		client:  client,
		session: session,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AuthService) Login(ctx context.Context, role domain.Role, email, password string) (*domain.Identity, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrInvalidCredentials)
	}

	res := s.client.Login(ctx, role, email, password)
	switch res.Kind {
	case ports.OutcomeOK:
	case ports.OutcomeAuthExpired, ports.OutcomeValidationFailed, ports.OutcomeNotFound:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidCredentials, res.Message)
	case ports.OutcomeConflict:
		return nil, fmt.Errorf("%w: account disabled", domain.ErrInvalidCredentials)
	default:
		return nil, fmt.Errorf("login failed: %w", outcomeError(res.Outcome))
	}

	user := res.User
	if user.Role == "" {
		user.Role = role
	}
	s.session.SetCredential(res.AccessToken, user)
	s.reset()
	s.logger.WithFields(logrus.Fields{"email": user.Email, "role": user.Role}).Info("logged in")
	return &user, nil
}

// Verify asks the server whether the stored token is still accepted and
// clears the session if it is not.
func (s *AuthService) Verify(ctx context.Context) (*domain.Identity, error) {
	if !s.session.IsAuthenticated() {
		return nil, domain.ErrNotAuthenticated
	}

	res := s.client.Verify(ctx)
	switch res.Kind {
	case ports.OutcomeOK:
		return &res.User, nil
	case ports.OutcomeAuthExpired:
		s.session.Clear()
		return nil, domain.ErrSessionExpired
	}
	return nil, fmt.Errorf("verify failed: %w", outcomeError(res.Outcome))
}

func (s *AuthService) Logout(ctx context.Context) error {
	s.session.Clear()
	s.reset()
	return nil
}

func (s *AuthService) reset() {
	for _, r := range s.resetters {
		r.Reset()
	}
}

func (s *AuthService) Current() (*domain.Identity, bool) {
	id, ok := s.session.Identity()
	if !ok {
		return nil, false
	}
	return &id, true
}
