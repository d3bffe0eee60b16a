package services

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
)

const persistTimeout = 5 * time.Second

// SessionStore keeps the current credential in memory and, when a repository
// is configured, mirrors it so a restarted process can resume the session.
type SessionStore struct {
	mu     sync.RWMutex
	cred   *domain.Credential
	repo   ports.CredentialRepository
	now    func() time.Time
	logger logrus.FieldLogger
}

type SessionOption func(*SessionStore)

func WithCredentialRepository(repo ports.CredentialRepository) SessionOption {
	return func(s *SessionStore) {
		s.repo = repo
	}
}

func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *SessionStore) {
		s.now = now
	}
}

func NewSessionStore(logger logrus.FieldLogger, opts ...SessionOption) *SessionStore {
	s := &SessionStore{
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads a persisted credential, discarding it if it already expired.
func (s *SessionStore) Restore(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	cred, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	if cred == nil {
		return nil
	}
	if cred.Expired(s.now()) {
		s.logger.WithField("email", cred.Identity.Email).Info("persisted session expired, discarding")
		return s.repo.Delete(ctx)
	}

	s.mu.Lock()
	s.cred = cred
	s.mu.Unlock()
	s.logger.WithField("email", cred.Identity.Email).Info("session restored")
	return nil
}

func (s *SessionStore) SetCredential(token string, identity domain.Identity) {
	cred := &domain.Credential{
		Token:     token,
		Identity:  identity,
		ExpiresAt: tokenExpiry(token),
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.cred = cred
	s.mu.Unlock()

	s.persist(func(ctx context.Context) error { return s.repo.Save(ctx, cred) })
}

func (s *SessionStore) Token() (string, bool) {
	cred, ok := s.current()
	if !ok {
		return "", false
	}
	return cred.Token, true
}

func (s *SessionStore) Identity() (domain.Identity, bool) {
	cred, ok := s.current()
	if !ok {
		return domain.Identity{}, false
	}
	return cred.Identity, true
}

func (s *SessionStore) IsAuthenticated() bool {
	_, ok := s.current()
	return ok
}

func (s *SessionStore) Clear() {
	s.mu.Lock()
	had := s.cred != nil
	s.cred = nil
	s.mu.Unlock()

	if had {
		s.logger.Info("session cleared")
	}
	s.persist(func(ctx context.Context) error { return s.repo.Delete(ctx) })
}

// current returns the live credential, clearing it first if its token has
// passed its expiry.
func (s *SessionStore) current() (domain.Credential, bool) {
	s.mu.RLock()
	cred := s.cred
	s.mu.RUnlock()

	if cred == nil || cred.Token == "" {
		return domain.Credential{}, false
	}
	if cred.Expired(s.now()) {
		s.logger.WithField("email", cred.Identity.Email).Info("session token expired")
		s.Clear()
		return domain.Credential{}, false
	}
	return *cred, true
}

func (s *SessionStore) persist(op func(ctx context.Context) error) {
	if s.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := op(ctx); err != nil {
		s.logger.WithError(err).Warn("failed to persist session credential")
	}
}

// tokenExpiry reads the exp claim of a JWT without verifying it. The server
// owns verification; the claim only lets the client notice expiry early.
// Opaque tokens never expire locally.
func tokenExpiry(token string) *time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	t := exp.Time
	return &t
}
