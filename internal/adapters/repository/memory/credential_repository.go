package memory

import (
	"context"
	"sync"

	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
)

type credentialRepository struct {
	mu   sync.Mutex
	cred *domain.Credential
}

func NewCredentialRepository() ports.CredentialRepository {
	return &credentialRepository{}
}

func (r *credentialRepository) Save(_ context.Context, cred *domain.Credential) error {
	c := *cred
	r.mu.Lock()
	r.cred = &c
	r.mu.Unlock()
	return nil
}

func (r *credentialRepository) Load(_ context.Context) (*domain.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cred == nil {
		return nil, nil
	}
	c := *r.cred
	return &c, nil
}

func (r *credentialRepository) Delete(_ context.Context) error {
	r.mu.Lock()
	r.cred = nil
	r.mu.Unlock()
	return nil
}
