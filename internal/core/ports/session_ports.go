package ports

import (
	"context"

	"github.com/vncsmyrnk/ballot/internal/core/domain"
)

// SessionStore holds the bearer credential read by every outbound call.
type SessionStore interface {
	SetCredential(token string, identity domain.Identity)
	Token() (string, bool)
	Identity() (domain.Identity, bool)
	IsAuthenticated() bool
	Clear()
}

type CredentialRepository interface {
	Save(ctx context.Context, credential *domain.Credential) error
	Load(ctx context.Context) (*domain.Credential, error) // nil, nil when nothing is stored
	Delete(ctx context.Context) error
}
