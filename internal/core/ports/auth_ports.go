package ports

import (
	"context"

	"github.com/vncsmyrnk/ballot/internal/core/domain"
)

type LoginResult struct {
	Outcome
	AccessToken string
	User        domain.Identity
}

type VerifyResult struct {
	Outcome
	User domain.Identity
}

type AuthClient interface {
	Login(ctx context.Context, role domain.Role, email, password string) LoginResult
	Verify(ctx context.Context) VerifyResult
}

type AuthService interface {
	Login(ctx context.Context, role domain.Role, email, password string) (*domain.Identity, error)
	Verify(ctx context.Context) (*domain.Identity, error)
	Logout(ctx context.Context) error
	Current() (*domain.Identity, bool)
}
