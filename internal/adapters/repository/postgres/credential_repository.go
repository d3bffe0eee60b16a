package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
)

// CredentialRepository stores one credential per profile, so several bridge
// instances can share a database without sharing sessions.
type CredentialRepository struct {
	db      *sql.DB
	profile string
}

func NewCredentialRepository(db *sql.DB, profile string) ports.CredentialRepository {
	return &CredentialRepository{db: db, profile: profile}
}

func (r *CredentialRepository) Save(ctx context.Context, cred *domain.Credential) error {
	query := `
		INSERT INTO session_credentials (profile, token, identity_id, email, name, role, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (profile) DO UPDATE SET
			token = EXCLUDED.token,
			identity_id = EXCLUDED.identity_id,
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		r.profile,
		cred.Token,
		cred.Identity.ID,
		cred.Identity.Email,
		cred.Identity.Name,
		string(cred.Identity.Role),
		cred.ExpiresAt,
		cred.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

func (r *CredentialRepository) Load(ctx context.Context) (*domain.Credential, error) {
	query := `
		SELECT token, identity_id, email, name, role, expires_at, created_at
		FROM session_credentials
		WHERE profile = $1
	`
	var (
		cred      domain.Credential
		role      string
		expiresAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, r.profile).Scan(
		&cred.Token,
		&cred.Identity.ID,
		&cred.Identity.Email,
		&cred.Identity.Name,
		&role,
		&expiresAt,
		&cred.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	cred.Identity.Role = domain.Role(role)
	if expiresAt.Valid {
		t := expiresAt.Time
		cred.ExpiresAt = &t
	}
	return &cred, nil
}

func (r *CredentialRepository) Delete(ctx context.Context) error {
	query := `DELETE FROM session_credentials WHERE profile = $1`
	if _, err := r.db.ExecContext(ctx, query, r.profile); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}
