package domain

import "time"

type Role string

const (
	RoleParticipant Role = "participant"
	RoleAdmin       Role = "admin"
)

type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  Role   `json:"role"`
}

// Credential is the bearer token held for the lifetime of a session.
type Credential struct {
	Token     string     `json:"-"`
	Identity  Identity   `json:"identity"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (c Credential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}
