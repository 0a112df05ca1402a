package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is one persisted refresh session. Only the hex SHA-256 digest
// of the raw secret is stored. Rows are never deleted; RevokedAt moves from
// nil to a timestamp exactly once.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// Active reports whether the token is unrevoked and unexpired at now.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
