// Package refreshtokens stores refresh token digests. Rows are append-only:
// the only mutation is setting revoked_at once, from NULL.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/google/uuid"
)

// Repository is the persistence contract of the refresh token ledger. All
// methods run under the caller's tenant scope; rows outside it are invisible.
type Repository interface {
	// Create inserts t and fills in its ID.
	Create(ctx context.Context, t *models.RefreshToken) error

	// FindByHash returns the row with the given digest, or common.ErrorNotFound.
	FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// RevokeActive sets revoked_at = now on the row with the given digest if it
	// is neither revoked nor expired at now, and returns its owner. Any other
	// case returns common.ErrorNotFound and changes nothing.
	RevokeActive(ctx context.Context, tokenHash string, now time.Time) (uuid.UUID, error)

	// RevokeAllForUser revokes every active row of userID and returns how many
	// rows changed.
	RevokeAllForUser(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)

	// ListActiveByUser returns the unrevoked, unexpired rows of userID,
	// newest first.
	ListActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.RefreshToken, error)
}
