// Package users is the credential store: accounts keyed by a unique,
// lowercased email.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/google/uuid"
)

// Repository persists accounts. Lookups of absent rows return
// common.ErrorNotFound; Create returns common.ErrDuplicateEmail when the
// unique email constraint fires.
type Repository interface {
	Create(ctx context.Context, email, passwordHash string, role models.Role) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.User, error)
	SetRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.User, error)
	RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	// List returns a page of users, newest first, and the total count.
	List(ctx context.Context, limit, offset int) ([]models.User, int, error)
}
