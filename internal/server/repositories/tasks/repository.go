// Package tasks persists tenant-owned tasks.
package tasks

import (
	"context"

	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/google/uuid"
)

// Repository methods address tasks by id only. Which tasks are visible is
// decided by the tenant scope the call runs under, not by these queries;
// rows outside the scope behave exactly like missing rows
// (common.ErrorNotFound).
type Repository interface {
	Create(ctx context.Context, t *models.Task) (*models.Task, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Task, error)
	List(ctx context.Context, f models.TaskFilter) ([]models.Task, int, error)
	Update(ctx context.Context, t *models.Task) (*models.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// CountByUser returns the number of tasks owned by each of userIDs,
	// whatever scope is bound. Users without tasks map to 0.
	CountByUser(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]int, error)
}
