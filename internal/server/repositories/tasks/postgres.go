package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/dbx"
	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/google/uuid"
)

const taskColumns = `id, user_id, title, description, is_completed, created_at, updated_at`

// PostgresRepository implements task storage over a dbx.DBTX. The
// tasks_isolation_policy restricts every statement to the bound user.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanTask(row interface{ Scan(...any) error }) (*models.Task, error) {
	t := &models.Task{}
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.IsCompleted, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return t, nil
}

// Create inserts t owned by t.UserID. Inserting for a user other than the
// bound one is rejected by the policy and reported as common.ErrorUnauthorized.
func (r *PostgresRepository) Create(ctx context.Context, t *models.Task) (*models.Task, error) {
	query := `
		INSERT INTO tasks (user_id, title, description, is_completed)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + taskColumns

	created, err := scanTask(r.db.QueryRowContext(ctx, query, t.UserID, t.Title, t.Description, t.IsCompleted))
	if err != nil {
		if dbx.IsRowSecurityViolation(err) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return created, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

// List returns tasks newest first. f.IsCompleted == nil disables the filter.
func (r *PostgresRepository) List(ctx context.Context, f models.TaskFilter) ([]models.Task, int, error) {
	var completed sql.NullBool
	if f.IsCompleted != nil {
		completed = sql.NullBool{Bool: *f.IsCompleted, Valid: true}
	}

	var total int
	countQuery := `SELECT count(*) FROM tasks WHERE ($1::boolean IS NULL OR is_completed = $1)`
	if err := r.db.QueryRowContext(ctx, countQuery, completed).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE ($1::boolean IS NULL OR is_completed = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, completed, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to select tasks: %w", err)
	}
	defer rows.Close()

	result := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("db error: %w", err)
		}
		result = append(result, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return result, total, nil
}

// Update writes the mutable fields of t. A row hidden by the policy is
// indistinguishable from a missing one.
func (r *PostgresRepository) Update(ctx context.Context, t *models.Task) (*models.Task, error) {
	query := `
		UPDATE tasks
		SET title = $2, description = $3, is_completed = $4, updated_at = now()
		WHERE id = $1
		RETURNING ` + taskColumns

	updated, err := scanTask(r.db.QueryRowContext(ctx, query, t.ID, t.Title, t.Description, t.IsCompleted))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbx.IsRowSecurityViolation(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return updated, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// CountByUser goes through app_task_count, which counts past the policy and
// returns only the number.
func (r *PostgresRepository) CountByUser(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(userIDs))
	if len(userIDs) == 0 {
		return counts, nil
	}

	placeholders := make([]string, len(userIDs))
	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
		counts[id] = 0
	}

	query := `SELECT id, app_task_count(id) FROM users WHERE id IN (` + strings.Join(placeholders, ", ") + `)`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id uuid.UUID
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return counts, nil
}
