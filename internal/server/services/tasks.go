package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/dbx"
	"github.com/dmitrijs2005/taskmanager/internal/logging"
	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/dmitrijs2005/taskmanager/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskmanager/internal/server/tenant"
	"github.com/google/uuid"
)

// TaskService manages the caller's tasks. The caller is taken from the
// tenant scope bound in ctx; the storage layer hides every other user's rows.
type TaskService struct {
	enforcer    tenant.Enforcer
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewTaskService(enforcer tenant.Enforcer, m repomanager.RepositoryManager, log logging.Logger) *TaskService {
	return &TaskService{enforcer: enforcer, repomanager: m, log: log.With("module", "tasks")}
}

// TaskPage is one page of a task listing.
type TaskPage struct {
	Tasks  []models.Task `json:"tasks"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

func caller(ctx context.Context) (tenant.Scope, error) {
	scope := tenant.FromContext(ctx)
	if scope.UserID == uuid.Nil {
		return tenant.Scope{}, common.ErrorUnauthorized
	}
	return tenant.ForUser(scope.UserID), nil
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if n := utf8.RuneCountInString(title); n == 0 || n > maxTitleLength {
		return "", common.ErrValidation
	}
	return title, nil
}

func (s *TaskService) Create(ctx context.Context, title, description string) (*models.Task, error) {
	scope, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	title, err = validateTitle(title)
	if err != nil {
		return nil, err
	}

	var task *models.Task
	err = s.enforcer.Run(ctx, scope, func(ctx context.Context, db dbx.DBTX) error {
		var err error
		task, err = s.repomanager.Tasks(db).Create(ctx, &models.Task{
			UserID:      scope.UserID,
			Title:       title,
			Description: description,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug(ctx, "task created", "user_id", scope.UserID, "task_id", task.ID)
	return task, nil
}

func (s *TaskService) List(ctx context.Context, filter models.TaskFilter) (*TaskPage, error) {
	scope, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	filter.Limit, filter.Offset, err = pageBounds(filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}

	page := &TaskPage{Limit: filter.Limit, Offset: filter.Offset}
	err = s.enforcer.Run(ctx, scope, func(ctx context.Context, db dbx.DBTX) error {
		var err error
		page.Tasks, page.Total, err = s.repomanager.Tasks(db).List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (s *TaskService) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	scope, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	var task *models.Task
	err = s.enforcer.Run(ctx, scope, func(ctx context.Context, db dbx.DBTX) error {
		var err error
		task, err = s.repomanager.Tasks(db).Get(ctx, id)
		return err
	})
	return task, err
}

// Update applies patch to task id. A task of another user is reported as
// common.ErrorNotFound.
func (s *TaskService) Update(ctx context.Context, id uuid.UUID, patch models.TaskPatch) (*models.Task, error) {
	scope, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		title, err := validateTitle(*patch.Title)
		if err != nil {
			return nil, err
		}
		patch.Title = &title
	}

	var task *models.Task
	err = s.enforcer.Run(ctx, scope, func(ctx context.Context, db dbx.DBTX) error {
		repo := s.repomanager.Tasks(db)

		current, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		patch.Apply(current)

		task, err = repo.Update(ctx, current)
		return err
	})
	return task, err
}

func (s *TaskService) Delete(ctx context.Context, id uuid.UUID) error {
	scope, err := caller(ctx)
	if err != nil {
		return err
	}

	return s.enforcer.Run(ctx, scope, func(ctx context.Context, db dbx.DBTX) error {
		return s.repomanager.Tasks(db).Delete(ctx, id)
	})
}
