package memory

import (
	"context"
	"sort"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/dmitrijs2005/taskmanager/internal/server/tenant"
	"github.com/google/uuid"
)

// TaskRepository implements tasks.Repository. Tasks outside the bound scope
// behave as if they did not exist.
type TaskRepository struct {
	s *Store
}

func (r *TaskRepository) Create(ctx context.Context, t *models.Task) (*models.Task, error) {
	if !tenant.FromContext(ctx).Admits(t.UserID, "") {
		return nil, common.ErrorUnauthorized
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[t.UserID]; !ok {
		return nil, common.ErrorNotFound
	}

	now := r.s.now().UTC()
	created := *t
	created.ID = uuid.New()
	created.CreatedAt = now
	created.UpdatedAt = now
	r.s.tasks[created.ID] = &taskRecord{task: created, seq: r.s.nextSeq()}

	return &created, nil
}

// visible returns the record for id if the scope admits it. Callers hold mu.
func (r *TaskRepository) visible(ctx context.Context, id uuid.UUID) (*taskRecord, bool) {
	rec, ok := r.s.tasks[id]
	if !ok || !tenant.FromContext(ctx).Admits(rec.task.UserID, "") {
		return nil, false
	}
	return rec, true
}

func (r *TaskRepository) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.visible(ctx, id)
	if !ok {
		return nil, common.ErrorNotFound
	}
	t := rec.task
	return &t, nil
}

func (r *TaskRepository) List(ctx context.Context, f models.TaskFilter) ([]models.Task, int, error) {
	scope := tenant.FromContext(ctx)

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var recs []*taskRecord
	for _, rec := range r.s.tasks {
		if !scope.Admits(rec.task.UserID, "") {
			continue
		}
		if f.IsCompleted != nil && rec.task.IsCompleted != *f.IsCompleted {
			continue
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq > recs[j].seq })

	result := []models.Task{}
	for _, rec := range page(recs, f.Limit, f.Offset) {
		result = append(result, rec.task)
	}
	return result, len(recs), nil
}

func (r *TaskRepository) Update(ctx context.Context, t *models.Task) (*models.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.visible(ctx, t.ID)
	if !ok {
		return nil, common.ErrorNotFound
	}
	rec.task.Title = t.Title
	rec.task.Description = t.Description
	rec.task.IsCompleted = t.IsCompleted
	rec.task.UpdatedAt = r.s.now().UTC()

	updated := rec.task
	return &updated, nil
}

func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.visible(ctx, id); !ok {
		return common.ErrorNotFound
	}
	delete(r.s.tasks, id)
	return nil
}

func (r *TaskRepository) CountByUser(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	counts := make(map[uuid.UUID]int, len(userIDs))
	for _, id := range userIDs {
		counts[id] = 0
	}
	for _, rec := range r.s.tasks {
		if _, ok := counts[rec.task.UserID]; ok {
			counts[rec.task.UserID]++
		}
	}
	return counts, nil
}
