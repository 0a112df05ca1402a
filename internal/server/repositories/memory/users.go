package memory

import (
	"context"
	"sort"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/google/uuid"
)

// UserRepository implements users.Repository. The users table is not
// tenant-owned, so no scope applies.
type UserRepository struct {
	s *Store
}

func copyUser(u *models.User) *models.User {
	c := *u
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}

func (r *UserRepository) Create(ctx context.Context, email, passwordHash string, role models.Role) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.emails[email]; ok {
		return nil, common.ErrDuplicateEmail
	}

	u := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    r.s.now().UTC(),
	}
	r.s.users[u.ID] = u
	r.s.userSeq[u.ID] = r.s.nextSeq()
	r.s.emails[email] = u.ID

	return copyUser(u), nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.emails[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyUser(r.s.users[id]), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyUser(u), nil
}

func (r *UserRepository) update(id uuid.UUID, fn func(u *models.User)) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	fn(u)
	return copyUser(u), nil
}

func (r *UserRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.User, error) {
	return r.update(id, func(u *models.User) { u.IsActive = active })
}

func (r *UserRepository) SetRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.User, error) {
	return r.update(id, func(u *models.User) { u.Role = role })
}

func (r *UserRepository) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.update(id, func(u *models.User) { u.LastLoginAt = &at })
	return err
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]models.User, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	all := make([]*models.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool {
		return r.s.userSeq[all[i].ID] > r.s.userSeq[all[j].ID]
	})

	result := []models.User{}
	for _, u := range page(all, limit, offset) {
		result = append(result, *copyUser(u))
	}
	return result, len(all), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
