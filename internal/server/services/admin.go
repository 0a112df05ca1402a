package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/dbx"
	"github.com/dmitrijs2005/taskmanager/internal/logging"
	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/dmitrijs2005/taskmanager/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskmanager/internal/server/tenant"
	"github.com/google/uuid"
)

// PromoteOutcome tells what PromoteAdmin did.
type PromoteOutcome int

const (
	AdminCreated PromoteOutcome = iota
	AdminUpgraded
	AdminExists
)

func (o PromoteOutcome) String() string {
	switch o {
	case AdminCreated:
		return "created"
	case AdminUpgraded:
		return "upgraded"
	case AdminExists:
		return "exists"
	}
	return "unknown"
}

// UserSummary is an account as the admin views show it.
type UserSummary struct {
	models.User
	TaskCount int `json:"task_count"`
}

// UserPage is one page of the admin user listing.
type UserPage struct {
	Users  []UserSummary `json:"users"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// AdminService exposes account management to administrators. Role checks
// happen at the transport layer.
type AdminService struct {
	enforcer    tenant.Enforcer
	repomanager repomanager.RepositoryManager
	hasher      PasswordHasher
	log         logging.Logger
}

func NewAdminService(enforcer tenant.Enforcer, m repomanager.RepositoryManager, hasher PasswordHasher, log logging.Logger) *AdminService {
	return &AdminService{enforcer: enforcer, repomanager: m, hasher: hasher, log: log.With("module", "admin")}
}

func (s *AdminService) ListUsers(ctx context.Context, limit, offset int) (*UserPage, error) {
	limit, offset, err := pageBounds(limit, offset)
	if err != nil {
		return nil, err
	}

	page := &UserPage{Limit: limit, Offset: offset}
	err = s.enforcer.Run(ctx, tenant.Scope{}, func(ctx context.Context, db dbx.DBTX) error {
		users, total, err := s.repomanager.Users(db).List(ctx, limit, offset)
		if err != nil {
			return err
		}
		page.Total = total
		page.Users, err = s.summarize(ctx, db, users...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (s *AdminService) GetUser(ctx context.Context, id uuid.UUID) (*UserSummary, error) {
	var summary *UserSummary
	err := s.enforcer.Run(ctx, tenant.Scope{}, func(ctx context.Context, db dbx.DBTX) error {
		user, err := s.repomanager.Users(db).FindByID(ctx, id)
		if err != nil {
			return err
		}
		summaries, err := s.summarize(ctx, db, *user)
		if err != nil {
			return err
		}
		summary = &summaries[0]
		return nil
	})
	return summary, err
}

// summarize attaches task counts to users within the running unit.
func (s *AdminService) summarize(ctx context.Context, db dbx.DBTX, users ...models.User) ([]UserSummary, error) {
	ids := make([]uuid.UUID, len(users))
	for i := range users {
		ids[i] = users[i].ID
	}

	counts, err := s.repomanager.Tasks(db).CountByUser(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]UserSummary, len(users))
	for i := range users {
		result[i] = UserSummary{User: users[i], TaskCount: counts[users[i].ID]}
	}
	return result, nil
}

// SetUserStatus activates or deactivates userID. An admin cannot deactivate
// themselves. Refresh sessions are left in place; the next refresh of a
// deactivated user fails with common.ErrUserInactive.
func (s *AdminService) SetUserStatus(ctx context.Context, actorID, userID uuid.UUID, active bool) (*UserSummary, error) {
	if actorID == userID && !active {
		return nil, common.ErrSelfModification
	}

	var summary *UserSummary
	err := s.enforcer.Run(ctx, tenant.Scope{}, func(ctx context.Context, db dbx.DBTX) error {
		user, err := s.repomanager.Users(db).SetActive(ctx, userID, active)
		if err != nil {
			return err
		}
		summaries, err := s.summarize(ctx, db, *user)
		if err != nil {
			return err
		}
		summary = &summaries[0]
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user status changed", "actor_id", actorID, "user_id", userID, "active", active)
	return summary, nil
}

// PromoteAdmin makes email an administrator. A new account is created with
// password when none exists; an existing user is upgraded and keeps their
// password.
func (s *AdminService) PromoteAdmin(ctx context.Context, email, password string) (*models.User, PromoteOutcome, error) {
	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, 0, err
	}

	var (
		user    *models.User
		outcome PromoteOutcome
	)
	err := s.enforcer.Run(ctx, tenant.Scope{}, func(ctx context.Context, db dbx.DBTX) error {
		repo := s.repomanager.Users(db)

		existing, err := repo.FindByEmail(ctx, email)
		switch {
		case err == nil && existing.IsAdmin():
			user, outcome = existing, AdminExists
			return nil
		case err == nil:
			user, err = repo.SetRole(ctx, existing.ID, models.RoleAdmin)
			outcome = AdminUpgraded
			return err
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}

		if err := ValidatePassword(password); err != nil {
			return err
		}
		digest, err := s.hasher.Hash(password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		user, err = repo.Create(ctx, email, digest, models.RoleAdmin)
		outcome = AdminCreated
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	s.log.Info(ctx, "admin provisioned", "user_id", user.ID, "outcome", outcome.String())
	return user, outcome, nil
}
