// Package services contains the server-side business logic: the auth
// orchestrator, the refresh token ledger, and the tenant-scoped task and
// admin services built on them.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/dbx"
	"github.com/dmitrijs2005/taskmanager/internal/logging"
	"github.com/dmitrijs2005/taskmanager/internal/server/auth"
	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/dmitrijs2005/taskmanager/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskmanager/internal/server/tenant"
	"github.com/google/uuid"
)

// PasswordHasher is implemented by *auth.PasswordHasher.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) (bool, error)
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         *models.User
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	UserID       uuid.UUID
}

// AuthService orchestrates registration, login, refresh and logout.
type AuthService struct {
	enforcer    tenant.Enforcer
	repomanager repomanager.RepositoryManager
	hasher      PasswordHasher
	codec       *auth.Codec
	ledger      *Ledger
	now         func() time.Time
	log         logging.Logger

	dummyOnce   sync.Once
	dummyDigest string
}

func NewAuthService(enforcer tenant.Enforcer, m repomanager.RepositoryManager, hasher PasswordHasher, codec *auth.Codec, ledger *Ledger, log logging.Logger) *AuthService {
	return &AuthService{
		enforcer:    enforcer,
		repomanager: m,
		hasher:      hasher,
		codec:       codec,
		ledger:      ledger,
		now:         time.Now,
		log:         log.With("module", "auth"),
	}
}

// Register creates a user account and signs it in.
func (s *AuthService) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var user *models.User
	err = s.enforcer.Run(ctx, tenant.Scope{}, func(ctx context.Context, db dbx.DBTX) error {
		repo := s.repomanager.Users(db)

		var err error
		user, err = repo.Create(ctx, email, digest, models.RoleUser)
		if err != nil {
			return err
		}

		at := s.now().UTC()
		if err := repo.RecordLogin(ctx, user.ID, at); err != nil {
			return err
		}
		user.LastLoginAt = &at
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return s.signIn(ctx, user)
}

// Login verifies credentials. An unknown email and a wrong password both
// return common.ErrInvalidCredentials after the same amount of hashing work.
// Deactivation is reported only to callers who know the password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = NormalizeEmail(email)

	user, err := s.findUser(ctx, func(ctx context.Context, db dbx.DBTX) (*models.User, error) {
		return s.repomanager.Users(db).FindByEmail(ctx, email)
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.burnVerify(password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.log.Error(ctx, "stored password hash unreadable", "user_id", user.ID, "error", err)
		return nil, common.ErrInvalidCredentials
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, common.ErrAccountDeactivated
	}

	at := s.now().UTC()
	err = s.enforcer.Run(ctx, tenant.ForUser(user.ID), func(ctx context.Context, db dbx.DBTX) error {
		return s.repomanager.Users(db).RecordLogin(ctx, user.ID, at)
	})
	if err != nil {
		return nil, err
	}
	user.LastLoginAt = &at

	return s.signIn(ctx, user)
}

// Refresh rotates raw and mints a new access token. The owner must still
// exist and be active; otherwise common.ErrUserInactive is returned and the
// presented token stays revoked.
func (s *AuthService) Refresh(ctx context.Context, raw string) (*TokenPair, error) {
	newRaw, userID, err := s.ledger.Rotate(ctx, raw)
	if err != nil {
		return nil, err
	}

	user, err := s.findUser(ctx, func(ctx context.Context, db dbx.DBTX) (*models.User, error) {
		return s.repomanager.Users(db).FindByID(ctx, userID)
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserInactive
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, common.ErrUserInactive
	}

	access, err := s.accessToken(user)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: newRaw, UserID: user.ID}, nil
}

// Logout revokes raw. Missing, unknown or already revoked tokens are not
// an error.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	return s.ledger.Revoke(ctx, raw)
}

// LogoutAll revokes every refresh session of userID.
func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	_, err := s.ledger.RevokeAll(ctx, userID)
	return err
}

// Me returns the profile of an authenticated caller.
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.findUser(ctx, func(ctx context.Context, db dbx.DBTX) (*models.User, error) {
		return s.repomanager.Users(db).FindByID(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, common.ErrAccountDeactivated
	}
	return user, nil
}

// Sessions lists the active refresh sessions of userID.
func (s *AuthService) Sessions(ctx context.Context, userID uuid.UUID) ([]models.RefreshToken, error) {
	return s.ledger.ListActive(ctx, userID)
}

func (s *AuthService) findUser(ctx context.Context, fn func(ctx context.Context, db dbx.DBTX) (*models.User, error)) (*models.User, error) {
	var user *models.User
	err := s.enforcer.Run(ctx, tenant.Scope{}, func(ctx context.Context, db dbx.DBTX) error {
		var err error
		user, err = fn(ctx, db)
		return err
	})
	return user, err
}

func (s *AuthService) signIn(ctx context.Context, user *models.User) (*AuthResult, error) {
	access, err := s.accessToken(user)
	if err != nil {
		return nil, err
	}

	refresh, err := s.ledger.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &AuthResult{AccessToken: access, RefreshToken: refresh, User: user}, nil
}

func (s *AuthService) accessToken(user *models.User) (string, error) {
	access, err := s.codec.Encode(auth.Claims{UserID: user.ID, Email: user.Email, Role: user.Role}, 0)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return access, nil
}

// burnVerify spends the same Argon2 work as a real verification so unknown
// emails cannot be told apart by response time.
func (s *AuthService) burnVerify(password string) {
	s.dummyOnce.Do(func() {
		d, err := s.hasher.Hash("timing-equalization-placeholder")
		if err == nil {
			s.dummyDigest = d
		}
	})
	if s.dummyDigest != "" {
		_, _ = s.hasher.Verify(password, s.dummyDigest)
	}
}
