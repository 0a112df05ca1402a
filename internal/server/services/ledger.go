package services

import (
	"context"
	"errors"
	"fmt"
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

// DefaultRefreshTokenTTL is the refresh token lifetime when none is configured.
const DefaultRefreshTokenTTL = 7 * 24 * time.Hour

// Ledger issues, validates, rotates and revokes refresh tokens. Raw tokens
// leave the ledger exactly once, from Issue or Rotate; only their SHA-256
// digests are stored.
type Ledger struct {
	enforcer    tenant.Enforcer
	repomanager repomanager.RepositoryManager
	ttl         time.Duration
	now         func() time.Time
	log         logging.Logger
}

type LedgerOption func(*Ledger)

// WithLedgerClock replaces time.Now, mainly for tests.
func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(enforcer tenant.Enforcer, m repomanager.RepositoryManager, ttl time.Duration, log logging.Logger, opts ...LedgerOption) *Ledger {
	if ttl <= 0 {
		ttl = DefaultRefreshTokenTTL
	}
	l := &Ledger{
		enforcer:    enforcer,
		repomanager: m,
		ttl:         ttl,
		now:         time.Now,
		log:         log.With("module", "ledger"),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// TTL returns the refresh token lifetime.
func (l *Ledger) TTL() time.Duration {
	return l.ttl
}

// Issue creates a new refresh session for userID and returns the raw token.
func (l *Ledger) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	var raw string
	err := l.enforcer.Run(ctx, tenant.ForUser(userID), func(ctx context.Context, db dbx.DBTX) error {
		var err error
		raw, err = l.insert(ctx, db, userID, l.now().UTC())
		return err
	})
	if err != nil {
		return "", err
	}
	return raw, nil
}

func (l *Ledger) insert(ctx context.Context, db dbx.DBTX, userID uuid.UUID, now time.Time) (string, error) {
	raw, err := auth.GenerateRefreshToken()
	if err != nil {
		return "", err
	}

	token := &models.RefreshToken{
		UserID:    userID,
		TokenHash: auth.HashToken(raw),
		ExpiresAt: now.Add(l.ttl),
		CreatedAt: now,
	}
	if err := l.repomanager.RefreshTokens(db).Create(ctx, token); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return raw, nil
}

// Validate returns the stored row for raw if it is active. Unknown, revoked
// and expired tokens all yield common.ErrInvalidOrExpired.
func (l *Ledger) Validate(ctx context.Context, raw string) (*models.RefreshToken, error) {
	if raw == "" {
		return nil, common.ErrInvalidOrExpired
	}
	hash := auth.HashToken(raw)

	var token *models.RefreshToken
	err := l.enforcer.Run(ctx, tenant.ForToken(hash), func(ctx context.Context, db dbx.DBTX) error {
		var err error
		token, err = l.repomanager.RefreshTokens(db).FindByHash(ctx, hash)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidOrExpired
		}
		return nil, err
	}

	if !token.Active(l.now()) {
		return nil, common.ErrInvalidOrExpired
	}
	return token, nil
}

// Rotate revokes raw and issues its successor in one unit of work. The
// revoke is a compare-and-set on revoked_at, so of two concurrent rotations
// of the same token exactly one succeeds; the other gets
// common.ErrInvalidOrExpired and nothing is issued for it.
func (l *Ledger) Rotate(ctx context.Context, raw string) (string, uuid.UUID, error) {
	if raw == "" {
		return "", uuid.Nil, common.ErrInvalidOrExpired
	}
	hash := auth.HashToken(raw)

	var (
		newRaw string
		owner  uuid.UUID
	)
	err := l.enforcer.Run(ctx, tenant.ForToken(hash), func(ctx context.Context, db dbx.DBTX) error {
		now := l.now().UTC()

		var err error
		owner, err = l.repomanager.RefreshTokens(db).RevokeActive(ctx, hash, now)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidOrExpired
			}
			return err
		}

		ctx, err = l.enforcer.Rebind(ctx, db, tenant.Scope{UserID: owner, TokenDigest: hash})
		if err != nil {
			return err
		}

		newRaw, err = l.insert(ctx, db, owner, now)
		return err
	})
	if err != nil {
		return "", uuid.Nil, err
	}

	l.log.Debug(ctx, "refresh token rotated", "user_id", owner)
	return newRaw, owner, nil
}

// Revoke marks raw revoked if it is still active. Unknown, expired and
// already revoked tokens are a no-op.
func (l *Ledger) Revoke(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	hash := auth.HashToken(raw)

	err := l.enforcer.Run(ctx, tenant.ForToken(hash), func(ctx context.Context, db dbx.DBTX) error {
		_, err := l.repomanager.RefreshTokens(db).RevokeActive(ctx, hash, l.now().UTC())
		return err
	})
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	return nil
}

// RevokeAll revokes every active session of userID.
func (l *Ledger) RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := l.enforcer.Run(ctx, tenant.ForUser(userID), func(ctx context.Context, db dbx.DBTX) error {
		var err error
		n, err = l.repomanager.RefreshTokens(db).RevokeAllForUser(ctx, userID, l.now().UTC())
		return err
	})
	if err != nil {
		return 0, err
	}

	l.log.Info(ctx, "refresh tokens revoked", "user_id", userID, "count", n)
	return n, nil
}

// ListActive returns the active sessions of userID, newest first.
func (l *Ledger) ListActive(ctx context.Context, userID uuid.UUID) ([]models.RefreshToken, error) {
	var tokens []models.RefreshToken
	err := l.enforcer.Run(ctx, tenant.ForUser(userID), func(ctx context.Context, db dbx.DBTX) error {
		var err error
		tokens, err = l.repomanager.RefreshTokens(db).ListActiveByUser(ctx, userID, l.now().UTC())
		return err
	})
	return tokens, err
}
