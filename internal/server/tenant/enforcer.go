package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/dbx"
	"github.com/dmitrijs2005/taskmanager/internal/logging"
)

// Enforcer runs a unit of storage work with a scope bound for its whole
// duration and released on every exit path.
type Enforcer interface {
	// Run executes fn with the scope bound. fn receives the handle it must
	// use for all storage access and a context carrying the scope.
	Run(ctx context.Context, scope Scope, fn func(ctx context.Context, db dbx.DBTX) error) error

	// Rebind replaces the binding inside a running unit, e.g. once a token
	// digest lookup has revealed the owning user.
	Rebind(ctx context.Context, db dbx.DBTX, scope Scope) (context.Context, error)
}

const bindQuery = `SELECT set_config('app.current_user_id', $1, true), set_config('app.current_token_hash', $2, true)`

// PostgresEnforcer binds scopes through transaction-local settings read by
// the row-level security policies. Every Run is one transaction.
type PostgresEnforcer struct {
	db      dbx.Beginner
	timeout time.Duration
	log     logging.Logger
}

func NewPostgresEnforcer(db dbx.Beginner, timeout time.Duration, log logging.Logger) *PostgresEnforcer {
	return &PostgresEnforcer{db: db, timeout: timeout, log: log.With("module", "tenant")}
}

func (e *PostgresEnforcer) Run(ctx context.Context, scope Scope, fn func(ctx context.Context, db dbx.DBTX) error) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	err := dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		ctx, err := e.Rebind(ctx, tx, scope)
		if err != nil {
			return err
		}
		return fn(ctx, tx)
	})

	return e.classify(ctx, err)
}

func (e *PostgresEnforcer) Rebind(ctx context.Context, db dbx.DBTX, scope Scope) (context.Context, error) {
	if _, err := db.ExecContext(ctx, bindQuery, scope.UserID.String(), scope.TokenDigest); err != nil {
		return ctx, fmt.Errorf("bind tenant scope: %w", err)
	}
	return WithScope(ctx, scope), nil
}

func (e *PostgresEnforcer) classify(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, common.ErrServiceUnavailable) {
		return err
	}
	// The caller went away; nothing is wrong with storage.
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		e.log.Debug(ctx, "storage work cancelled", "error", err)
		return fmt.Errorf("%w: %v", common.ErrServiceUnavailable, err)
	}
	if dbx.IsUnavailable(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		e.log.Warn(ctx, "storage unavailable", "error", err)
		return fmt.Errorf("%w: %v", common.ErrServiceUnavailable, err)
	}
	return err
}

// MemoryEnforcer only binds the scope into the context; the in-memory
// repositories apply Scope.Admits themselves.
type MemoryEnforcer struct{}

func NewMemoryEnforcer() *MemoryEnforcer {
	return &MemoryEnforcer{}
}

func (e *MemoryEnforcer) Run(ctx context.Context, scope Scope, fn func(ctx context.Context, db dbx.DBTX) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrServiceUnavailable, err)
	}
	return fn(WithScope(ctx, scope), nil)
}

func (e *MemoryEnforcer) Rebind(ctx context.Context, _ dbx.DBTX, scope Scope) (context.Context, error) {
	return WithScope(ctx, scope), nil
}
