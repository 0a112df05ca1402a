package tenant

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/dbx"
	"github.com/dmitrijs2005/taskmanager/internal/logging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bindRe = regexp.QuoteMeta(bindQuery)

func newEnforcer(t *testing.T, timeout time.Duration) (*PostgresEnforcer, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresEnforcer(db, timeout, logging.Nop()), mock, db
}

func TestPostgresEnforcer_Run_BindsAndCommits(t *testing.T) {
	e, mock, _ := newEnforcer(t, time.Second)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(bindRe).WithArgs(userID.String(), "").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM tasks`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := e.Run(context.Background(), ForUser(userID), func(ctx context.Context, db dbx.DBTX) error {
		assert.Equal(t, userID, FromContext(ctx).UserID)
		_, err := db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, uuid.New())
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnforcer_Run_ZeroScopeBindsNilUser(t *testing.T) {
	e, mock, _ := newEnforcer(t, time.Second)

	mock.ExpectBegin()
	mock.ExpectExec(bindRe).WithArgs(uuid.Nil.String(), "").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, e.Run(context.Background(), Scope{}, func(ctx context.Context, db dbx.DBTX) error { return nil }))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnforcer_Run_RollsBackOnError(t *testing.T) {
	e, mock, _ := newEnforcer(t, time.Second)

	mock.ExpectBegin()
	mock.ExpectExec(bindRe).WithArgs(uuid.Nil.String(), "digest").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := e.Run(context.Background(), ForToken("digest"), func(ctx context.Context, db dbx.DBTX) error {
		return common.ErrInvalidOrExpired
	})
	require.ErrorIs(t, err, common.ErrInvalidOrExpired)
	assert.NotErrorIs(t, err, common.ErrServiceUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnforcer_Run_RollsBackOnPanic(t *testing.T) {
	e, mock, _ := newEnforcer(t, time.Second)

	mock.ExpectBegin()
	mock.ExpectExec(bindRe).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = e.Run(context.Background(), ForUser(uuid.New()), func(ctx context.Context, db dbx.DBTX) error {
			panic("boom")
		})
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnforcer_Run_BindFailure(t *testing.T) {
	e, mock, _ := newEnforcer(t, time.Second)

	mock.ExpectBegin()
	mock.ExpectExec(bindRe).WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	called := false
	err := e.Run(context.Background(), ForUser(uuid.New()), func(ctx context.Context, db dbx.DBTX) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bind tenant scope")
	assert.False(t, called, "work must not run without a binding")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnforcer_Run_TimeoutIsServiceUnavailable(t *testing.T) {
	e, mock, _ := newEnforcer(t, 20*time.Millisecond)

	mock.ExpectBegin()
	mock.ExpectExec(bindRe).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := e.Run(context.Background(), ForUser(uuid.New()), func(ctx context.Context, db dbx.DBTX) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, common.ErrServiceUnavailable)
}

func TestPostgresEnforcer_Run_CancelledCallerIsServiceUnavailable(t *testing.T) {
	e, mock, _ := newEnforcer(t, time.Second)

	ctx, cancel := context.WithCancel(context.Background())

	mock.ExpectBegin()
	mock.ExpectExec(bindRe).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := e.Run(ctx, ForUser(uuid.New()), func(ctx context.Context, db dbx.DBTX) error {
		cancel()
		return ctx.Err()
	})
	require.ErrorIs(t, err, common.ErrServiceUnavailable)
	assert.NotErrorIs(t, err, context.Canceled, "the raw context error must not leak")
}

func TestPostgresEnforcer_Rebind(t *testing.T) {
	e, mock, db := newEnforcer(t, time.Second)
	owner := uuid.New()

	mock.ExpectExec(bindRe).WithArgs(owner.String(), "digest").WillReturnResult(sqlmock.NewResult(0, 1))

	ctx, err := e.Rebind(context.Background(), db, Scope{UserID: owner, TokenDigest: "digest"})
	require.NoError(t, err)
	assert.Equal(t, owner, FromContext(ctx).UserID)
	assert.Equal(t, "digest", FromContext(ctx).TokenDigest)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryEnforcer(t *testing.T) {
	e := NewMemoryEnforcer()
	userID := uuid.New()

	err := e.Run(context.Background(), ForUser(userID), func(ctx context.Context, db dbx.DBTX) error {
		assert.Nil(t, db)
		assert.Equal(t, userID, FromContext(ctx).UserID)

		ctx, err := e.Rebind(ctx, db, ForToken("d"))
		require.NoError(t, err)
		assert.Equal(t, ForToken("d"), FromContext(ctx))
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = e.Run(ctx, ForUser(userID), func(ctx context.Context, db dbx.DBTX) error {
		t.Fatal("must not run on a cancelled context")
		return nil
	})
	require.ErrorIs(t, err, common.ErrServiceUnavailable)
}
