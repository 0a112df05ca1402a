package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/logging"
	"github.com/dmitrijs2005/taskmanager/internal/server/auth"
	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/dmitrijs2005/taskmanager/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskmanager/internal/server/tenant"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminService_SetUserStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin, _, err := env.admin.PromoteAdmin(ctx, "root@example.com", "password123")
	require.NoError(t, err)
	user, err := env.auth.Register(ctx, "member@example.com", "password123")
	require.NoError(t, err)

	_, err = env.admin.SetUserStatus(ctx, admin.ID, admin.ID, false)
	require.ErrorIs(t, err, common.ErrSelfModification)

	got, err := env.admin.SetUserStatus(ctx, admin.ID, user.User.ID, false)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	got, err = env.admin.SetUserStatus(ctx, admin.ID, user.User.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	_, err = env.auth.Refresh(ctx, user.RefreshToken)
	require.NoError(t, err, "reactivation restores refresh")
}

func TestAdminService_ListAndGet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		_, err := env.auth.Register(ctx, email, "password123")
		require.NoError(t, err)
	}

	page, err := env.admin.ListUsers(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Users, 2)

	u, err := env.admin.GetUser(ctx, page.Users[0].ID)
	require.NoError(t, err)
	assert.Equal(t, page.Users[0].Email, u.Email)

	_, err = env.admin.ListUsers(ctx, 0, -5)
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestAdminService_PromoteAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, outcome, err := env.admin.PromoteAdmin(ctx, "Boss@Example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, AdminCreated, outcome)
	assert.Equal(t, models.RoleAdmin, u.Role)
	assert.Equal(t, "boss@example.com", u.Email)

	_, outcome, err = env.admin.PromoteAdmin(ctx, "boss@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, AdminExists, outcome)

	reg, err := env.auth.Register(ctx, "staff@example.com", "password123")
	require.NoError(t, err)
	u, outcome, err = env.admin.PromoteAdmin(ctx, "staff@example.com", "ignored")
	require.NoError(t, err)
	assert.Equal(t, AdminUpgraded, outcome)
	assert.Equal(t, reg.User.ID, u.ID)

	_, err = env.auth.Login(ctx, "staff@example.com", "password123")
	require.NoError(t, err, "upgrade keeps the password")

	_, _, err = env.admin.PromoteAdmin(ctx, "new@example.com", "short")
	require.ErrorIs(t, err, common.ErrWeakCredential)
	_, _, err = env.admin.PromoteAdmin(ctx, "not-an-email", "password123")
	require.ErrorIs(t, err, common.ErrInvalidEmail)
}

func TestAdminService_TaskCounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin, _, err := env.admin.PromoteAdmin(ctx, "root@example.com", "password123")
	require.NoError(t, err)
	busy := registerScoped(t, env, "busy@example.com")
	for _, title := range []string{"one", "two", "three"} {
		_, err := env.tasks.Create(busy, title, "")
		require.NoError(t, err)
	}
	busyID := tenant.FromContext(busy).UserID

	page, err := env.admin.ListUsers(ctx, 10, 0)
	require.NoError(t, err)
	counts := map[uuid.UUID]int{}
	for _, u := range page.Users {
		counts[u.ID] = u.TaskCount
	}
	assert.Equal(t, map[uuid.UUID]int{admin.ID: 0, busyID: 3}, counts)

	got, err := env.admin.GetUser(ctx, busyID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.TaskCount)

	updated, err := env.admin.SetUserStatus(ctx, admin.ID, busyID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, 3, updated.TaskCount)
}

func TestAdminService_Postgres_GetUserCountsUnderZeroScope(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	enforcer := tenant.NewPostgresEnforcer(db, time.Second, logging.Nop())
	svc := NewAdminService(enforcer, repomanager.NewPostgresRepositoryManager(), auth.NewPasswordHasher(testArgon), logging.Nop())

	id := uuid.New()
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(setConfigRe).WithArgs(uuid.Nil.String(), "").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE id = $1`)).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "role", "is_active", "created_at", "last_login_at"}).
			AddRow(id.String(), "busy@example.com", "hash", "user", true, created, nil))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, app_task_count(id) FROM users WHERE id IN ($1)`)).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "app_task_count"}).AddRow(id.String(), int64(7)))
	mock.ExpectCommit()

	got, err := svc.GetUser(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "busy@example.com", got.Email)
	assert.Equal(t, 7, got.TaskCount)
	require.NoError(t, mock.ExpectationsWereMet())
}
