package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{"id", "user_id", "token_hash", "expires_at", "created_at", "revoked_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

var now = time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	userID, id := uuid.New(), uuid.New()

	q := `(?s)^INSERT\s+INTO\s+refresh_tokens\s*\(user_id,\s*token_hash,\s*expires_at,\s*created_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*RETURNING\s+id$`
	mock.ExpectQuery(q).
		WithArgs(userID, "digest", now.Add(time.Hour), now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id.String()))

	tok := &models.RefreshToken{UserID: userID, TokenHash: "digest", ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	require.NoError(t, repo.Create(context.Background(), tok))
	assert.Equal(t, id, tok.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Errors(t *testing.T) {
	t.Run("row security", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(`INSERT\s+INTO\s+refresh_tokens`).WillReturnError(&pgconn.PgError{Code: "42501"})

		err := repo.Create(context.Background(), &models.RefreshToken{UserID: uuid.New()})
		require.ErrorIs(t, err, common.ErrorUnauthorized)
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(`INSERT\s+INTO\s+refresh_tokens`).WillReturnError(errors.New("db down"))

		err := repo.Create(context.Background(), &models.RefreshToken{UserID: uuid.New()})
		require.Error(t, err)
		assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
	})
}

func TestFindByHash(t *testing.T) {
	q := `(?s)^SELECT\s+id,\s*user_id,\s*token_hash,\s*expires_at,\s*created_at,\s*revoked_at\s+FROM\s+refresh_tokens\s+WHERE\s+token_hash\s*=\s*\$1$`

	t.Run("found", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		id, userID := uuid.New(), uuid.New()
		revoked := now.Add(-time.Minute)

		mock.ExpectQuery(q).WithArgs("digest").
			WillReturnRows(sqlmock.NewRows(columns).AddRow(id.String(), userID.String(), "digest", now.Add(time.Hour), now.Add(-time.Hour), revoked))

		got, err := repo.FindByHash(context.Background(), "digest")
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, userID, got.UserID)
		require.NotNil(t, got.RevokedAt)
		assert.Equal(t, revoked, *got.RevokedAt)
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(q).WithArgs("nope").WillReturnError(sql.ErrNoRows)

		_, err := repo.FindByHash(context.Background(), "nope")
		require.ErrorIs(t, err, common.ErrorNotFound)
	})
}

func TestRevokeActive(t *testing.T) {
	q := `(?s)^UPDATE\s+refresh_tokens\s+SET\s+revoked_at\s*=\s*\$2\s+WHERE\s+token_hash\s*=\s*\$1\s+AND\s+revoked_at\s+IS\s+NULL\s+AND\s+expires_at\s*>\s*\$2\s+RETURNING\s+user_id$`

	t.Run("revoked", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		owner := uuid.New()
		mock.ExpectQuery(q).WithArgs("digest", now).
			WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(owner.String()))

		got, err := repo.RevokeActive(context.Background(), "digest", now)
		require.NoError(t, err)
		assert.Equal(t, owner, got)
	})

	t.Run("already revoked or expired", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(q).WithArgs("digest", now).WillReturnError(sql.ErrNoRows)

		got, err := repo.RevokeActive(context.Background(), "digest", now)
		require.ErrorIs(t, err, common.ErrorNotFound)
		assert.Equal(t, uuid.Nil, got)
	})
}

func TestRevokeAllForUser(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	userID := uuid.New()

	mock.ExpectExec(`(?s)^UPDATE\s+refresh_tokens\s+SET\s+revoked_at\s*=\s*\$2\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+revoked_at\s+IS\s+NULL$`).
		WithArgs(userID, now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.RevokeAllForUser(context.Background(), userID, now)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestListActiveByUser(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	userID := uuid.New()
	a, b := uuid.New(), uuid.New()

	mock.ExpectQuery(`(?s)^SELECT.*FROM\s+refresh_tokens\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+revoked_at\s+IS\s+NULL\s+AND\s+expires_at\s*>\s*\$2\s+ORDER\s+BY\s+created_at\s+DESC$`).
		WithArgs(userID, now).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(a.String(), userID.String(), "h1", now.Add(time.Hour), now, nil).
			AddRow(b.String(), userID.String(), "h2", now.Add(time.Hour), now.Add(-time.Minute), nil))

	got, err := repo.ListActiveByUser(context.Background(), userID, now)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a, got[0].ID)
	assert.Nil(t, got[1].RevokedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}
