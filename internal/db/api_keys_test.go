package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAPIKey(t *testing.T) {
	db, mock := newMockDB(t)
	userID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO api_keys`).
		WithArgs(pgxmock.AnyArg(), userID, "a1b2c3d4", "hash", "ci").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))

	k, err := db.CreateAPIKey(context.Background(), userID, "a1b2c3d4", "hash", "ci")
	require.NoError(t, err)
	assert.Equal(t, "a1b2c3d4", k.Prefix)
	assert.True(t, k.Active())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAPIKey_DuplicatePrefix(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`INSERT INTO api_keys`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := db.CreateAPIKey(context.Background(), uuid.New(), "dup", "hash", "")
	assert.ErrorIs(t, err, ErrDuplicatePrefix)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAPIKeyByPrefix(t *testing.T) {
	db, mock := newMockDB(t)
	id, userID := uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectQuery(`FROM api_keys WHERE prefix`).
		WithArgs("a1b2c3d4").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "prefix", "key_hash", "name", "created_at", "last_used_at", "revoked_at"}).
			AddRow(id, userID, "a1b2c3d4", "hash", "ci", now, (*time.Time)(nil), (*time.Time)(nil)))

	k, err := db.GetAPIKeyByPrefix(context.Background(), "a1b2c3d4")
	require.NoError(t, err)
	assert.Equal(t, userID, k.UserID)
	assert.Nil(t, k.LastUsedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAPIKeyByPrefix_NotFound(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`FROM api_keys WHERE prefix`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "prefix", "key_hash", "name", "created_at", "last_used_at", "revoked_at"}))

	_, err := db.GetAPIKeyByPrefix(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrAPIKeyNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeAPIKey(t *testing.T) {
	db, mock := newMockDB(t)
	userID := uuid.New()

	mock.ExpectExec(`UPDATE api_keys SET revoked_at`).
		WithArgs("a1b2c3d4", userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE api_keys SET revoked_at`).
		WithArgs("a1b2c3d4", userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, db.RevokeAPIKey(context.Background(), userID, "a1b2c3d4"))
	assert.ErrorIs(t, db.RevokeAPIKey(context.Background(), userID, "a1b2c3d4"), ErrAPIKeyNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTouchAPIKey(t *testing.T) {
	db, mock := newMockDB(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE api_keys SET last_used_at`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, db.TouchAPIKey(context.Background(), id))
	require.NoError(t, mock.ExpectationsWereMet())
}
