package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
)

const uniqueViolation = "23505"

// CreateAPIKey stores a new key. The caller hashes the secret.
func (db *DB) CreateAPIKey(ctx context.Context, userID uuid.UUID, prefix, keyHash, name string) (*APIKey, error) {
	k := APIKey{
		ID:      uuid.New(),
		UserID:  userID,
		Prefix:  prefix,
		KeyHash: keyHash,
		Name:    name,
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO api_keys (id, user_id, prefix, key_hash, name)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		k.ID, k.UserID, k.Prefix, k.KeyHash, k.Name,
	).Scan(&k.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicatePrefix
		}
		return nil, eris.Wrap(err, "db: create api key")
	}
	return &k, nil
}

// GetAPIKeyByPrefix looks up an active key by its public prefix.
func (db *DB) GetAPIKeyByPrefix(ctx context.Context, prefix string) (*APIKey, error) {
	var k APIKey
	err := db.pool.QueryRow(ctx,
		`SELECT id, user_id, prefix, key_hash, name, created_at, last_used_at, revoked_at
		 FROM api_keys WHERE prefix = $1 AND revoked_at IS NULL`,
		prefix,
	).Scan(&k.ID, &k.UserID, &k.Prefix, &k.KeyHash, &k.Name, &k.CreatedAt, &k.LastUsedAt, &k.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, eris.Wrap(err, "db: get api key")
	}
	return &k, nil
}

// TouchAPIKey records that a key was just used.
func (db *DB) TouchAPIKey(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx, `UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return eris.Wrap(err, "db: touch api key")
	}
	return nil
}

// RevokeAPIKey disables a key owned by userID.
func (db *DB) RevokeAPIKey(ctx context.Context, userID uuid.UUID, prefix string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE api_keys SET revoked_at = NOW()
		 WHERE prefix = $1 AND user_id = $2 AND revoked_at IS NULL`,
		prefix, userID,
	)
	if err != nil {
		return eris.Wrap(err, "db: revoke api key")
	}
	if tag.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}
