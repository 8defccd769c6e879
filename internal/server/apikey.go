package server

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jonathan/keyword-miner/internal/config"
	"github.com/jonathan/keyword-miner/internal/db"
)

const touchTimeout = 5 * time.Second

// APIKeyStore is the persistence API key authentication needs. *db.DB implements it.
type APIKeyStore interface {
	GetAPIKeyByPrefix(ctx context.Context, prefix string) (*db.APIKey, error)
	TouchAPIKey(ctx context.Context, id uuid.UUID) error
}

// APIKeyValidator implements middleware.KeyValidator against stored key hashes.
type APIKeyValidator struct {
	store  APIKeyStore
	config *config.APIKeyConfig
}

// NewAPIKeyValidator creates an APIKeyValidator.
func NewAPIKeyValidator(store APIKeyStore, cfg *config.APIKeyConfig) *APIKeyValidator {
	return &APIKeyValidator{store: store, config: cfg}
}

// ValidateKey looks the key up by prefix and checks the secret. A failed
// last-used update is logged and ignored.
func (v *APIKeyValidator) ValidateKey(ctx context.Context, key string) (uuid.UUID, error) {
	prefix, secret, ok := config.SplitAPIKey(key)
	if !ok {
		return uuid.Nil, eris.New("malformed api key")
	}

	stored, err := v.store.GetAPIKeyByPrefix(ctx, prefix)
	if err != nil {
		return uuid.Nil, err
	}
	if !stored.Active() || !v.config.VerifySecret(secret, stored.KeyHash) {
		return uuid.Nil, eris.New("invalid api key")
	}

	touchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), touchTimeout)
	defer cancel()
	if err := v.store.TouchAPIKey(touchCtx, stored.ID); err != nil {
		zap.L().Warn("failed to touch api key", zap.String("prefix", prefix), zap.Error(err))
	}

	return stored.UserID, nil
}
