// Package middleware provides HTTP middleware for authentication.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// accountIDKey is the context key for the authenticated account id.
const accountIDKey ContextKey = "accountID"

// APIKeyHeader carries a kmk_ API key.
const APIKeyHeader = "X-API-Key"

// ErrNoAccount means the request context holds no authenticated account.
var ErrNoAccount = errors.New("account id not found in request context")

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (AccountIDGetter, error)
}

// AccountIDGetter is implemented by token claims.
type AccountIDGetter interface {
	GetAccountID() uuid.UUID
}

// KeyValidator resolves an API key to its owning account.
type KeyValidator interface {
	ValidateKey(ctx context.Context, key string) (uuid.UUID, error)
}

// Authenticate resolves the caller from an X-API-Key header or an
// Authorization bearer token and stores the account id in the request
// context. The API key wins when both are present. Either validator may be
// nil to disable that method.
func Authenticate(tokens TokenValidator, keys KeyValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID, err := resolve(r, tokens, keys)
			if err != nil {
				zap.L().Debug("authentication failed", zap.String("path", r.URL.Path), zap.Error(err))
				unauthorized(w)
				return
			}
			ctx := context.WithValue(r.Context(), accountIDKey, accountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolve(r *http.Request, tokens TokenValidator, keys KeyValidator) (uuid.UUID, error) {
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
		if keys == nil {
			return uuid.Nil, errors.New("api keys are not accepted")
		}
		return keys.ValidateKey(r.Context(), key)
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return uuid.Nil, errors.New("missing credentials")
	}
	if tokens == nil {
		return uuid.Nil, errors.New("bearer tokens are not accepted")
	}

	// Handle case-insensitive "Bearer" prefix
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return uuid.Nil, errors.New("malformed authorization header")
	}

	claims, err := tokens.ValidateToken(parts[1])
	if err != nil {
		return uuid.Nil, err
	}
	id := claims.GetAccountID()
	if id == uuid.Nil {
		return uuid.Nil, errors.New("token has no account id")
	}
	return id, nil
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "unauthorized"})
}

// AccountID extracts the authenticated account id from the request context.
func AccountID(r *http.Request) (uuid.UUID, error) {
	id, ok := r.Context().Value(accountIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrNoAccount
	}
	return id, nil
}

// WithAccountID returns ctx carrying id, for tests and internal callers.
func WithAccountID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, accountIDKey, id)
}
