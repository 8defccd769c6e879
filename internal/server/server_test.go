package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/keyword-miner/internal/config"
	"github.com/jonathan/keyword-miner/internal/db"
	"github.com/jonathan/keyword-miner/internal/ledger"
	"github.com/jonathan/keyword-miner/internal/pipeline"
	"github.com/jonathan/keyword-miner/internal/server/middleware"
	"github.com/jonathan/keyword-miner/internal/server/ratelimit"
	"github.com/jonathan/keyword-miner/internal/types"
)

// MockRunner is a mock implementation of KeywordRunner for testing
type MockRunner struct {
	HandleFunc func(ctx context.Context, accountID uuid.UUID, body []byte) (*pipeline.Response, error)
}

func (m *MockRunner) Handle(ctx context.Context, accountID uuid.UUID, body []byte) (*pipeline.Response, error) {
	if m.HandleFunc != nil {
		return m.HandleFunc(ctx, accountID, body)
	}
	return &pipeline.Response{Success: true}, nil
}

// MockCredits is a mock implementation of BalanceReader and TransactionLister for testing
type MockCredits struct {
	CheckBalanceFunc     func(ctx context.Context, accountID uuid.UUID) (*ledger.Balance, error)
	ListTransactionsFunc func(ctx context.Context, userID uuid.UUID, limit int) ([]db.CreditTransaction, error)
}

func (m *MockCredits) CheckBalance(ctx context.Context, accountID uuid.UUID) (*ledger.Balance, error) {
	if m.CheckBalanceFunc != nil {
		return m.CheckBalanceFunc(ctx, accountID)
	}
	return &ledger.Balance{}, nil
}

func (m *MockCredits) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]db.CreditTransaction, error) {
	if m.ListTransactionsFunc != nil {
		return m.ListTransactionsFunc(ctx, userID, limit)
	}
	return nil, nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

var testAccount = uuid.MustParse("9a7c1e52-3b1d-4f0e-8d6a-1c2b3d4e5f60")

type fixture struct {
	server *Server
	token  string
}

func newFixture(t *testing.T, deps Deps) fixture {
	t.Helper()
	jwtService := NewJWTService(&config.JWTConfig{Secret: testSecret, ExpirationHours: 1})
	token, err := jwtService.GenerateToken(testAccount)
	require.NoError(t, err)

	deps.Tokens = jwtService.AsTokenValidator()
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.NewRegistry()
	}
	if deps.Balances == nil {
		credits := &MockCredits{}
		deps.Balances, deps.Transactions = credits, credits
	}
	return fixture{server: New(config.ServerConfig{Port: 0}, deps), token: token}
}

func (f fixture) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t, Deps{Keywords: &MockRunner{}})
	w := f.do(t, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	f = newFixture(t, Deps{Keywords: &MockRunner{}, Health: pingFunc(func(context.Context) error { return errors.New("down") })})
	w = f.do(t, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestKeywords_PassesBodyAndAccount(t *testing.T) {
	var (
		gotAccount uuid.UUID
		gotBody    string
	)
	runner := &MockRunner{HandleFunc: func(_ context.Context, accountID uuid.UUID, body []byte) (*pipeline.Response, error) {
		gotAccount, gotBody = accountID, string(body)
		return &pipeline.Response{Success: true, Mode: types.ModeDeepDive, Data: map[string]string{"keyword": "x"}, Warning: "Credits could not be deducted: db down"}, nil
	}}
	f := newFixture(t, Deps{Keywords: runner})

	w := f.do(t, http.MethodPost, "/v1/keywords", `{"mode":"deep_dive"}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testAccount, gotAccount)
	assert.Equal(t, `{"mode":"deep_dive"}`, gotBody)

	out := decode(t, w)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "deep_dive", out["mode"])
	assert.Contains(t, out["warning"], "Credits could not be deducted")
}

func TestKeywords_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		check  func(t *testing.T, out map[string]any)
	}{
		{
			name:   "invalid input",
			err:    &pipeline.InvalidInputError{Fields: []string{"seedKeyword"}},
			status: http.StatusBadRequest,
			check: func(t *testing.T, out map[string]any) {
				assert.Equal(t, []any{"seedKeyword"}, out["fields"])
			},
		},
		{
			name:   "insufficient credits",
			err:    &ledger.InsufficientCreditsError{Required: 30, Remaining: 5},
			status: http.StatusPaymentRequired,
			check: func(t *testing.T, out map[string]any) {
				assert.Equal(t, 30.0, out["required"])
				assert.Equal(t, 5.0, out["remaining"])
			},
		},
		{
			name:   "generation failed",
			err:    &pipeline.ExternalServiceError{Stage: "mining-gen", Err: errors.New("quota")},
			status: http.StatusInternalServerError,
			check: func(t *testing.T, out map[string]any) {
				assert.Equal(t, "external service failed: mining-gen", out["error"])
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &MockRunner{HandleFunc: func(context.Context, uuid.UUID, []byte) (*pipeline.Response, error) {
				return nil, tt.err
			}}
			f := newFixture(t, Deps{Keywords: runner})
			w := f.do(t, http.MethodPost, "/v1/keywords", `{}`, true)
			assert.Equal(t, tt.status, w.Code)
			out := decode(t, w)
			assert.Equal(t, false, out["success"])
			tt.check(t, out)
		})
	}
}

func TestKeywords_RequiresIdentity(t *testing.T) {
	called := false
	runner := &MockRunner{HandleFunc: func(context.Context, uuid.UUID, []byte) (*pipeline.Response, error) {
		called = true
		return nil, nil
	}}
	f := newFixture(t, Deps{Keywords: runner})

	w := f.do(t, http.MethodPost, "/v1/keywords", `{}`, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, called)
}

func TestKeywords_APIKeyIdentity(t *testing.T) {
	key, stored, cfg := newKeyFixture(t)
	store := &MockAPIKeyStore{GetAPIKeyByPrefixFunc: func(context.Context, string) (*db.APIKey, error) { return stored, nil }}

	var got uuid.UUID
	runner := &MockRunner{HandleFunc: func(_ context.Context, accountID uuid.UUID, _ []byte) (*pipeline.Response, error) {
		got = accountID
		return &pipeline.Response{Success: true}, nil
	}}
	f := newFixture(t, Deps{Keywords: runner, Keys: NewAPIKeyValidator(store, cfg)})

	req := httptest.NewRequest(http.MethodPost, "/v1/keywords", strings.NewReader(`{}`))
	req.Header.Set(middleware.APIKeyHeader, key)
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, stored.UserID, got)
}

func TestKeywords_MethodNotAllowed(t *testing.T) {
	f := newFixture(t, Deps{Keywords: &MockRunner{}})
	w := f.do(t, http.MethodGet, "/v1/keywords", "", true)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestKeywords_BodyTooLarge(t *testing.T) {
	f := newFixture(t, Deps{Keywords: &MockRunner{}})
	w := f.do(t, http.MethodPost, "/v1/keywords", `{"keywords":"`+strings.Repeat("a", maxBodyBytes)+`"}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []any{"body"}, decode(t, w)["fields"])
}

func TestCredits(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	var gotLimit int
	credits := &MockCredits{
		CheckBalanceFunc: func(_ context.Context, id uuid.UUID) (*ledger.Balance, error) {
			assert.Equal(t, testAccount, id)
			return &ledger.Balance{Total: 100, Used: 30, Remaining: 70}, nil
		},
		ListTransactionsFunc: func(_ context.Context, _ uuid.UUID, limit int) ([]db.CreditTransaction, error) {
			gotLimit = limit
			return []db.CreditTransaction{{ID: uuid.New(), UserID: testAccount, Delta: -30, Description: `Deep dive for "x"`, ModeID: "deep_dive", CreatedAt: now}}, nil
		},
	}
	f := newFixture(t, Deps{Keywords: &MockRunner{}, Balances: credits, Transactions: credits})

	w := f.do(t, http.MethodGet, "/v1/credits?limit=500", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, maxTransactionLimit, gotLimit)

	var resp CreditsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 70, resp.Balance.Remaining)
	require.Len(t, resp.Transactions, 1)
	assert.Equal(t, -30, resp.Transactions[0].Delta)
}

func TestCredits_NotProvisionedReadsAsEmpty(t *testing.T) {
	credits := &MockCredits{CheckBalanceFunc: func(context.Context, uuid.UUID) (*ledger.Balance, error) {
		return nil, ledger.ErrAccountNotProvisioned
	}}
	f := newFixture(t, Deps{Keywords: &MockRunner{}, Balances: credits, Transactions: credits})

	w := f.do(t, http.MethodGet, "/v1/credits", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success": true, "balance": {"total": 0, "used": 0, "remaining": 0}, "transactions": []}`, w.Body.String())
}

func TestCredits_BadLimit(t *testing.T) {
	f := newFixture(t, Deps{Keywords: &MockRunner{}})
	w := f.do(t, http.MethodGet, "/v1/credits?limit=zero", "", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.NewLimiter(&ratelimit.Config{
		Enabled:         true,
		DefaultLimit:    100,
		DefaultWindow:   time.Minute,
		EndpointConfigs: ratelimit.DefaultEndpointConfigs(1, 1),
	})
	defer limiter.Stop()
	f := newFixture(t, Deps{Keywords: &MockRunner{}, Limiter: limiter})

	w := f.do(t, http.MethodPost, "/v1/keywords", `{}`, true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = f.do(t, http.MethodPost, "/v1/keywords", `{}`, true)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "rate limit exceeded", decode(t, w)["error"])

	w = f.do(t, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, Deps{Keywords: &MockRunner{}})

	req := httptest.NewRequest(http.MethodOptions, "/v1/keywords", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "X-API-Key")
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, strings.ToLower(w.Header().Get("Access-Control-Allow-Headers")), "x-api-key")
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "keyword_miner_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	f := newFixture(t, Deps{Keywords: &MockRunner{}, Gatherer: reg})
	w := f.do(t, http.MethodGet, "/metrics", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "keyword_miner_test_total 1")
}
