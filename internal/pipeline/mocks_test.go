package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/keyword-miner/internal/enrichment"
	"github.com/jonathan/keyword-miner/internal/ledger"
	"github.com/jonathan/keyword-miner/internal/llm"
	"github.com/jonathan/keyword-miner/internal/serp"
	"github.com/jonathan/keyword-miner/internal/types"
)

// MockLLM is a mock implementation of llm.Client for testing
type MockLLM struct {
	GenerateContentFunc func(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
	GenerateJSONFunc    func(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)

	mu      sync.Mutex
	prompts []string
}

func (m *MockLLM) record(prompt string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
}

func (m *MockLLM) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

func (m *MockLLM) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	m.record(prompt)
	if m.GenerateContentFunc != nil {
		return m.GenerateContentFunc(ctx, prompt, tier)
	}
	return "", nil
}

func (m *MockLLM) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	m.record(prompt)
	if m.GenerateJSONFunc != nil {
		return m.GenerateJSONFunc(ctx, prompt, tier)
	}
	return "{}", nil
}

func (m *MockLLM) GetModel(tier llm.ModelTier) string { return "mock-" + string(tier) }
func (m *MockLLM) Close() error                       { return nil }

// MockLedger is a mock implementation of Ledger for testing
type MockLedger struct {
	RequireFunc func(ctx context.Context, accountID uuid.UUID, cost int) (*ledger.Balance, error)
	DebitFunc   func(ctx context.Context, req ledger.DebitRequest) (*ledger.Balance, error)

	Required []int
	Debits   []ledger.DebitRequest
}

func (m *MockLedger) Require(ctx context.Context, accountID uuid.UUID, cost int) (*ledger.Balance, error) {
	m.Required = append(m.Required, cost)
	if m.RequireFunc != nil {
		return m.RequireFunc(ctx, accountID, cost)
	}
	return &ledger.Balance{Total: 1000, Remaining: 1000}, nil
}

func (m *MockLedger) Debit(ctx context.Context, req ledger.DebitRequest) (*ledger.Balance, error) {
	m.Debits = append(m.Debits, req)
	if m.DebitFunc != nil {
		return m.DebitFunc(ctx, req)
	}
	return &ledger.Balance{Total: 1000, Used: req.Amount, Remaining: 1000 - req.Amount}, nil
}

// MockEnrichment is a mock implementation of enrichment.Client for testing
type MockEnrichment struct {
	LookupFunc func(ctx context.Context, keywords []string, region string) ([]enrichment.Result, error)
}

func (m *MockEnrichment) Lookup(ctx context.Context, keywords []string, region string) ([]enrichment.Result, error) {
	if m.LookupFunc != nil {
		return m.LookupFunc(ctx, keywords, region)
	}
	return []enrichment.Result{}, nil
}

// MockSearcher is a mock implementation of serp.Searcher for testing
type MockSearcher struct {
	SearchFunc func(ctx context.Context, keyword, lang string, n int) ([]serp.Result, error)

	mu    sync.Mutex
	Calls []string
}

func (m *MockSearcher) Search(ctx context.Context, keyword, lang string, n int) ([]serp.Result, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, keyword)
	m.mu.Unlock()
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, keyword, lang, n)
	}
	return []serp.Result{{Title: "Result for " + keyword, URL: "https://example.com/" + keyword}}, nil
}

// MockRecorder captures metrics calls.
type MockRecorder struct {
	mu       sync.Mutex
	Outcomes []string
	Debited  int
	Degraded []string
}

func (m *MockRecorder) RunFinished(_ types.Mode, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Outcomes = append(m.Outcomes, outcome)
}

func (m *MockRecorder) CreditsDebited(_ types.Mode, amount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Debited += amount
}

func (m *MockRecorder) StageDegraded(_ types.Mode, stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Degraded = append(m.Degraded, stage)
}

var testAccount = uuid.MustParse("5b1f7c2e-8a1d-4c55-9a3e-2f6d0b9e4a11")

func newTestRouter(t *testing.T, deps Deps) *Router {
	t.Helper()
	if deps.Ledger == nil {
		deps.Ledger = &MockLedger{}
	}
	return NewRouter(deps)
}

// listedKeywords returns the keywords of a describeKeywords block in a prompt.
func listedKeywords(prompt string) []string {
	var out []string
	for _, line := range strings.Split(prompt, "\n") {
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		kw := strings.TrimPrefix(line, "- ")
		if i := strings.Index(kw, " ("); i >= 0 {
			kw = kw[:i]
		}
		out = append(out, kw)
	}
	return out
}

func isAnalysisPrompt(prompt string) bool {
	return strings.Contains(prompt, "ranking probability (High, Medium or Low)")
}

func degradedStages(d []Degradation) []string {
	out := make([]string, len(d))
	for i, x := range d {
		out[i] = x.Stage
	}
	return out
}

func intPtr(v int) *int { return &v }
