package llm

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/jonathan/keyword-miner/internal/resilience"
)

// CallObserver is told the outcome of every provider call.
type CallObserver func(operation string, err error)

// ThrottledClient paces calls through a token bucket and retries transient
// failures. It is safe for concurrent use.
type ThrottledClient struct {
	inner    Client
	limiter  *rate.Limiter
	policy   resilience.Policy
	observer CallObserver
}

// NewThrottledClient wraps inner. A nil limiter disables pacing.
func NewThrottledClient(inner Client, limiter *rate.Limiter, policy resilience.Policy, observer CallObserver) *ThrottledClient {
	return &ThrottledClient{
		inner:    inner,
		limiter:  limiter,
		policy:   policy.Logged("llm", "generate"),
		observer: observer,
	}
}

func (c *ThrottledClient) call(ctx context.Context, op string, fn func(ctx context.Context) (string, error)) (string, error) {
	out, err := resilience.DoVal(ctx, c.policy, func(ctx context.Context) (string, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", eris.Wrap(err, "llm: rate limit wait")
			}
		}
		return fn(ctx)
	})
	if c.observer != nil {
		c.observer(op, err)
	}
	return out, err
}

// GenerateContent implements Client.
func (c *ThrottledClient) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return c.call(ctx, "generate_content", func(ctx context.Context) (string, error) {
		return c.inner.GenerateContent(ctx, prompt, tier)
	})
}

// GenerateJSON implements Client.
func (c *ThrottledClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return c.call(ctx, "generate_json", func(ctx context.Context) (string, error) {
		return c.inner.GenerateJSON(ctx, prompt, tier)
	})
}

// GetModel implements Client.
func (c *ThrottledClient) GetModel(tier ModelTier) string {
	return c.inner.GetModel(tier)
}

// Close implements Client.
func (c *ThrottledClient) Close() error {
	return c.inner.Close()
}
