package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jonathan/keyword-miner/internal/config"
	"github.com/jonathan/keyword-miner/internal/enrichment"
	"github.com/jonathan/keyword-miner/internal/llm"
	"github.com/jonathan/keyword-miner/internal/metrics"
	"github.com/jonathan/keyword-miner/internal/pipeline"
	"github.com/jonathan/keyword-miner/internal/resilience"
	"github.com/jonathan/keyword-miner/internal/serp"
)

// llmConfig overlays configured model names on the provider defaults.
func llmConfig(c config.LLMConfig) *llm.Config {
	return llm.ConfigFor(c.Provider, c.Models)
}

func retryPolicy(maxRetries int) resilience.Policy {
	p := resilience.DefaultPolicy()
	if maxRetries < 0 {
		return p
	}
	return p.WithAttempts(maxRetries + 1)
}

// newLLM builds the throttled, retrying generative client.
func newLLM(ctx context.Context, cfg *config.Config, rec *metrics.Recorder) (llm.Client, error) {
	inner, err := llm.NewClient(ctx, llmConfig(cfg.LLM), llm.Credentials{
		GeminiAPIKey:    cfg.LLM.GeminiAPIKey,
		AnthropicAPIKey: cfg.LLM.AnthropicAPIKey,
	})
	if err != nil {
		return nil, err
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.Rate.LLMPerSecond), max(cfg.Rate.LLMBurst, 1))
	return llm.NewThrottledClient(inner, limiter, retryPolicy(cfg.LLM.MaxRetries), rec.Observer("llm")), nil
}

// newEnrichment returns nil when no API key is configured; the pipelines then
// run without keyword data.
func newEnrichment(cfg *config.Config, rec *metrics.Recorder) enrichment.Client {
	if cfg.Enrichment.APIKey == "" {
		zap.L().Warn("enrichment.api_key not set; keyword data disabled")
		return nil
	}
	opts := []enrichment.Option{
		enrichment.WithRetry(retryPolicy(cfg.LLM.MaxRetries).Logged("enrichment", "lookup")),
	}
	if cfg.Enrichment.Timeout > 0 {
		opts = append(opts, enrichment.WithHTTPClient(&http.Client{Timeout: cfg.Enrichment.Timeout}))
	}
	if cfg.Enrichment.BaseURL != "" {
		opts = append(opts, enrichment.WithBaseURL(cfg.Enrichment.BaseURL))
	}
	if cfg.Rate.EnrichmentPerSecond > 0 {
		opts = append(opts, enrichment.WithLimiter(rate.NewLimiter(rate.Limit(cfg.Rate.EnrichmentPerSecond), 1)))
	}
	var client enrichment.Client = observedEnrichment{inner: enrichment.NewClient(cfg.Enrichment.APIKey, opts...), observe: rec.Observer("enrichment")}

	if cfg.Redis.Addr != "" {
		rdb := enrichment.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			zap.L().Warn("redis unreachable; keyword data cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			_ = rdb.Close()
		} else {
			client = enrichment.NewRedisCache(client, rdb, cfg.Redis.TTL)
		}
	}
	return client
}

// newSearcher returns nil when search credentials are missing.
func newSearcher(ctx context.Context, cfg *config.Config, rec *metrics.Recorder) (serp.Searcher, *rate.Limiter, error) {
	if cfg.Search.APIKey == "" || cfg.Search.CX == "" {
		zap.L().Warn("search.api_key or search.cx not set; competition scans disabled")
		return nil, nil, nil
	}
	g, err := serp.NewGoogleSearcher(ctx, cfg.Search.APIKey, cfg.Search.CX)
	if err != nil {
		return nil, nil, eris.Wrap(err, "create searcher")
	}
	g = g.WithRetry(retryPolicy(cfg.LLM.MaxRetries).Logged("search", "query"))
	limiter := rate.NewLimiter(rate.Limit(cfg.Rate.SearchPerSecond), max(cfg.Rate.SearchBurst, 1))
	return observedSearcher{inner: g, observe: rec.Observer("search")}, limiter, nil
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.Timeout = cfg.Pipeline.Timeout
	opts.SynthesisReserve = cfg.Pipeline.SynthesisReserve
	opts.DifficultyThreshold = cfg.Pipeline.DifficultyThreshold
	opts.SerpTopN = cfg.Pipeline.SerpTopN
	opts.MaxCompetitionScans = cfg.Pipeline.MaxCompetitionScans
	opts.AllowSkipCheck = cfg.Credits.AllowSkipCheck
	return opts
}

type observedEnrichment struct {
	inner   enrichment.Client
	observe func(operation string, err error)
}

func (o observedEnrichment) Lookup(ctx context.Context, keywords []string, region string) ([]enrichment.Result, error) {
	res, err := o.inner.Lookup(ctx, keywords, region)
	o.observe("lookup", err)
	return res, err
}

type observedSearcher struct {
	inner   serp.Searcher
	observe func(operation string, err error)
}

func (o observedSearcher) Search(ctx context.Context, keyword, lang string, n int) ([]serp.Result, error) {
	res, err := o.inner.Search(ctx, keyword, lang, n)
	o.observe("search", err)
	return res, err
}
