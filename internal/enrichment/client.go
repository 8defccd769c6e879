package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/jonathan/keyword-miner/internal/resilience"
	"github.com/jonathan/keyword-miner/internal/types"
)

const (
	defaultBaseURL = "https://api.seranking.com"
	// maxBatch is the provider's per-request keyword limit.
	maxBatch = 100
)

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithLimiter paces requests through a token bucket.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.Policy
}

// NewClient creates a keyword data API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   resilience.DefaultPolicy().Logged("enrichment", "lookup"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type lookupRequest struct {
	Keywords []string `json:"keywords"`
}

type lookupItem struct {
	Keyword      string         `json:"keyword"`
	IsDataFound  bool           `json:"is_data_found"`
	Volume       *int           `json:"volume"`
	Difficulty   *int           `json:"difficulty"`
	CPC          *float64       `json:"cpc"`
	Competition  *float64       `json:"competition"`
	HistoryTrend map[string]int `json:"history_trend"`
}

// Lookup fetches data for all keywords, splitting into provider-sized batches.
func (c *httpClient) Lookup(ctx context.Context, keywords []string, region string) ([]Result, error) {
	if len(keywords) == 0 {
		return []Result{}, nil
	}

	results := make([]Result, 0, len(keywords))
	for start := 0; start < len(keywords); start += maxBatch {
		end := min(start+maxBatch, len(keywords))
		batch, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]Result, error) {
			return c.lookupBatch(ctx, keywords[start:end], region)
		})
		if err != nil {
			return nil, err
		}
		results = append(results, batch...)
	}
	return results, nil
}

func (c *httpClient) lookupBatch(ctx context.Context, keywords []string, region string) ([]Result, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "enrichment: rate limit wait")
		}
	}

	body, err := json.Marshal(lookupRequest{Keywords: keywords})
	if err != nil {
		return nil, eris.Wrap(err, "enrichment: marshal request")
	}

	endpoint := c.baseURL + "/v1/keywords/export?source=" + url.QueryEscape(region)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "enrichment: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "enrichment: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "enrichment: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resilience.ClassifyStatus(
			eris.Errorf("enrichment: unexpected status %d: %s", resp.StatusCode, truncate(respBody, 200)),
			resp.StatusCode,
		)
	}

	var items []lookupItem
	if err := json.Unmarshal(respBody, &items); err != nil {
		return nil, eris.Wrap(err, "enrichment: unmarshal response")
	}

	out := make([]Result, 0, len(items))
	for _, it := range items {
		out = append(out, Result{
			Keyword:      it.Keyword,
			IsDataFound:  it.IsDataFound,
			Volume:       it.Volume,
			Difficulty:   it.Difficulty,
			CPC:          it.CPC,
			Competition:  it.Competition,
			HistoryTrend: trendPoints(it.HistoryTrend),
		})
	}
	return out, nil
}

// trendPoints orders the provider's month->volume map chronologically.
func trendPoints(m map[string]int) []types.TrendPoint {
	if len(m) == 0 {
		return nil
	}
	points := make([]types.TrendPoint, 0, len(m))
	for month, vol := range m {
		points = append(points, types.TrendPoint{Month: month, Volume: vol})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Month < points[j].Month })
	return points
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
