package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/keyword-miner/internal/config"
)

// frozen pins the limiter clock so no tokens refill during a test.
func frozen(l *Limiter) *Limiter {
	now := time.Now()
	l.now = func() time.Time { return now }
	return l
}

func TestLimiter_Allow(t *testing.T) {
	limiter := frozen(NewLimiter(&Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute}))
	defer limiter.Stop()

	for i := 0; i < 10; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/v1/credits", "GET")
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 10, info.Limit)
		assert.Equal(t, 9-i, info.Remaining)
	}

	allowed, info := limiter.Allow("127.0.0.1", "/v1/credits", "GET")
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.Greater(t, info.RetryAfter, time.Duration(0))
	assert.True(t, info.ResetTime.After(limiter.now()))

	// Other clients have their own bucket.
	allowed, _ = limiter.Allow("127.0.0.2", "/v1/credits", "GET")
	assert.True(t, allowed)
}

func TestLimiter_Refill(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: true, DefaultLimit: 60, DefaultWindow: time.Minute})
	defer limiter.Stop()
	now := time.Now()
	limiter.now = func() time.Time { return now }

	for i := 0; i < 60; i++ {
		limiter.Allow("c", "/x", "GET")
	}
	allowed, _ := limiter.Allow("c", "/x", "GET")
	require.False(t, allowed)

	now = now.Add(1100 * time.Millisecond)
	allowed, _ = limiter.Allow("c", "/x", "GET")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow("c", "/x", "GET")
	assert.False(t, allowed)
}

func TestLimiter_Lists(t *testing.T) {
	limiter := frozen(NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Whitelist:     map[string]bool{"127.0.0.1": true},
		Blacklist:     map[string]bool{"192.168.1.1": true},
	}))
	defer limiter.Stop()

	for i := 0; i < 50; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/v1/keywords", "POST")
		require.True(t, allowed)
		assert.Equal(t, 0, info.Limit)
	}
	allowed, _ := limiter.Allow("192.168.1.1", "/health", "GET")
	assert.False(t, allowed)
}

func TestLimiter_Disabled(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: false})
	defer limiter.Stop()

	for i := 0; i < 100; i++ {
		allowed, _ := limiter.Allow("127.0.0.1", "/v1/keywords", "POST")
		require.True(t, allowed)
	}
}

func TestLimiter_EndpointSpecific(t *testing.T) {
	limiter := frozen(NewLimiter(&Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		EndpointConfigs: DefaultEndpointConfigs(20, 5),
	}))
	defer limiter.Stop()

	for i := 0; i < 5; i++ {
		allowed, info := limiter.Allow("c", "/v1/keywords", "POST")
		require.True(t, allowed)
		assert.Equal(t, 20, info.Limit)
	}
	allowed, _ := limiter.Allow("c", "/v1/keywords", "POST")
	assert.False(t, allowed, "burst exhausted")

	allowed, info := limiter.Allow("c", "/v1/credits", "GET")
	assert.True(t, allowed)
	assert.Equal(t, 1000, info.Limit)
}

func TestLimiter_UnlimitedProbes(t *testing.T) {
	limiter := frozen(NewLimiter(&Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Hour}))
	defer limiter.Stop()

	for _, path := range []string{"/health", "/metrics"} {
		for i := 0; i < 10; i++ {
			allowed, _ := limiter.Allow("c", path, "GET")
			require.True(t, allowed, path)
		}
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter := frozen(NewLimiter(&Config{Enabled: true, DefaultLimit: 100, DefaultWindow: time.Minute}))
	defer limiter.Stop()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := limiter.Allow("c", "/x", "GET"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, allowed)
}

func TestLimiter_EvictIdle(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute})
	defer limiter.Stop()
	now := time.Now()
	limiter.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		limiter.Allow(fmt.Sprintf("127.0.0.%d", i), "/x", "GET")
	}
	now = now.Add(2 * time.Hour)
	for i := 0; i < 3; i++ {
		limiter.Allow(fmt.Sprintf("127.0.0.%d", i), "/x", "GET")
	}

	limiter.evictIdle(now.Add(-idleBucketTTL))
	assert.Len(t, limiter.buckets, 3)
}

func TestLimiter_StopTwice(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Minute, CleanupInterval: time.Millisecond})
	limiter.Stop()
	assert.NotPanics(t, limiter.Stop)
}

func TestNewLimiter_NilConfig(t *testing.T) {
	limiter := NewLimiter(nil)
	defer limiter.Stop()

	allowed, info := limiter.Allow("127.0.0.1", "/x", "GET")
	assert.True(t, allowed)
	assert.Equal(t, 1000, info.Limit)
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(config.RateLimitSettings{
		Enabled:           true,
		DefaultPerMinute:  600,
		KeywordsPerMinute: 20,
		KeywordsBurst:     5,
		Whitelist:         []string{"10.0.0.1", ""},
	})
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 600, cfg.DefaultLimit)
	assert.Equal(t, map[string]bool{"10.0.0.1": true}, cfg.Whitelist)
	require.Len(t, cfg.EndpointConfigs, 1)
	assert.Equal(t, "/v1/keywords", cfg.EndpointConfigs[0].Path)

	assert.False(t, FromSettings(config.RateLimitSettings{}).Enabled)
}

func TestMatchEndpoint(t *testing.T) {
	configs := []EndpointConfig{
		{Path: "/v1/keywords", Method: "POST", Limit: 1},
		{Path: "/v1/admin/", Method: "POST", Limit: 2},
	}
	assert.Equal(t, 1, MatchEndpoint("/v1/keywords", "POST", configs).Limit)
	assert.Equal(t, 2, MatchEndpoint("/v1/admin/grant", "POST", configs).Limit)
	assert.Nil(t, MatchEndpoint("/v1/keywords", "GET", configs))
	assert.Equal(t, 0, MatchEndpoint("/health", "GET", configs).Limit)
}
