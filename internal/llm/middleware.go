package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/agritriples/internal/cache"
	"github.com/ppiankov/agritriples/internal/worker"
)

// WithCache memoises completions keyed by endpoint, model, prompts and
// sampling options. endpoint separates completers sharing one cache.
// A nil cache returns next unchanged.
func WithCache(next Completer, c cache.Cache, ttl time.Duration, endpoint string) Completer {
	if c == nil {
		return next
	}
	return CompleterFunc(func(ctx context.Context, req Request) (*Response, error) {
		key := RequestKey(endpoint, req)
		if data, ok := c.Get(key); ok {
			var cached Response
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}

		resp, err := next.Complete(ctx, req)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(resp); err == nil {
			_ = c.Set(key, data, ttl)
		}
		return resp, nil
	})
}

// RequestKey derives the cache key for a completion request
func RequestKey(endpoint string, req Request) string {
	o := req.Options
	return cache.CacheKey(
		"completion",
		endpoint,
		req.Model,
		req.System,
		req.Prompt,
		strconv.FormatFloat(float64(o.Temperature), 'g', -1, 32),
		strconv.Itoa(o.MaxTokens),
		strconv.FormatFloat(float64(o.TopP), 'g', -1, 32),
		strings.Join(o.Stop, "\x1f"),
	)
}

// WithRateLimit waits for the per-model limiter before every call.
// A nil limiter returns next unchanged.
func WithRateLimit(next Completer, limiter *worker.Limiter) Completer {
	if limiter == nil {
		return next
	}
	return CompleterFunc(func(ctx context.Context, req Request) (*Response, error) {
		if err := limiter.Wait(ctx, req.Model); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
		return next.Complete(ctx, req)
	})
}

// retrySleepFunc is the sleep used between retries (injectable for tests)
var retrySleepFunc = func(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// WithRetry retries 429 and 5xx completion failures with exponential backoff
// starting at baseDelay. maxRetries <= 0 returns next unchanged.
func WithRetry(next Completer, maxRetries int, baseDelay time.Duration) Completer {
	if maxRetries <= 0 {
		return next
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return CompleterFunc(func(ctx context.Context, req Request) (*Response, error) {
		for attempt := 0; ; attempt++ {
			resp, err := next.Complete(ctx, req)
			if err == nil {
				return resp, nil
			}

			var compErr *CompletionError
			if !errors.As(err, &compErr) || !compErr.IsRetryable() || attempt >= maxRetries {
				return nil, err
			}

			if err := retrySleepFunc(ctx, baseDelay<<attempt); err != nil {
				return nil, err
			}
		}
	})
}
