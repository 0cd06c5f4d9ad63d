package llm

import (
	"context"
	"time"

	"research-agent/pkg/metrics"
)

// RateLimitedClient 在调用前等待限流配额
type RateLimitedClient struct {
	inner       Client
	rateLimiter *LLMRateLimiter
}

func NewRateLimitedClient(inner Client, rateLimiter *LLMRateLimiter) *RateLimitedClient {
	return &RateLimitedClient{inner: inner, rateLimiter: rateLimiter}
}

func (c *RateLimitedClient) Chat(messages []Message, options GenerateOptions) (string, error) {
	return c.ChatWithContext(context.Background(), messages, options)
}

func (c *RateLimitedClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	if c.rateLimiter != nil {
		provider := c.inner.Provider()
		start := time.Now()
		release, err := c.rateLimiter.Acquire(ctx, provider, estimateTokens(messages, options.MaxTokens))
		if err != nil {
			return "", err
		}
		defer release()
		if waited := time.Since(start); waited > 100*time.Millisecond {
			metrics.RateLimitWaitSeconds.WithLabelValues("llm", provider).Observe(waited.Seconds())
		}
	}
	return c.inner.ChatWithContext(ctx, messages, options)
}

func (c *RateLimitedClient) Model() string { return c.inner.Model() }

func (c *RateLimitedClient) Provider() string { return c.inner.Provider() }

// estimateTokens 粗略估算：4 字符约 1 token，加上输出上限
func estimateTokens(msgs []Message, maxTokens int) int {
	total := 0
	for _, m := range msgs {
		total += len(m.Content)
	}
	estimated := total / 4
	if maxTokens > 0 {
		estimated += maxTokens
	}
	if estimated < 1 {
		estimated = 1
	}
	return estimated
}
