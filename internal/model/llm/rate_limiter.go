package llm

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// LLMLimitConfig 单个 provider 的限流配置
type LLMLimitConfig struct {
	TokensPerMinute   int
	RequestsPerMinute float64
	MaxConcurrent     int
}

// LLMRateLimiter 按 provider 的请求数、token 与并发限流
type LLMRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*llmLimiter
	configs  map[string]LLMLimitConfig
	defaults LLMLimitConfig
}

type llmLimiter struct {
	requests  *rate.Limiter
	tokens    *rate.Limiter
	semaphore chan struct{}
}

// NewLLMRateLimiter 创建限流器；未配置的 provider 使用 defaults
func NewLLMRateLimiter(configs map[string]LLMLimitConfig, defaults *LLMLimitConfig) *LLMRateLimiter {
	d := LLMLimitConfig{
		TokensPerMinute:   90000,
		RequestsPerMinute: 3500,
		MaxConcurrent:     50,
	}
	if defaults != nil {
		d = *defaults
	}
	if configs == nil {
		configs = map[string]LLMLimitConfig{}
	}
	return &LLMRateLimiter{
		limiters: make(map[string]*llmLimiter),
		configs:  configs,
		defaults: d,
	}
}

func (l *LLMRateLimiter) limiterFor(provider string) *llmLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[provider]; ok {
		return lim
	}
	cfg, ok := l.configs[provider]
	if !ok {
		cfg = l.defaults
	}
	lim := &llmLimiter{}
	if cfg.RequestsPerMinute > 0 {
		burst := int(cfg.RequestsPerMinute / 60.0 * 2) // 2 秒配额
		if burst < 1 {
			burst = 1
		}
		lim.requests = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60.0), burst)
	}
	if cfg.TokensPerMinute > 0 {
		burst := cfg.TokensPerMinute / 60 * 2
		if burst < 1 {
			burst = 1
		}
		lim.tokens = rate.NewLimiter(rate.Limit(float64(cfg.TokensPerMinute)/60.0), burst)
	}
	if cfg.MaxConcurrent > 0 {
		lim.semaphore = make(chan struct{}, cfg.MaxConcurrent)
	}
	l.limiters[provider] = lim
	return lim
}

// Acquire 等待配额，成功后返回释放函数；ctx 取消时返回错误
func (l *LLMRateLimiter) Acquire(ctx context.Context, provider string, estimatedTokens int) (func(), error) {
	lim := l.limiterFor(provider)
	if lim.requests != nil {
		if err := lim.requests.Wait(ctx); err != nil {
			return nil, fmt.Errorf("request rate limit wait failed: %w", err)
		}
	}
	if lim.tokens != nil && estimatedTokens > 0 {
		n := estimatedTokens
		if n > lim.tokens.Burst() {
			n = lim.tokens.Burst()
		}
		if err := lim.tokens.WaitN(ctx, n); err != nil {
			return nil, fmt.Errorf("token budget wait failed: %w", err)
		}
	}
	if lim.semaphore == nil {
		return func() {}, nil
	}
	select {
	case lim.semaphore <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() { once.Do(func() { <-lim.semaphore }) }, nil
}
