package app

import (
	"context"
	"fmt"

	"research-agent/internal/model/llm"
	"research-agent/pkg/config"
	"research-agent/pkg/secrets"
)

// 凭据在 secret store 中的 key，沿用 .env 的变量名
const (
	SecretLLMKey       = "GROQ_API_KEY"
	SecretSearchKey    = "SERPAPI_API_KEY"
	SecretEmbeddingKey = "EMBEDDING_API_KEY"
)

// NewLLMClientFromConfig 根据 config.Model 的 defaults.llm 创建 LLM 客户端（如 "groq.llama_31_8b"），并按 rate_limits.llm 限流
func NewLLMClientFromConfig(cfg *config.Config) (llm.Client, error) {
	ref, err := cfg.LLMModel()
	if err != nil {
		return nil, err
	}
	if ref.APIKey == "" {
		return nil, fmt.Errorf("%w: LLM provider %q 的 api_key 未配置", config.ErrMissingCredential, ref.Provider)
	}
	var opts []llm.ClientOption
	if ref.Timeout > 0 {
		opts = append(opts, llm.WithTimeout(ref.Timeout))
	}
	client, err := llm.NewClient(ref.Type, ref.Provider, ref.Info.Name, ref.APIKey, ref.BaseURL, opts...)
	if err != nil {
		return nil, err
	}
	return llm.NewRateLimitedClient(client, NewLLMRateLimiter(cfg)), nil
}

// NewLLMRateLimiter 将 rate_limits.llm 转为限流器配置
func NewLLMRateLimiter(cfg *config.Config) *llm.LLMRateLimiter {
	limits := make(map[string]llm.LLMLimitConfig, len(cfg.RateLimits.LLM))
	for provider, rl := range cfg.RateLimits.LLM {
		limits[provider] = llm.LLMLimitConfig{
			TokensPerMinute:   rl.TokensPerMinute,
			RequestsPerMinute: rl.RequestsPerMinute,
			MaxConcurrent:     rl.MaxConcurrent,
		}
	}
	return llm.NewLLMRateLimiter(limits, nil)
}

// ResolveCredentials 配置中仍为空的凭据从 secret store 回填；store 中不存在时保持为空，由 Validate 报错
func ResolveCredentials(ctx context.Context, cfg *config.Config, store secrets.Store) error {
	if ref, err := cfg.LLMModel(); err == nil && ref.APIKey == "" {
		v, err := secrets.Lookup(ctx, store, SecretLLMKey)
		if err != nil {
			return fmt.Errorf("读取 %s 失败: %w", SecretLLMKey, err)
		}
		if v != "" {
			cfg.SetLLMAPIKey(v)
		}
	}
	if ref, err := cfg.EmbeddingModel(); err == nil && ref.APIKey == "" && ref.Type != "local" {
		v, err := secrets.Lookup(ctx, store, SecretEmbeddingKey)
		if err != nil {
			return fmt.Errorf("读取 %s 失败: %w", SecretEmbeddingKey, err)
		}
		if v != "" {
			cfg.SetEmbeddingAPIKey(v)
		}
	}
	if cfg.Search.APIKey == "" {
		v, err := secrets.Lookup(ctx, store, SecretSearchKey)
		if err != nil {
			return fmt.Errorf("读取 %s 失败: %w", SecretSearchKey, err)
		}
		cfg.Search.APIKey = v
	}
	return nil
}
