package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client 对话模型客户端
type Client interface {
	// Chat 聊天
	Chat(messages []Message, options GenerateOptions) (string, error)
	// ChatWithContext 使用上下文聊天
	ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error)
	// Model 返回模型名称
	Model() string
	// Provider 返回提供商名称
	Provider() string
}

// GenerateOptions 生成选项
type GenerateOptions struct {
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	TopP        float64  `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// Message 消息
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// ClientOption 调整底层 HTTP 客户端
type ClientOption func(*resty.Client)

// WithTimeout 单次请求超时
func WithTimeout(d time.Duration) ClientOption {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// WithRetryCount 失败重试次数（429 与 5xx 亦重试）
func WithRetryCount(n int) ClientOption {
	return func(c *resty.Client) { c.SetRetryCount(n) }
}

func newHTTPClient(opts ...ClientOption) *resty.Client {
	client := resty.New()
	client.SetTimeout(60 * time.Second)
	client.SetRetryCount(3)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(5 * time.Second)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil || r == nil {
			return true
		}
		return r.StatusCode() == 429 || r.StatusCode() >= 500
	})
	for _, o := range opts {
		o(client)
	}
	return client
}

// NewClient 按 provider 类型创建客户端
func NewClient(typ, provider, model, apiKey, baseURL string, opts ...ClientOption) (Client, error) {
	switch typ {
	case "openai", "groq", "qwen":
		c, err := NewOpenAIClient(model, apiKey, baseURL, opts...)
		if err != nil {
			return nil, err
		}
		c.provider = provider
		return c, nil
	case "claude":
		return NewClaudeClient(model, apiKey, baseURL, opts...)
	case "gemini":
		return NewGeminiClient(model, apiKey, baseURL, opts...)
	case "eino-openai":
		return NewEinoOpenAIClient(context.Background(), provider, model, apiKey, baseURL)
	default:
		return nil, fmt.Errorf("不支持的 LLM provider 类型: %s", typ)
	}
}
