package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// EinoChatClient 将 eino BaseChatModel 适配为 Client
type EinoChatClient struct {
	provider string
	model    string
	chat     einomodel.BaseChatModel
}

// NewEinoChatClient 包装任意 eino ChatModel
func NewEinoChatClient(provider, model string, chat einomodel.BaseChatModel) *EinoChatClient {
	return &EinoChatClient{provider: provider, model: model, chat: chat}
}

// NewEinoOpenAIClient 使用 eino-ext openai ChatModel（兼容 OpenAI 协议的服务均可）
func NewEinoOpenAIClient(ctx context.Context, provider, model, apiKey, baseURL string) (*EinoChatClient, error) {
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		Model:   model,
		APIKey:  apiKey,
		BaseURL: baseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 eino openai ChatModel 失败: %w", err)
	}
	return NewEinoChatClient(provider, model, cm), nil
}

func (c *EinoChatClient) Chat(messages []Message, options GenerateOptions) (string, error) {
	return c.ChatWithContext(context.Background(), messages, options)
}

func (c *EinoChatClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	in := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		in = append(in, &schema.Message{Role: schema.RoleType(m.Role), Content: m.Content})
	}
	opts := []einomodel.Option{einomodel.WithTemperature(float32(options.Temperature))}
	if options.MaxTokens > 0 {
		opts = append(opts, einomodel.WithMaxTokens(options.MaxTokens))
	}
	if options.TopP > 0 {
		opts = append(opts, einomodel.WithTopP(float32(options.TopP)))
	}
	if len(options.Stop) > 0 {
		opts = append(opts, einomodel.WithStop(options.Stop))
	}
	out, err := c.chat.Generate(ctx, in, opts...)
	if err != nil {
		return "", fmt.Errorf("eino ChatModel 生成失败: %w", err)
	}
	if out == nil {
		return "", fmt.Errorf("eino ChatModel 没有返回结果")
	}
	return out.Content, nil
}

func (c *EinoChatClient) Model() string {
	return c.model
}

func (c *EinoChatClient) Provider() string {
	return c.provider
}
