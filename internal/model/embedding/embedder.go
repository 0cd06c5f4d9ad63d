package embedding

import (
	"fmt"

	einoembed "github.com/cloudwego/eino/components/embedding"

	"research-agent/pkg/config"
)

// Embedder eino Embedder 加上模型名与维度
type Embedder interface {
	einoembed.Embedder
	Model() string
	Dimension() int
}

// NewFromConfig 按 defaults.embedding 创建 Embedder
func NewFromConfig(cfg *config.Config) (Embedder, error) {
	ref, err := cfg.EmbeddingModel()
	if err != nil {
		return nil, err
	}
	switch ref.Type {
	case "local":
		return NewHashEmbedder(ref.Info.Name, ref.Info.Dimension), nil
	case "openai", "qwen":
		return NewOpenAIEmbedder(OpenAIConfig{
			Model:     ref.Info.Name,
			APIKey:    ref.APIKey,
			BaseURL:   ref.BaseURL,
			Dimension: ref.Info.Dimension,
			BatchSize: ref.Info.BatchSize,
		})
	default:
		return nil, fmt.Errorf("不支持的 embedding provider 类型: %s", ref.Type)
	}
}
