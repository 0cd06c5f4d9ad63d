package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	einoembed "github.com/cloudwego/eino/components/embedding"
)

// HashEmbedder 本地特征哈希向量：词与相邻词对哈希到固定维度后做 L2 归一化。
// 无需外部服务，适合离线入库与测试；语义能力弱于模型向量。
type HashEmbedder struct {
	model     string
	dimension int
}

func NewHashEmbedder(model string, dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 384
	}
	if model == "" {
		model = "hash"
	}
	return &HashEmbedder{model: model, dimension: dimension}
}

func (h *HashEmbedder) Model() string  { return h.model }
func (h *HashEmbedder) Dimension() int { return h.dimension }

func (h *HashEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...einoembed.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.embed(t)
	}
	return out, nil
}

func (h *HashEmbedder) embed(text string) []float64 {
	vec := make([]float64, h.dimension)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, tok := range tokens {
		h.add(vec, tok, 1.0)
		if i > 0 {
			h.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

func (h *HashEmbedder) add(vec []float64, feature string, weight float64) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum64()
	idx := int(sum % uint64(h.dimension))
	// 高位决定符号，降低碰撞带来的偏差
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}
