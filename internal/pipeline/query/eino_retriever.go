// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package query

import (
	"context"
	"fmt"
	"math"

	einoembed "github.com/cloudwego/eino/components/embedding"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"research-agent/internal/storage/vector"
)

// MemoryRetriever 基于当前生效内存索引的 eino Retriever；每次查询取一次 Handle 快照
type MemoryRetriever struct {
	handle      *vector.Handle
	embedder    einoembed.Embedder
	defaultTopK int
}

type MemoryRetrieverConfig struct {
	Handle *vector.Handle
	// Embedder 未通过 WithEmbedding 传入时使用
	Embedder    einoembed.Embedder
	DefaultTopK int
}

func NewMemoryRetriever(cfg *MemoryRetrieverConfig) (*MemoryRetriever, error) {
	if cfg == nil || cfg.Handle == nil {
		return nil, fmt.Errorf("MemoryRetriever requires Handle")
	}
	topK := cfg.DefaultTopK
	if topK <= 0 {
		topK = 5
	}
	return &MemoryRetriever{
		handle:      cfg.Handle,
		embedder:    cfg.Embedder,
		defaultTopK: topK,
	}, nil
}

// Retrieve 返回最相近的 topK 个切片；未设置 ScoreThreshold 时不做阈值过滤。
// 索引未加载时返回 vector.ErrIndexUnavailable。
func (m *MemoryRetriever) Retrieve(ctx context.Context, query string, opts ...einoretriever.Option) ([]*schema.Document, error) {
	options := einoretriever.GetCommonOptions(&einoretriever.Options{Embedding: m.embedder}, opts...)
	topK := m.defaultTopK
	if options.TopK != nil && *options.TopK > 0 {
		topK = *options.TopK
	}
	threshold := math.Inf(-1)
	if options.ScoreThreshold != nil {
		threshold = *options.ScoreThreshold
	}

	idx, err := m.handle.Current()
	if err != nil {
		return nil, err
	}

	if options.Embedding == nil {
		return nil, fmt.Errorf("Retriever requires WithEmbedding 选项以对 query 做向量化")
	}
	vecs, err := options.Embedding.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("retriever embedding: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedding returned empty")
	}

	results, err := idx.Search(ctx, vecs[0], &vector.SearchOptions{
		TopK:      topK,
		Threshold: threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("vector index search: %w", err)
	}

	docs := make([]*schema.Document, 0, len(results))
	for _, sr := range results {
		meta := make(map[string]any, len(sr.Metadata))
		for k, v := range sr.Metadata {
			meta[k] = v
		}
		d := &schema.Document{
			ID:       sr.ID,
			Content:  sr.Content,
			MetaData: meta,
		}
		docs = append(docs, d.WithScore(sr.Score))
	}
	return docs, nil
}
