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

package ingest

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	einoindexer "github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/schema"

	"research-agent/internal/pipeline/common"
	"research-agent/internal/storage/vector"
)

// Sink 索引写入目标。每次入库开启一代新索引，全部写入成功后 Commit 整体替换旧索引，
// 查询方在 Commit 之前只会看到旧索引。
type Sink interface {
	Begin(ctx context.Context, info vector.Index) (Generation, error)
}

// Generation 一代正在构建的索引
type Generation interface {
	einoindexer.Indexer
	// Commit 发布本代索引，返回其位置（目录或索引名）
	Commit(ctx context.Context) (string, error)
	// Abort 丢弃本代索引，旧索引保持不变
	Abort(ctx context.Context) error
}

// MemorySink 构建内存索引，Commit 时落盘快照并替换 Handle
type MemorySink struct {
	dir    string
	handle *vector.Handle
}

func NewMemorySink(dir string, handle *vector.Handle) *MemorySink {
	return &MemorySink{dir: dir, handle: handle}
}

func (s *MemorySink) Begin(ctx context.Context, info vector.Index) (Generation, error) {
	if s.dir == "" {
		return nil, fmt.Errorf("%w: index_dir 未配置", common.ErrInvalidInput)
	}
	return &memoryGeneration{sink: s, index: vector.NewMemoryIndex(info)}, nil
}

type memoryGeneration struct {
	sink  *MemorySink
	index *vector.MemoryIndex
	mu    sync.Mutex
	done  bool
}

// Store 写入文档；缺少向量的文档用 options.Embedding 批量向量化
func (g *memoryGeneration) Store(ctx context.Context, docs []*schema.Document, opts ...einoindexer.Option) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	options := einoindexer.GetCommonOptions(nil, opts...)

	var pending []*schema.Document
	for _, d := range docs {
		if d != nil && len(d.DenseVector()) == 0 {
			pending = append(pending, d)
		}
	}
	if len(pending) > 0 {
		if options == nil || options.Embedding == nil {
			return nil, fmt.Errorf("%w: 文档缺少向量且未提供 Embedding", common.ErrIndexingFailed)
		}
		texts := make([]string, len(pending))
		for i, d := range pending {
			texts[i] = d.Content
		}
		vecs, err := options.Embedding.EmbedStrings(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrEmbeddingFailed, err)
		}
		if len(vecs) != len(pending) {
			return nil, fmt.Errorf("%w: 返回 %d 条向量，期望 %d", common.ErrEmbeddingFailed, len(vecs), len(pending))
		}
		for i, d := range pending {
			d.WithDenseVector(vecs[i])
		}
	}

	vectors := make([]*vector.Vector, 0, len(docs))
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		vectors = append(vectors, &vector.Vector{
			ID:       d.ID,
			Values:   d.DenseVector(),
			Content:  d.Content,
			Metadata: stringMeta(d.MetaData),
		})
		ids = append(ids, d.ID)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return nil, fmt.Errorf("%w: generation 已结束", common.ErrIndexingFailed)
	}
	if err := g.index.Add(ctx, vectors); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrIndexingFailed, err)
	}
	return ids, nil
}

func (g *memoryGeneration) Commit(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return "", fmt.Errorf("%w: generation 已结束", common.ErrIndexingFailed)
	}
	g.done = true
	if err := vector.SaveSnapshot(g.sink.dir, g.index); err != nil {
		return "", err
	}
	if g.sink.handle != nil {
		g.sink.handle.Swap(g.index)
	}
	return g.sink.dir, nil
}

func (g *memoryGeneration) Abort(ctx context.Context) error {
	g.mu.Lock()
	g.done = true
	g.mu.Unlock()
	return nil
}

func stringMeta(md map[string]any) map[string]string {
	out := make(map[string]string, len(md))
	for k, v := range md {
		switch t := v.(type) {
		case string:
			out[k] = t
		case int:
			out[k] = strconv.Itoa(t)
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}
