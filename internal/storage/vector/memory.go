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

package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryIndex 单代内存索引：构建期追加，发布后只读。
// 保留插入顺序，相同得分按插入顺序返回。
type MemoryIndex struct {
	info    Index
	mu      sync.RWMutex
	vectors []*Vector
	ids     map[string]int
}

// NewMemoryIndex 创建空索引
func NewMemoryIndex(info Index) *MemoryIndex {
	if info.Distance == "" {
		info.Distance = "cosine"
	}
	return &MemoryIndex{info: info, ids: make(map[string]int)}
}

// Info 索引元信息
func (m *MemoryIndex) Info() Index { return m.info }

// Len 向量条数
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

// Add 添加向量；ID 重复时覆盖原值
func (m *MemoryIndex) Add(ctx context.Context, vectors []*Vector) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range vectors {
		if m.info.Dimension > 0 && len(v.Values) != m.info.Dimension {
			return fmt.Errorf("vector dimension %d does not match index dimension %d", len(v.Values), m.info.Dimension)
		}
		if i, ok := m.ids[v.ID]; ok {
			m.vectors[i] = v
			continue
		}
		m.ids[v.ID] = len(m.vectors)
		m.vectors = append(m.vectors, v)
	}
	return nil
}

// Get 根据 ID 获取向量
func (m *MemoryIndex) Get(id string) (*Vector, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.ids[id]
	if !ok {
		return nil, false
	}
	return m.vectors[i], true
}

// All 按插入顺序返回全部向量
func (m *MemoryIndex) All() []*Vector {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Vector, len(m.vectors))
	copy(out, m.vectors)
	return out
}

// Search 搜索向量
func (m *MemoryIndex) Search(ctx context.Context, query []float64, options *SearchOptions) ([]*SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.info.Dimension > 0 && len(query) != m.info.Dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), m.info.Dimension)
	}
	if options == nil {
		options = &SearchOptions{TopK: 5}
	}

	results := make([]*SearchResult, 0, len(m.vectors))
	for _, v := range m.vectors {
		if !matchFilter(v.Metadata, options.Filter) {
			continue
		}
		score := similarity(query, v.Values, m.info.Distance)
		if score < options.Threshold {
			continue
		}
		results = append(results, &SearchResult{
			ID:       v.ID,
			Score:    score,
			Content:  v.Content,
			Metadata: v.Metadata,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if options.TopK > 0 && len(results) > options.TopK {
		results = results[:options.TopK]
	}
	return results, nil
}

func matchFilter(md, filter map[string]string) bool {
	for k, want := range filter {
		if md == nil || md[k] != want {
			return false
		}
	}
	return true
}

func similarity(query, vector []float64, distance string) float64 {
	switch distance {
	case "euclidean":
		return 1.0 / (1.0 + euclideanDistance(query, vector))
	default:
		return cosineSimilarity(query, vector)
	}
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func euclideanDistance(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
