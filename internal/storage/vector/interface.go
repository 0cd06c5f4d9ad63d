package vector

import (
	"errors"
	"time"
)

// ErrIndexUnavailable 当前没有可查询的索引（未入库或加载失败）
var ErrIndexUnavailable = errors.New("Index unavailable")

// Index 索引元信息
type Index struct {
	Name      string    `json:"name"`      // 索引名称（集合名）
	Dimension int       `json:"dimension"` // 向量维度
	Distance  string    `json:"distance"`  // 距离度量方式
	Model     string    `json:"model"`     // 生成向量的 embedding 模型
	CreatedAt time.Time `json:"created_at"`
}

// Vector 向量数据，Content 为原文块
type Vector struct {
	ID       string            `json:"id"`
	Values   []float64         `json:"values"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// SearchOptions 搜索选项
type SearchOptions struct {
	TopK      int               `json:"top_k"`     // 返回前 K 个结果
	Filter    map[string]string `json:"filter"`    // 元数据过滤
	Threshold float64           `json:"threshold"` // 相似度阈值
}

// SearchResult 搜索结果
type SearchResult struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}
