// Package runlog 记录每次研究问答的结果摘要，供 /api/runs 查询
package runlog

import (
	"context"
	"fmt"
	"time"

	"research-agent/pkg/config"
)

// 运行状态
const (
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// Record 一次 Run 的摘要
type Record struct {
	ID         string        `json:"id"`
	Question   string        `json:"question"`
	Status     string        `json:"status"`
	Answer     string        `json:"answer,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	Iterations int           `json:"iterations"`
	Tools      []string      `json:"tools"`
	Duration   time.Duration `json:"duration_ns"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Store 运行记录存储
type Store interface {
	// Append 追加一条记录
	Append(ctx context.Context, rec Record) error
	// Recent 按时间倒序返回最近 limit 条
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// New 根据配置创建 Store；type 为空或 none 时返回丢弃写入的实现
func New(ctx context.Context, cfg config.RunLogConfig) (Store, error) {
	switch cfg.Type {
	case "", "none":
		return Nop{}, nil
	case "memory":
		return NewMemoryStore(DefaultMemoryCapacity), nil
	case "postgres":
		return NewPostgresStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("不支持的 runlog 类型: %s", cfg.Type)
	}
}

// Nop 不记录
type Nop struct{}

func (Nop) Append(context.Context, Record) error          { return nil }
func (Nop) Recent(context.Context, int) ([]Record, error) { return nil, nil }
func (Nop) Close() error                                  { return nil }
