package vector

import (
	"sync/atomic"

	"research-agent/pkg/metrics"
)

// Handle 当前生效索引的句柄；查询方每次取一次快照，入库方整体替换
type Handle struct {
	p atomic.Pointer[MemoryIndex]
}

func NewHandle(idx *MemoryIndex) *Handle {
	h := &Handle{}
	if idx != nil {
		h.Swap(idx)
	}
	return h
}

// Current 返回当前索引；尚未发布时返回 ErrIndexUnavailable
func (h *Handle) Current() (*MemoryIndex, error) {
	idx := h.p.Load()
	if idx == nil {
		return nil, ErrIndexUnavailable
	}
	return idx, nil
}

// Swap 发布新索引，返回旧索引（可能为 nil）
func (h *Handle) Swap(idx *MemoryIndex) *MemoryIndex {
	old := h.p.Swap(idx)
	if idx != nil {
		metrics.IndexChunks.Set(float64(idx.Len()))
	}
	return old
}

// Reload 从目录重新加载快照并发布；失败时保留旧索引
func (h *Handle) Reload(dir string) (*MemoryIndex, error) {
	idx, err := LoadSnapshot(dir)
	if err != nil {
		return nil, err
	}
	h.Swap(idx)
	return idx, nil
}
