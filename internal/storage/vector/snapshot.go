package vector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// SnapshotFile 快照文件名；写入时先落 .tmp 再 rename
const SnapshotFile = "index.json"

const snapshotVersion = 1

type snapshot struct {
	Version int       `json:"version"`
	Index   Index     `json:"index"`
	Vectors []*Vector `json:"vectors"`
}

// SnapshotPath 返回目录下的快照路径
func SnapshotPath(dir string) string {
	return filepath.Join(dir, SnapshotFile)
}

// SaveSnapshot 原子写入快照：tmp 文件 fsync 后 rename 覆盖旧文件
func SaveSnapshot(dir string, idx *MemoryIndex) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建索引目录失败: %w", err)
	}
	tmp := SnapshotPath(dir) + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("创建快照临时文件失败: %w", err)
	}
	enc := json.NewEncoder(f)
	if err := enc.Encode(snapshot{Version: snapshotVersion, Index: idx.Info(), Vectors: idx.All()}); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("写入快照失败: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("同步快照失败: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, SnapshotPath(dir)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("替换快照失败: %w", err)
	}
	return nil
}

// LoadSnapshot 读取目录下的快照；不存在时返回的错误满足 errors.Is(err, os.ErrNotExist)
func LoadSnapshot(dir string) (*MemoryIndex, error) {
	f, err := os.Open(SnapshotPath(dir))
	if err != nil {
		return nil, fmt.Errorf("打开索引快照失败: %w", err)
	}
	defer f.Close()

	var snap snapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("解析索引快照失败: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("不支持的快照版本: %d", snap.Version)
	}
	idx := NewMemoryIndex(snap.Index)
	if err := idx.Add(context.Background(), snap.Vectors); err != nil {
		return nil, fmt.Errorf("快照数据损坏: %w", err)
	}
	return idx, nil
}

// IsNotExist 快照不存在
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
