package vector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"research-agent/pkg/log"
)

// Watcher 监听索引目录，快照被替换后重新加载到 Handle
type Watcher struct {
	dir      string
	handle   *Handle
	debounce time.Duration
	logger   *log.Logger
	watcher  *fsnotify.Watcher
	onReload func(*MemoryIndex, error)

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewWatcher debounce 为同一批事件合并的等待时间，0 表示立即重载
func NewWatcher(dir string, handle *Handle, debounce time.Duration, logger *log.Logger) (*Watcher, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建索引目录失败: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("监听索引目录失败: %w", err)
	}
	return &Watcher{
		dir:      filepath.Clean(dir),
		handle:   handle,
		debounce: debounce,
		logger:   logger,
		watcher:  w,
		done:     make(chan struct{}),
	}, nil
}

// OnReload 每次重载后回调，供测试与日志使用；须在 Start 前设置
func (w *Watcher) OnReload(fn func(*MemoryIndex, error)) {
	w.onReload = fn
}

// Start 启动后台监听，立即返回
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	go w.loop(ctx)
}

// Stop 停止监听；可重复调用
func (w *Watcher) Stop() {
	w.once.Do(func() {
		if w.cancel != nil {
			w.cancel()
			<-w.done
		} else {
			close(w.done)
		}
		_ = w.watcher.Close()
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != SnapshotFile {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("索引目录监听错误", "dir", w.dir, "error", err)
		}
	}
}

func (w *Watcher) reload() {
	idx, err := w.handle.Reload(w.dir)
	if err != nil {
		w.logger.Warn("重新加载索引失败，保留当前索引", "dir", w.dir, "error", err)
	} else {
		w.logger.Info("索引已重新加载", "dir", w.dir, "chunks", idx.Len(), "index", idx.Info().Name)
	}
	if w.onReload != nil {
		w.onReload(idx, err)
	}
}
