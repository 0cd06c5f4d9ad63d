package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"research-agent/internal/tool"
)

// ErrSealed 注册表已封存，不再接受注册
var ErrSealed = errors.New("registry is sealed")

// DuplicateNameError 重复注册同名工具
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("tool already registered: %s", e.Name)
}

// UnknownToolError 查询未注册的工具
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Name)
}

// Registry 工具注册表，按注册顺序列出；启动完成后 Seal，之后只读
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]tool.Tool
	order  []string
	sealed bool
}

func New() *Registry {
	return &Registry{
		tools: make(map[string]tool.Tool),
	}
}

// Register 注册工具；名称为空、重名或已封存时返回错误
func (r *Registry) Register(t tool.Tool) error {
	if t == nil {
		return errors.New("tool is nil")
	}
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return errors.New("tool name is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrSealed
	}
	if _, ok := r.tools[name]; ok {
		return &DuplicateNameError{Name: name}
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// RegisterFunc 以函数注册
func (r *Registry) RegisterFunc(name, description string, fn tool.InvokeFunc) error {
	return r.Register(tool.Func(name, description, fn))
}

// Seal 封存注册表
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (tool.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return t, nil
}

// List 按注册顺序返回工具描述
func (r *Registry) List() []tool.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]tool.Descriptor, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, tool.Descriptor{Name: name, Description: r.tools[name].Description()})
	}
	return list
}

// Names 按注册顺序返回工具名
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
