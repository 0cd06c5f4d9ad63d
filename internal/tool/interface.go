package tool

import (
	"context"
)

// Tool 推理循环可调用的能力：输入为模型给出的 Action Input 原文，输出为观察文本
type Tool interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, input string) (string, error)
}

// Descriptor 工具名与描述，用于渲染提示词中的工具清单
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// InvokeFunc 工具执行函数
type InvokeFunc func(ctx context.Context, input string) (string, error)

type funcTool struct {
	name        string
	description string
	fn          InvokeFunc
}

// Func 以函数构造 Tool
func Func(name, description string, fn InvokeFunc) Tool {
	return &funcTool{name: name, description: description, fn: fn}
}

func (t *funcTool) Name() string        { return t.name }
func (t *funcTool) Description() string { return t.description }

func (t *funcTool) Invoke(ctx context.Context, input string) (string, error) {
	return t.fn(ctx, input)
}
