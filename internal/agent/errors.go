package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyQuestion 问题为空，模型不会被调用
	ErrEmptyQuestion = errors.New("Question cannot be empty")
	// ErrBudgetExhausted 达到迭代上限仍未给出最终答案
	ErrBudgetExhausted = errors.New("iteration budget exhausted")
	// ErrParseLimit 格式错误次数达到上限
	ErrParseLimit = errors.New("unrecoverable parse errors")
	// ErrCancelled 上下文取消或超时
	ErrCancelled = errors.New("cancelled")
)

// Failure Run 未能给出答案；errors.Is 可与上述哨兵比较
type Failure struct {
	Reason     string
	Iterations int
	Err        error
}

func newFailure(sentinel error, iterations int, cause error) *Failure {
	return &Failure{Reason: sentinel.Error(), Iterations: iterations, Err: cause}
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Reason, f.Err)
	}
	return f.Reason
}

func (f *Failure) Unwrap() error { return f.Err }

func (f *Failure) Is(target error) bool {
	switch target {
	case ErrBudgetExhausted, ErrParseLimit, ErrCancelled:
		return f.Reason == target.Error()
	}
	return false
}

// UpstreamError 模型调用失败，不在循环内恢复
type UpstreamError struct {
	Provider  string
	Iteration int
	Err       error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("language model call failed (%s): %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
