package agent

import "fmt"

// State 控制器状态
type State int

const (
	Thinking State = iota
	Acting
	Finished
	Failed
)

func (s State) String() string {
	switch s {
	case Thinking:
		return "thinking"
	case Acting:
		return "acting"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal Finished 与 Failed 为终态
func (s State) Terminal() bool {
	return s == Finished || s == Failed
}

// CanTransition 合法迁移：
// Thinking→Acting/Finished/Failed，Thinking→Thinking（格式错误自纠），Acting→Thinking
func (s State) CanTransition(to State) bool {
	switch s {
	case Thinking:
		return to == Acting || to == Finished || to == Failed || to == Thinking
	case Acting:
		return to == Thinking
	default:
		return false
	}
}

// Next 返回目标状态；非法迁移属于编程错误，直接 panic
func (s State) Next(to State) State {
	if !s.CanTransition(to) {
		panic(fmt.Sprintf("agent: illegal state transition %s -> %s", s, to))
	}
	return to
}
