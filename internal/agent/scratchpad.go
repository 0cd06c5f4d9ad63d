package agent

import (
	"strings"
	"time"
)

// Step 一次决策循环留下的记录；Action 为空表示格式错误，未知工具时 Action 非空但未执行
type Step struct {
	Thought     string        `json:"thought,omitempty"`
	Action      string        `json:"action,omitempty"`
	Input       string        `json:"input,omitempty"`
	Observation string        `json:"observation"`
	Duration    time.Duration `json:"duration,omitempty"`

	invoked bool
}

// Scratchpad 单次 Run 独占，按发生顺序追加，Run 结束即丢弃
type Scratchpad struct {
	steps []Step
}

func (s *Scratchpad) Append(step Step) {
	s.steps = append(s.steps, step)
}

func (s *Scratchpad) Len() int { return len(s.steps) }

// Steps 返回副本
func (s *Scratchpad) Steps() []Step {
	out := make([]Step, len(s.steps))
	copy(out, s.steps)
	return out
}

// Render 渲染为 Thought/Action/Action Input/Observation 文本块，末尾留出下一轮的 "Thought:"
func (s *Scratchpad) Render() string {
	var b strings.Builder
	for _, st := range s.steps {
		b.WriteString(" ")
		b.WriteString(st.Thought)
		b.WriteString("\n")
		if st.Action != "" {
			b.WriteString("Action: ")
			b.WriteString(st.Action)
			b.WriteString("\nAction Input: ")
			b.WriteString(st.Input)
			b.WriteString("\n")
		}
		b.WriteString("Observation: ")
		b.WriteString(st.Observation)
		b.WriteString("\nThought:")
	}
	return b.String()
}
