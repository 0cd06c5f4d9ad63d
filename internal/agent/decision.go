package agent

import (
	"regexp"
	"strings"
)

const (
	finalAnswerMarker = "Final Answer:"
	// StopSequence 模型应在写出观察之前停下，观察由控制器填入
	StopSequence = "\nObservation:"
)

var (
	// 行首的 Action: 与 Action Input: 标记；工具名只取该行
	actionLineRe  = regexp.MustCompile(`(?m)^[ \t]*Action[ \t]*:[ \t]*(.*)$`)
	actionInputRe = regexp.MustCompile(`(?m)^[ \t]*Action[ \t]*Input[ \t]*:[ \t]*`)
	thoughtPrefix = regexp.MustCompile(`^(?i)thought\s*:\s*`)
)

// Decision 一次模型输出解析得到的指令：Act 或 Finish
type Decision interface {
	decision()
}

// Act 调用工具
type Act struct {
	Thought string
	Tool    string
	Input   string
}

// Finish 给出最终答案
type Finish struct {
	Thought string
	Answer  string
}

func (Act) decision()    {}
func (Finish) decision() {}

// ParseError 模型输出不符合 Thought/Action/Action Input 或 Final Answer 格式
type ParseError struct {
	Reason  string
	Thought string
}

func (e *ParseError) Error() string {
	return "Invalid format: " + e.Reason
}

// ParseDecision 严格按两种标记解析：同时出现或都不出现均视为格式错误，不做意图推断
func ParseDecision(text string) (Decision, error) {
	// 模型未遵守 stop 时丢弃其自拟的观察
	if i := strings.Index(text, StopSequence); i >= 0 {
		text = text[:i]
	}

	finalIdx := strings.Index(text, finalAnswerMarker)
	act, actErr := parseAction(text)

	switch {
	case act != nil && finalIdx >= 0:
		return nil, &ParseError{
			Reason:  "output contains both a final answer and an action",
			Thought: thoughtBefore(text, min(finalIdx, act.start)),
		}
	case finalIdx >= 0:
		return Finish{
			Thought: thoughtBefore(text, finalIdx),
			Answer:  strings.TrimSpace(text[finalIdx+len(finalAnswerMarker):]),
		}, nil
	case act != nil:
		return act.Act, nil
	case actErr != nil:
		return nil, actErr
	default:
		return nil, &ParseError{
			Reason:  "could not find 'Action:' or 'Final Answer:'",
			Thought: thoughtBefore(text, len(text)),
		}
	}
}

type parsedAction struct {
	Act
	start int
}

// parseAction 取第一个 Action Input: 之前最后一个行首 Action: 作为工具名；
// 两者都没有时返回 (nil, nil)
func parseAction(text string) (*parsedAction, *ParseError) {
	lines := actionLineRe.FindAllStringSubmatchIndex(text, -1)
	input := actionInputRe.FindStringIndex(text)

	if input == nil {
		if len(lines) == 0 {
			return nil, nil
		}
		return nil, &ParseError{
			Reason:  "missing 'Action Input:' after 'Action:'",
			Thought: thoughtBefore(text, lines[0][0]),
		}
	}

	var line []int
	for _, l := range lines {
		if l[0] < input[0] {
			line = l
		}
	}
	if line == nil {
		return nil, &ParseError{
			Reason:  "missing 'Action:' line before 'Action Input:'",
			Thought: thoughtBefore(text, input[0]),
		}
	}

	thought := thoughtBefore(text, line[0])
	tool := strings.Trim(strings.TrimSpace(text[line[2]:line[3]]), "`*")
	if tool == "" {
		return nil, &ParseError{Reason: "missing tool name after 'Action:'", Thought: thought}
	}
	in := strings.TrimSpace(text[input[1]:])
	if len(in) >= 2 && strings.HasPrefix(in, `"`) && strings.HasSuffix(in, `"`) {
		in = in[1 : len(in)-1]
	}
	return &parsedAction{Act: Act{Thought: thought, Tool: tool, Input: in}, start: line[0]}, nil
}

func thoughtBefore(text string, end int) string {
	t := strings.TrimSpace(text[:end])
	return strings.TrimSpace(thoughtPrefix.ReplaceAllString(t, ""))
}
