package agent

import (
	"strings"

	"research-agent/internal/tool"
)

// 模板占位符
const (
	PlaceholderTools      = "{tools}"
	PlaceholderToolNames  = "{tool_names}"
	PlaceholderQuestion   = "{input}"
	PlaceholderScratchpad = "{agent_scratchpad}"
)

// DefaultPromptTemplate ReAct 指令模板
const DefaultPromptTemplate = `You are a research assistant. Answer the following question as best you can, using the research tools when they help. Cite sources when you use documents or papers.

You have access to the following tools:

{tools}

Use the following format:

Question: the input question you must answer
Thought: you should always think about what to do
Action: the action to take, should be one of [{tool_names}]
Action Input: the input to the action
Observation: the result of the action
... (this Thought/Action/Action Input/Observation can repeat N times)
Thought: I now know the final answer
Final Answer: the final answer to the original input question

Begin!

Question: {input}
Thought:{agent_scratchpad}`

// renderPrompt 单遍替换占位符，问题与观察中的花括号原样保留
func renderPrompt(tpl string, tools []tool.Descriptor, question string, pad *Scratchpad) string {
	menu := make([]string, 0, len(tools))
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		menu = append(menu, t.Name+": "+t.Description)
		names = append(names, t.Name)
	}
	r := strings.NewReplacer(
		PlaceholderTools, strings.Join(menu, "\n"),
		PlaceholderToolNames, strings.Join(names, ", "),
		PlaceholderQuestion, question,
		PlaceholderScratchpad, pad.Render(),
	)
	return r.Replace(ensurePlaceholders(tpl))
}

// ensurePlaceholders 自定义模板缺少的部分追加在末尾，工具清单、问题与草稿始终出现
func ensurePlaceholders(tpl string) string {
	if !strings.Contains(tpl, PlaceholderTools) {
		tpl += "\n\nTools:\n" + PlaceholderTools + "\nValid tool names: [" + PlaceholderToolNames + "]"
	}
	if !strings.Contains(tpl, PlaceholderQuestion) {
		tpl += "\n\nQuestion: " + PlaceholderQuestion
	}
	if !strings.Contains(tpl, PlaceholderScratchpad) {
		tpl += "\nThought:" + PlaceholderScratchpad
	}
	return tpl
}
