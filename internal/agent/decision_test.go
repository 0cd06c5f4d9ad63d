package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecision_Finish(t *testing.T) {
	d, err := ParseDecision(" I now know the final answer\nFinal Answer:   Paris.  \n")
	require.NoError(t, err)
	fin, ok := d.(Finish)
	require.True(t, ok)
	assert.Equal(t, "Paris.", fin.Answer)
	assert.Equal(t, "I now know the final answer", fin.Thought)
}

func TestParseDecision_Act(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		tool    string
		input   string
		thought string
	}{
		{"plain", "Thought: look it up\nAction: Web_Search\nAction Input: go generics", "Web_Search", "go generics", "look it up"},
		{"quoted input", "Action: PDF_Retriever\nAction Input: \"attention\"", "PDF_Retriever", "attention", ""},
		{"multiline input", "Action: Citation_Generator\nAction Input: title\nauthors", "Citation_Generator", "title\nauthors", ""},
		{"extra spaces", "Action :  Web_Search  \n\nAction Input :  x ", "Web_Search", "x", ""},
		{"trailing observation dropped", "Action: Web_Search\nAction Input: q\nObservation: made up", "Web_Search", "q", ""},
		{"marker inside thought", "Thought: I should take Action: now\nAction: PDF_Retriever\nAction Input: q", "PDF_Retriever", "q", "I should take Action: now"},
		{"last action line wins", "Action: Web_Search\nAction: PDF_Retriever\nAction Input: q", "PDF_Retriever", "q", "Action: Web_Search"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDecision(tt.text)
			require.NoError(t, err)
			act, ok := d.(Act)
			require.True(t, ok)
			assert.Equal(t, tt.tool, act.Tool)
			assert.Equal(t, tt.input, act.Input)
			assert.Equal(t, tt.thought, act.Thought)
		})
	}
}

func TestParseDecision_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		reason string
	}{
		{"neither", "I think the answer is 42", "could not find"},
		{"both", "Action: Web_Search\nAction Input: x\nFinal Answer: y", "both"},
		{"action without input", "Action: Web_Search", "missing 'Action Input:'"},
		{"empty tool", "Action:\nAction Input: x", "missing tool name"},
		{"action inline only", "Thought: take Action: Web_Search\nAction Input: x", "missing 'Action:' line"},
		{"input on same line", "Action: Web_Search Action Input: x", "missing 'Action Input:'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDecision(tt.text)
			assert.Nil(t, d)
			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Contains(t, pe.Reason, tt.reason)
			assert.Contains(t, err.Error(), "Invalid format: ")
		})
	}
}

func TestScratchpad_Render(t *testing.T) {
	var pad Scratchpad
	assert.Equal(t, "", pad.Render())

	pad.Append(Step{Thought: "search", Action: "Web_Search", Input: "q", Observation: "r"})
	pad.Append(Step{Thought: "hmm", Observation: "Invalid format: x"})
	assert.Equal(t,
		" search\nAction: Web_Search\nAction Input: q\nObservation: r\nThought:"+
			" hmm\nObservation: Invalid format: x\nThought:",
		pad.Render())
	assert.Equal(t, 2, pad.Len())

	steps := pad.Steps()
	steps[0].Observation = "changed"
	assert.Equal(t, "r", pad.Steps()[0].Observation)
}

func TestState_Transitions(t *testing.T) {
	assert.Equal(t, Acting, Thinking.Next(Acting))
	assert.Equal(t, Thinking, Acting.Next(Thinking))
	assert.Equal(t, Finished, Thinking.Next(Finished))
	assert.True(t, Finished.Terminal())
	assert.False(t, Acting.Terminal())
	assert.Panics(t, func() { Acting.Next(Finished) })
	assert.Panics(t, func() { Finished.Next(Thinking) })
	assert.Equal(t, "failed", Failed.String())
}

func TestFailure_Is(t *testing.T) {
	f := newFailure(ErrParseLimit, 3, errors.New("cause"))
	assert.True(t, errors.Is(f, ErrParseLimit))
	assert.False(t, errors.Is(f, ErrCancelled))
	assert.Equal(t, "unrecoverable parse errors: cause", f.Error())
	assert.Equal(t, "iteration budget exhausted", newFailure(ErrBudgetExhausted, 2, nil).Error())
}
