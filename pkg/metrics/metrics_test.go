package metrics

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePrometheus(t *testing.T) {
	AgentRunsTotal.WithLabelValues("finished").Inc()
	ToolDuration.WithLabelValues("Citation_Generator").Observe(0.01)

	var buf bytes.Buffer
	require.NoError(t, WritePrometheus(&buf))
	out := buf.String()
	assert.Contains(t, out, `research_agent_runs_total{outcome="finished"}`)
	assert.Contains(t, out, "research_tool_duration_seconds_bucket")
	assert.Contains(t, out, "# TYPE research_agent_iterations histogram")
}
