package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	calls int
}

func (s *stubClient) Chat(messages []Message, options GenerateOptions) (string, error) {
	return s.ChatWithContext(context.Background(), messages, options)
}

func (s *stubClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	s.calls++
	return "ok", nil
}

func (s *stubClient) Model() string    { return "stub-model" }
func (s *stubClient) Provider() string { return "stub" }

func TestLLMRateLimiter_ConcurrencySlot(t *testing.T) {
	l := NewLLMRateLimiter(map[string]LLMLimitConfig{
		"stub": {MaxConcurrent: 1},
	}, nil)

	release, err := l.Acquire(context.Background(), "stub", 10)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "stub", 10)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release() // idempotent
	release2, err := l.Acquire(context.Background(), "stub", 10)
	require.NoError(t, err)
	release2()
}

func TestLLMRateLimiter_CancelledContext(t *testing.T) {
	l := NewLLMRateLimiter(nil, &LLMLimitConfig{RequestsPerMinute: 1})
	ctx, cancel := context.WithCancel(context.Background())
	release, err := l.Acquire(ctx, "p", 0)
	require.NoError(t, err)
	release()

	cancel()
	_, err = l.Acquire(ctx, "p", 0)
	assert.Error(t, err)
}

func TestRateLimitedClient_Delegates(t *testing.T) {
	inner := &stubClient{}
	c := NewRateLimitedClient(inner, NewLLMRateLimiter(nil, nil))
	out, err := c.Chat([]Message{{Role: "user", Content: "hello"}}, GenerateOptions{MaxTokens: 16})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, "stub", c.Provider())
	assert.Equal(t, "stub-model", c.Model())
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 1, estimateTokens(nil, 0))
	assert.Equal(t, 2+10, estimateTokens([]Message{{Content: "12345678"}}, 10))
}
