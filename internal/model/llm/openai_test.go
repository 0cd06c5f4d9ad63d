package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClient_ChatWithContext(t *testing.T) {
	var got chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gsk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Final Answer: Paris."}}]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient("llama-3.1-8b-instant", "gsk-test", srv.URL+"/", WithRetryCount(0))
	require.NoError(t, err)
	out, err := c.ChatWithContext(context.Background(), []Message{{Role: "user", Content: "capital of France?"}}, GenerateOptions{
		Temperature: 0.3,
		MaxTokens:   256,
		Stop:        []string{"\nObservation:"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Final Answer: Paris.", out)
	assert.Equal(t, "llama-3.1-8b-instant", got.Model)
	assert.InDelta(t, 0.3, got.Temperature, 1e-9)
	assert.Equal(t, []string{"\nObservation:"}, got.Stop)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "capital of France?", got.Messages[0].Content)
}

func TestOpenAIClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient("m", "bad", srv.URL, WithRetryCount(0))
	require.NoError(t, err)
	_, err = c.Chat([]Message{{Role: "user", Content: "hi"}}, GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient("m", "k", srv.URL, WithRetryCount(0))
	require.NoError(t, err)
	_, err = c.Chat([]Message{{Role: "user", Content: "hi"}}, GenerateOptions{})
	assert.Error(t, err)
}

func TestNewClient_Types(t *testing.T) {
	c, err := NewClient("openai", "groq", "llama-3.1-8b-instant", "k", "https://api.groq.com/openai/v1")
	require.NoError(t, err)
	assert.Equal(t, "groq", c.Provider())
	assert.Equal(t, "llama-3.1-8b-instant", c.Model())

	c, err = NewClient("claude", "claude", "", "k", "")
	require.NoError(t, err)
	assert.Equal(t, "claude", c.Provider())

	c, err = NewClient("gemini", "gemini", "", "k", "")
	require.NoError(t, err)
	assert.Equal(t, "gemini", c.Provider())

	_, err = NewClient("bogus", "x", "m", "k", "")
	assert.Error(t, err)
}

func TestOpenAIClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	}))
	defer srv.Close()

	c, err := NewClient("openai", "groq", "m", "k", srv.URL, WithTimeout(50*time.Millisecond), WithRetryCount(0))
	require.NoError(t, err)
	start := time.Now()
	_, err = c.Chat([]Message{{Role: "user", Content: "hi"}}, GenerateOptions{})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
