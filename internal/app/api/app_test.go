package api

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-agent/internal/app"
	"research-agent/pkg/config"
	"research-agent/pkg/log"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("SERPAPI_API_KEY", "serp-test")
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Storage.Vector.IndexDir = t.TempDir()
	cfg.Log.Level = "error"

	b, err := app.NewBootstrapWithLogger(context.Background(), cfg, log.Discard())
	require.NoError(t, err)
	a, err := NewApp(b, "127.0.0.1:0")
	require.NoError(t, err)
	return a
}

func TestNewApp_BuildsServer(t *testing.T) {
	a := newTestApp(t)
	defer a.Shutdown(context.Background())

	require.NotNil(t, a.hertz)
	w := ut.PerformRequest(a.hertz.Engine, "GET", "/health", &ut.Body{Body: bytes.NewReader(nil), Len: 0})
	assert.Equal(t, 200, w.Result().StatusCode())

	body := []byte(`{"question":"  "}`)
	w = ut.PerformRequest(a.hertz.Engine, "POST", "/query", &ut.Body{Body: bytes.NewReader(body), Len: len(body)})
	assert.Equal(t, 400, w.Result().StatusCode())
}

func TestApp_ShutdownBeforeRun(t *testing.T) {
	a := newTestApp(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, a.Shutdown(ctx))
	require.NoError(t, a.Shutdown(ctx))

	done := make(chan error, 1)
	go func() { done <- a.Run() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run should return immediately after Shutdown")
	}
}
