// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-agent/internal/agent"
	"research-agent/internal/storage/runlog"
)

type fakeAsker struct {
	answer   string
	err      error
	question string
	deadline bool
}

func (f *fakeAsker) Run(ctx context.Context, question string) (*agent.Result, error) {
	f.question = question
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	return &agent.Result{Answer: f.answer, Iterations: 1}, nil
}

func jsonBody(s string) *ut.Body {
	return &ut.Body{Body: bytes.NewReader([]byte(s)), Len: len(s)}
}

func emptyBody() *ut.Body {
	return &ut.Body{Body: bytes.NewReader(nil), Len: 0}
}

func serve(method, path string, handler app.HandlerFunc, body *ut.Body) *ut.ResponseRecorder {
	h := server.Default(server.WithHostPorts(":0"))
	h.Handle(method, path, handler)
	return ut.PerformRequest(h.Engine, method, path, body, ut.Header{Key: "Content-Type", Value: "application/json"})
}

func decode(t *testing.T, w *ut.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Result().Body(), &out))
	return out
}

func TestHealthCheck(t *testing.T) {
	handler := NewHandler(nil, nil)
	w := serve("GET", "/health", handler.HealthCheck, emptyBody())
	require.Equal(t, 200, w.Result().StatusCode())
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "API is running", body["message"])
}

func TestIndex(t *testing.T) {
	handler := NewHandler(nil, nil)
	w := serve("GET", "/", handler.Index, emptyBody())
	require.Equal(t, 200, w.Result().StatusCode())
	body := decode(t, w)
	assert.Equal(t, "running", body["status"])
	assert.Contains(t, body["endpoints"], "/query")
}

func TestAsk_Success(t *testing.T) {
	asker := &fakeAsker{answer: "Paris."}
	handler := NewHandler(asker, nil, WithQueryTimeout(time.Minute))

	w := serve("POST", "/query", handler.Ask, jsonBody(`{"question":"  What is the capital of France?  "}`))
	require.Equal(t, 200, w.Result().StatusCode())
	assert.JSONEq(t, `{"answer":"Paris.","success":true}`, string(w.Result().Body()))
	assert.Equal(t, "What is the capital of France?", asker.question)
	assert.True(t, asker.deadline)
}

func TestAsk_EmptyQuestion(t *testing.T) {
	asker := &fakeAsker{answer: "unused"}
	handler := NewHandler(asker, nil)

	for _, b := range []string{`{"question":""}`, `{"question":"   "}`, `{}`} {
		w := serve("POST", "/query", handler.Ask, jsonBody(b))
		require.Equal(t, 400, w.Result().StatusCode(), b)
		assert.JSONEq(t, `{"detail":"Question cannot be empty"}`, string(w.Result().Body()))
	}
	assert.Empty(t, asker.question)
}

func TestAsk_InvalidBody(t *testing.T) {
	handler := NewHandler(&fakeAsker{}, nil)
	w := serve("POST", "/query", handler.Ask, jsonBody(`{"question":`))
	require.Equal(t, 400, w.Result().StatusCode())
	assert.Equal(t, "Invalid request body", decode(t, w)["detail"])
}

func TestAsk_AgentFailure(t *testing.T) {
	handler := NewHandler(&fakeAsker{err: agent.ErrBudgetExhausted}, nil)
	w := serve("POST", "/api/ask", handler.Ask, jsonBody(`{"question":"hard one"}`))
	require.Equal(t, 500, w.Result().StatusCode())
	assert.Equal(t, "Agent error: iteration budget exhausted", decode(t, w)["detail"])
}

func TestReloadIndex(t *testing.T) {
	w := serve("POST", "/api/index/reload", NewHandler(nil, nil).ReloadIndex, emptyBody())
	assert.Equal(t, 409, w.Result().StatusCode())

	ok := NewHandler(nil, nil, WithIndexReload(func() (int, error) { return 42, nil }))
	w = serve("POST", "/api/index/reload", ok.ReloadIndex, emptyBody())
	require.Equal(t, 200, w.Result().StatusCode())
	assert.JSONEq(t, `{"status":"reloaded","chunks":42}`, string(w.Result().Body()))

	bad := NewHandler(nil, nil, WithIndexReload(func() (int, error) { return 0, errors.New("corrupt snapshot") }))
	w = serve("POST", "/api/index/reload", bad.ReloadIndex, emptyBody())
	require.Equal(t, 500, w.Result().StatusCode())
	assert.Contains(t, decode(t, w)["detail"], "corrupt snapshot")
}

func TestListRuns(t *testing.T) {
	store := runlog.NewMemoryStore(10)
	ctx := context.Background()
	for _, q := range []string{"first", "second", "third"} {
		require.NoError(t, store.Append(ctx, runlog.Record{ID: q, Question: q, Status: runlog.StatusFinished}))
	}
	handler := NewHandler(nil, nil, WithRunLog(store))

	h := server.Default(server.WithHostPorts(":0"))
	h.GET("/api/runs", handler.ListRuns)

	w := ut.PerformRequest(h.Engine, "GET", "/api/runs?limit=2", emptyBody())
	require.Equal(t, 200, w.Result().StatusCode())
	var out struct {
		Runs  []runlog.Record `json:"runs"`
		Count int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Result().Body(), &out))
	require.Equal(t, 2, out.Count)
	assert.Equal(t, "third", out.Runs[0].ID)
	assert.Equal(t, "second", out.Runs[1].ID)

	w = ut.PerformRequest(h.Engine, "GET", "/api/runs?limit=abc", emptyBody())
	assert.Equal(t, 400, w.Result().StatusCode())
}

func TestListRuns_DefaultEmpty(t *testing.T) {
	w := serve("GET", "/api/runs", NewHandler(nil, nil).ListRuns, emptyBody())
	require.Equal(t, 200, w.Result().StatusCode())
	assert.JSONEq(t, `{"runs":[],"count":0}`, string(w.Result().Body()))
}

func TestMetrics(t *testing.T) {
	w := serve("GET", "/metrics", NewHandler(nil, nil).Metrics, emptyBody())
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Contains(t, string(w.Result().Header.ContentType()), "text/plain")
	assert.Contains(t, string(w.Result().Body()), "research_agent_parse_errors_total")
}
