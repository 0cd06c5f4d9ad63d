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

package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	apigrpc "research-agent/internal/api/grpc"
	"research-agent/internal/storage/runlog"
)

// apiClient 访问 research-agent HTTP API
type apiClient struct {
	rc *resty.Client
}

type apiError struct {
	Detail string `json:"detail"`
}

type queryResponse struct {
	Answer  string `json:"answer"`
	Success bool   `json:"success"`
}

type runsResponse struct {
	Runs  []runlog.Record `json:"runs"`
	Count int             `json:"count"`
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{rc: resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")}
}

func (c *apiClient) Query(ctx context.Context, question string) (*queryResponse, error) {
	var out queryResponse
	var apiErr apiError
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(map[string]string{"question": question}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/query")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, statusError("POST /query", resp, apiErr)
	}
	return &out, nil
}

func (c *apiClient) Runs(ctx context.Context, limit int) ([]runlog.Record, error) {
	var out runsResponse
	var apiErr apiError
	req := c.rc.R().SetContext(ctx).SetResult(&out).SetError(&apiErr)
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}
	resp, err := req.Get("/api/runs")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, statusError("GET /api/runs", resp, apiErr)
	}
	return out.Runs, nil
}

func (c *apiClient) Reload(ctx context.Context) (int, error) {
	var out struct {
		Status string `json:"status"`
		Chunks int    `json:"chunks"`
	}
	var apiErr apiError
	resp, err := c.rc.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&apiErr).
		Post("/api/index/reload")
	if err != nil {
		return 0, err
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, statusError("POST /api/index/reload", resp, apiErr)
	}
	return out.Chunks, nil
}

func statusError(op string, resp *resty.Response, apiErr apiError) error {
	if apiErr.Detail != "" {
		return fmt.Errorf("%s: %d %s", op, resp.StatusCode(), apiErr.Detail)
	}
	return fmt.Errorf("%s: %d %s", op, resp.StatusCode(), resp.String())
}

// askGRPC 通过 research.v1.ResearchService/Ask 提问
func askGRPC(ctx context.Context, addr, question string, timeout time.Duration) (string, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return "", fmt.Errorf("连接 gRPC 服务失败: %w", err)
	}
	defer conn.Close()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return apigrpc.Ask(ctx, conn, question)
}
