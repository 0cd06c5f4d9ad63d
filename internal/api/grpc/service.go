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

// Package grpc 提供 gRPC 提问服务，与 HTTP /query 能力对齐；消息使用 google.protobuf.Struct，无需生成代码。
package grpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"research-agent/internal/agent"
)

// 服务与方法名
const (
	ServiceName = "research.v1.ResearchService"
	AskMethod   = "/" + ServiceName + "/Ask"
)

// Asker 回答研究问题；*agent.Agent 满足该接口
type Asker interface {
	Run(ctx context.Context, question string) (*agent.Result, error)
}

// ResearchServer Ask 服务端接口
type ResearchServer interface {
	Ask(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// Server gRPC 服务端，持有 Agent
type Server struct {
	agent   Asker
	timeout time.Duration
}

// ServerOption 可选配置
type ServerOption func(*Server)

// WithTimeout 单次提问的最长执行时间，与 HTTP api.timeout 一致；<=0 表示不限制
func WithTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.timeout = d }
}

// NewServer 根据注入的 Agent 创建 gRPC Server
func NewServer(a Asker, opts ...ServerOption) *Server {
	s := &Server{agent: a}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register 注册 ResearchService 到 grpc.Server
func (s *Server) Register(grpcServer *grpc.Server) {
	grpcServer.RegisterService(&ServiceDesc, s)
}

// Ask 请求字段 question；响应字段 answer、success
func (s *Server) Ask(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	question := strings.TrimSpace(req.GetFields()["question"].GetStringValue())
	if question == "" {
		return nil, status.Error(codes.InvalidArgument, agent.ErrEmptyQuestion.Error())
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	res, err := s.agent.Run(ctx, question)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, status.Error(codes.DeadlineExceeded, "Agent error: "+err.Error())
		}
		if errors.Is(err, agent.ErrCancelled) || errors.Is(err, context.Canceled) {
			return nil, status.Error(codes.Canceled, "Agent error: "+err.Error())
		}
		return nil, status.Error(codes.Internal, "Agent error: "+err.Error())
	}
	return structpb.NewStruct(map[string]any{
		"answer":  res.Answer,
		"success": true,
	})
}

func askHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ResearchServer).Ask(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AskMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ResearchServer).Ask(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc research.v1.ResearchService
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ResearchServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ask", Handler: askHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "research/v1/research.proto",
}

// Ask 客户端调用，返回 answer
func Ask(ctx context.Context, conn grpc.ClientConnInterface, question string) (string, error) {
	req, err := structpb.NewStruct(map[string]any{"question": question})
	if err != nil {
		return "", err
	}
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, AskMethod, req, out); err != nil {
		return "", err
	}
	return out.GetFields()["answer"].GetStringValue(), nil
}
