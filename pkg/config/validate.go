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

package config

import (
	"errors"
	"fmt"
)

// ErrMissingCredential 启动时缺少必需凭据
var ErrMissingCredential = errors.New("missing credential")

// Validate 启动期校验；缺少凭据或取值非法时返回错误，进程应拒绝启动
func (c *Config) Validate() error {
	errs := c.validateAgent()
	errs = append(errs, c.validateIngest()...)
	return joinValidation(errs)
}

// ValidateIngest 仅校验入库所需配置（embedding、向量存储、切分、secrets），不要求 LLM 与搜索凭据
func (c *Config) ValidateIngest() error {
	return joinValidation(c.validateIngest())
}

func joinValidation(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("配置校验失败: %w", errors.Join(errs...))
}

func (c *Config) validateAgent() []error {
	var errs []error
	if c.Agent.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("agent.max_iterations 必须大于 0，当前 %d", c.Agent.MaxIterations))
	}
	if c.Agent.MaxParseErrors <= 0 {
		errs = append(errs, fmt.Errorf("agent.max_parse_errors 必须大于 0，当前 %d", c.Agent.MaxParseErrors))
	}

	if ref, err := c.LLMModel(); err != nil {
		errs = append(errs, err)
	} else if ref.APIKey == "" {
		errs = append(errs, fmt.Errorf("%w: LLM provider %q 的 api_key 未配置", ErrMissingCredential, ref.Provider))
	}

	switch c.Search.Provider {
	case "serpapi":
		if c.Search.APIKey == "" {
			errs = append(errs, fmt.Errorf("%w: search.api_key 未配置（SERPAPI_API_KEY）", ErrMissingCredential))
		}
	default:
		errs = append(errs, fmt.Errorf("不支持的 search.provider: %q", c.Search.Provider))
	}

	switch c.Storage.Cache.Type {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("不支持的缓存类型: %q", c.Storage.Cache.Type))
	}

	switch c.Storage.RunLog.Type {
	case "", "none", "memory":
	case "postgres":
		if c.Storage.RunLog.DSN == "" {
			errs = append(errs, errors.New("storage.runlog.type=postgres 时 dsn 必填"))
		}
	default:
		errs = append(errs, fmt.Errorf("不支持的 runlog 类型: %q", c.Storage.RunLog.Type))
	}
	return errs
}

func (c *Config) validateIngest() []error {
	var errs []error
	if ref, err := c.EmbeddingModel(); err != nil {
		errs = append(errs, err)
	} else {
		if ref.Type != "local" && ref.APIKey == "" {
			errs = append(errs, fmt.Errorf("%w: Embedding provider %q 的 api_key 未配置", ErrMissingCredential, ref.Provider))
		}
		if ref.Info.Dimension <= 0 {
			errs = append(errs, fmt.Errorf("embedding 模型 %q 未配置 dimension", ref.Info.Name))
		}
	}

	switch c.Storage.Vector.Type {
	case "memory":
		if c.Storage.Vector.IndexDir == "" {
			errs = append(errs, errors.New("storage.vector.index_dir 未配置"))
		}
	case "redis":
	default:
		errs = append(errs, fmt.Errorf("不支持的向量存储类型: %q", c.Storage.Vector.Type))
	}

	in := c.Storage.Ingest
	if in.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("storage.ingest.chunk_size 必须大于 0，当前 %d", in.ChunkSize))
	} else if in.ChunkOverlap < 0 || in.ChunkOverlap >= in.ChunkSize {
		errs = append(errs, fmt.Errorf("storage.ingest.chunk_overlap 须在 [0, chunk_size) 内，当前 %d", in.ChunkOverlap))
	}

	switch c.Secrets.Provider {
	case "", "env", "memory", "vault":
	default:
		errs = append(errs, fmt.Errorf("不支持的 secrets.provider: %q", c.Secrets.Provider))
	}
	return errs
}
