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

package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	einoretriever "github.com/cloudwego/eino/components/retriever"

	"research-agent/internal/agent"
	"research-agent/internal/einoext"
	"research-agent/internal/model/embedding"
	"research-agent/internal/model/llm"
	"research-agent/internal/pipeline/ingest"
	"research-agent/internal/pipeline/query"
	"research-agent/internal/storage/cache"
	"research-agent/internal/storage/runlog"
	"research-agent/internal/storage/vector"
	"research-agent/internal/tool/builtin"
	"research-agent/internal/tool/registry"
	"research-agent/pkg/config"
	"research-agent/pkg/log"
	"research-agent/pkg/secrets"
)

// 快照热加载的去抖间隔
const watchDebounce = 500 * time.Millisecond

// Bootstrap 统一初始化：供 api 与 cli 复用，避免在 cmd 内写业务与 pipeline
type Bootstrap struct {
	Config    *config.Config
	Logger    *log.Logger
	LLM       llm.Client
	Embedder  embedding.Embedder
	Index     *vector.Handle // 仅 memory 后端
	Retriever einoretriever.Retriever
	Sink      ingest.Sink
	Cache     cache.Store
	RunLog    runlog.Store
	Registry  *registry.Registry
	Agent     *agent.Agent
	Pipeline  *ingest.Pipeline

	redis       *einoext.RedisBackend
	watcher     *vector.Watcher
	stopWatcher context.CancelFunc
}

// NewBootstrap 根据配置创建 Bootstrap：凭据 → 校验 → 模型 → 索引 → 缓存 → 工具 → Agent → 入库管线。
// 缺少凭据或配置非法时返回错误，进程应拒绝启动。
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		return nil, errors.New("配置为空")
	}
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return NewBootstrapWithLogger(ctx, cfg, logger)
}

// NewBootstrapWithLogger 同 NewBootstrap，日志由调用方提供；失败时 logger 随 Bootstrap 一并关闭
func NewBootstrapWithLogger(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Bootstrap, error) {
	b := &Bootstrap{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = b.Close()
		}
	}()

	if err := b.prepare(ctx, cfg.Validate); err != nil {
		return nil, err
	}

	var err error
	if b.LLM, err = NewLLMClientFromConfig(cfg); err != nil {
		return nil, fmt.Errorf("初始化 LLM 客户端失败: %w", err)
	}
	if b.Embedder, err = embedding.NewFromConfig(cfg); err != nil {
		return nil, fmt.Errorf("初始化 embedding 失败: %w", err)
	}
	if err = b.initIndex(ctx, cfg.Storage.Vector.Watch); err != nil {
		return nil, err
	}
	if b.Cache, err = cache.NewCache(cfg.Storage.Cache); err != nil {
		return nil, fmt.Errorf("初始化缓存失败: %w", err)
	}
	if b.RunLog, err = runlog.New(ctx, cfg.Storage.RunLog); err != nil {
		return nil, fmt.Errorf("初始化运行记录存储失败: %w", err)
	}
	if err = b.initTools(); err != nil {
		return nil, err
	}
	if b.Agent, err = b.newAgent(); err != nil {
		return nil, err
	}
	if err = b.initPipeline(); err != nil {
		return nil, err
	}

	logger.Info("bootstrap 完成",
		"llm", b.LLM.Provider()+"/"+b.LLM.Model(),
		"embedding", b.Embedder.Model(),
		"vector", cfg.Storage.Vector.Type,
		"tools", b.Registry.Names(),
	)
	ok = true
	return b, nil
}

// NewIngestBootstrap 仅初始化入库所需组件（embedding → 索引 → 入库管线），不要求 LLM 与搜索凭据
func NewIngestBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		return nil, errors.New("配置为空")
	}
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return NewIngestBootstrapWithLogger(ctx, cfg, logger)
}

// NewIngestBootstrapWithLogger 同 NewIngestBootstrap，日志由调用方提供
func NewIngestBootstrapWithLogger(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Bootstrap, error) {
	b := &Bootstrap{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = b.Close()
		}
	}()

	if err := b.prepare(ctx, cfg.ValidateIngest); err != nil {
		return nil, err
	}
	var err error
	if b.Embedder, err = embedding.NewFromConfig(cfg); err != nil {
		return nil, fmt.Errorf("初始化 embedding 失败: %w", err)
	}
	if err = b.initIndex(ctx, false); err != nil {
		return nil, err
	}
	if err = b.initPipeline(); err != nil {
		return nil, err
	}
	logger.Info("ingest bootstrap 完成", "embedding", b.Embedder.Model(), "vector", cfg.Storage.Vector.Type)
	ok = true
	return b, nil
}

// prepare 回填凭据、校验配置并设置 unipdf license
func (b *Bootstrap) prepare(ctx context.Context, validate func() error) error {
	store, err := secrets.NewStore(b.Config.Secrets)
	if err != nil {
		return fmt.Errorf("初始化 secrets 失败: %w", err)
	}
	if err := ResolveCredentials(ctx, b.Config, store); err != nil {
		return err
	}
	if err := validate(); err != nil {
		return err
	}
	if key := b.Config.Storage.Ingest.UnipdfLicenseKey; key != "" {
		if err := ingest.SetPDFLicense(key); err != nil {
			return fmt.Errorf("设置 unipdf license 失败: %w", err)
		}
	}
	return nil
}

func (b *Bootstrap) initPipeline() error {
	cfg := b.Config
	p, err := ingest.NewPipeline(ingest.Config{
		ChunkSize:    cfg.Storage.Ingest.ChunkSize,
		ChunkOverlap: cfg.Storage.Ingest.ChunkOverlap,
		BatchSize:    cfg.Storage.Ingest.BatchSize,
		Concurrency:  cfg.Storage.Ingest.Concurrency,
		Collection:   cfg.Storage.Vector.Collection,
		Model:        b.Embedder.Model(),
		Dimension:    b.Embedder.Dimension(),
	}, b.Embedder, b.Sink, ingest.WithLogger(b.Logger))
	if err != nil {
		return fmt.Errorf("初始化入库管线失败: %w", err)
	}
	b.Pipeline = p
	return nil
}

func (b *Bootstrap) initIndex(ctx context.Context, watch bool) error {
	vc := b.Config.Storage.Vector
	switch vc.Type {
	case "redis":
		backend, err := einoext.NewRedisBackend(ctx, vc, b.Embedder, b.Logger)
		if err != nil {
			return fmt.Errorf("初始化 redis 向量后端失败: %w", err)
		}
		b.redis = backend
		b.Retriever = backend.Retriever
		b.Sink = backend.Sink
		return nil
	default:
		b.Index = vector.NewHandle(nil)
		idx, err := b.Index.Reload(vc.IndexDir)
		switch {
		case err == nil:
			b.Logger.Info("已加载索引快照", "dir", vc.IndexDir, "chunks", idx.Len(), "model", idx.Info().Model)
			if idx.Info().Dimension != b.Embedder.Dimension() {
				b.Logger.Warn("索引维度与当前 embedding 不一致，请重新入库",
					"index_dimension", idx.Info().Dimension, "embedding_dimension", b.Embedder.Dimension())
			}
		case vector.IsNotExist(err):
			b.Logger.Info("尚无索引快照，PDF_Retriever 在入库前不可用", "dir", vc.IndexDir)
		default:
			return fmt.Errorf("加载索引快照失败: %w", err)
		}

		retriever, err := query.NewMemoryRetriever(&query.MemoryRetrieverConfig{
			Handle:      b.Index,
			Embedder:    b.Embedder,
			DefaultTopK: vc.TopK,
		})
		if err != nil {
			return err
		}
		b.Retriever = retriever
		b.Sink = ingest.NewMemorySink(vc.IndexDir, b.Index)

		if watch {
			w, err := vector.NewWatcher(vc.IndexDir, b.Index, watchDebounce, b.Logger)
			if err != nil {
				return fmt.Errorf("监听索引目录失败: %w", err)
			}
			watchCtx, cancel := context.WithCancel(context.Background())
			w.Start(watchCtx)
			b.watcher, b.stopWatcher = w, cancel
		}
		return nil
	}
}

func (b *Bootstrap) initTools() error {
	cfg := b.Config
	b.Registry = registry.New()
	pdf := builtin.NewPDFRetrieverTool(b.Retriever, b.Embedder, cfg.Storage.Vector.TopK)
	web := builtin.NewWebSearchTool(builtin.WebSearchConfig{
		APIKey:   cfg.Search.APIKey,
		BaseURL:  cfg.Search.BaseURL,
		Engine:   cfg.Search.Engine,
		Num:      cfg.Search.Num,
		CacheTTL: config.ParseDuration(cfg.Search.CacheTTL, time.Hour),
	}, b.Cache, b.Logger)
	if err := builtin.RegisterBuiltin(b.Registry, pdf, web, builtin.NewCitationTool()); err != nil {
		return fmt.Errorf("注册工具失败: %w", err)
	}
	b.Registry.Seal()
	return nil
}

func (b *Bootstrap) newAgent() (*agent.Agent, error) {
	cfg := b.Config
	ref, err := cfg.LLMModel()
	if err != nil {
		return nil, err
	}
	opts := []agent.AgentOption{
		agent.WithMaxIterations(cfg.Agent.MaxIterations),
		agent.WithMaxParseErrors(cfg.Agent.MaxParseErrors),
		agent.WithMaxTokens(cfg.Agent.MaxTokens),
		agent.WithTemperature(ref.Info.Temperature),
		agent.WithLogger(b.Logger),
		agent.WithRunLog(b.RunLog),
	}
	if cfg.Agent.PromptFile != "" {
		tpl, err := os.ReadFile(cfg.Agent.PromptFile)
		if err != nil {
			return nil, fmt.Errorf("读取 prompt_file 失败: %w", err)
		}
		opts = append(opts, agent.WithPromptTemplate(string(tpl)))
	}
	return agent.New(b.LLM, b.Registry, opts...), nil
}

// ReloadIndex 从 index_dir 重新加载快照，返回生效切片数；仅 memory 后端可用
func (b *Bootstrap) ReloadIndex() (int, error) {
	if b.Index == nil {
		return 0, fmt.Errorf("向量后端 %q 不支持重新加载快照", b.Config.Storage.Vector.Type)
	}
	idx, err := b.Index.Reload(b.Config.Storage.Vector.IndexDir)
	if err != nil {
		return 0, err
	}
	return idx.Len(), nil
}

// Close 释放后台资源并关闭日志文件
func (b *Bootstrap) Close() error {
	var errs []error
	if b.stopWatcher != nil {
		b.stopWatcher()
		b.watcher.Stop()
		b.stopWatcher = nil
	}
	if b.Cache != nil {
		errs = append(errs, b.Cache.Close())
	}
	if b.RunLog != nil {
		errs = append(errs, b.RunLog.Close())
	}
	if b.redis != nil {
		errs = append(errs, b.redis.Close())
	}
	errs = append(errs, b.Logger.Close())
	return errors.Join(errs...)
}
