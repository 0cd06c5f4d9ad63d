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

package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	einodoc "github.com/cloudwego/eino/components/document"
	einoembed "github.com/cloudwego/eino/components/embedding"
	einoindexer "github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/sync/errgroup"

	"research-agent/internal/pipeline/common"
	"research-agent/internal/storage/vector"
	"research-agent/pkg/log"
	"research-agent/pkg/metrics"
	"research-agent/pkg/tracing"
)

// Config 入库管线配置
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int // 每批向量化的块数
	Concurrency  int // 并发加载文件数
	Collection   string
	Model        string
	Dimension    int
}

// Pipeline 加载 → 切分 → 向量化 → 写入新一代索引 → 发布
type Pipeline struct {
	cfg      Config
	loader   einodoc.Loader
	splitter einodoc.Transformer
	embedder einoembed.Embedder
	sink     Sink
	logger   *log.Logger
}

// Option 替换默认组件
type Option func(*Pipeline)


// WithLogger 设置日志
func WithLogger(l *log.Logger) Option { return func(p *Pipeline) { p.logger = l } }

func NewPipeline(cfg Config, embedder einoembed.Embedder, sink Sink, opts ...Option) (*Pipeline, error) {
	if embedder == nil || sink == nil {
		return nil, fmt.Errorf("%w: 入库管线需要 embedder 与 sink", common.ErrInvalidInput)
	}
	splitter, err := NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	p := &Pipeline{
		cfg:      cfg,
		loader:   NewFileLoader(),
		splitter: splitter,
		embedder: embedder,
		sink:     sink,
		logger:   log.Discard(),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Ingest 全量重建索引。任一文件失败则不写入任何内容，旧索引保持可用。
func (p *Pipeline) Ingest(ctx context.Context, paths []string) (report *common.Report, err error) {
	start := time.Now()
	ctx, span := tracing.StartIngestSpan(ctx, len(paths))
	defer func() { tracing.EndSpan(span, err) }()

	if len(paths) == 0 {
		return nil, common.NewPipelineError("load", "未指定输入文件", common.ErrNoDocuments)
	}

	perFile := make([][]*schema.Document, len(paths))
	pageCounts := make([]int, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, path := range paths {
		g.Go(func() error {
			pages, err := p.loader.Load(gctx, einodoc.Source{URI: path})
			if err != nil {
				return common.NewPipelineError("load", path, err)
			}
			chunks, err := p.splitter.Transform(gctx, pages)
			if err != nil {
				return common.NewPipelineError("split", path, err)
			}
			perFile[i] = chunks
			pageCounts[i] = len(pages)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var docs []*schema.Document
	pages := 0
	for i := range perFile {
		docs = append(docs, perFile[i]...)
		pages += pageCounts[i]
	}
	if len(docs) == 0 {
		return nil, common.NewPipelineError("split", "未抽取到任何文本", common.ErrNoDocuments)
	}

	gen, err := p.sink.Begin(ctx, vector.Index{
		Name:      p.cfg.Collection,
		Dimension: p.cfg.Dimension,
		Model:     p.cfg.Model,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, common.NewPipelineError("index", "创建索引失败", err)
	}

	for i := 0; i < len(docs); i += p.cfg.BatchSize {
		end := min(i+p.cfg.BatchSize, len(docs))
		if _, err := gen.Store(ctx, docs[i:end], einoindexer.WithEmbedding(p.embedder)); err != nil {
			return nil, p.abort(ctx, gen, common.NewPipelineError("index", fmt.Sprintf("batch %d", i/p.cfg.BatchSize), err))
		}
		p.logger.Debug("入库批次完成", "batch", i/p.cfg.BatchSize, "chunks", end-i)
	}

	location, err := gen.Commit(ctx)
	if err != nil {
		return nil, p.abort(ctx, gen, common.NewPipelineError("commit", "发布索引失败", err))
	}

	metrics.IngestChunksTotal.Add(float64(len(docs)))
	report = &common.Report{
		Documents: len(paths),
		Pages:     pages,
		Chunks:    len(docs),
		Location:  location,
		Duration:  time.Since(start),
	}
	p.logger.Info("入库完成", "documents", report.Documents, "pages", report.Pages, "chunks", report.Chunks, "location", location, "duration", report.Duration)
	return report, nil
}

func (p *Pipeline) abort(ctx context.Context, gen Generation, cause error) error {
	if err := gen.Abort(context.WithoutCancel(ctx)); err != nil {
		p.logger.Warn("丢弃未完成的索引失败", "error", err)
		return errors.Join(cause, err)
	}
	return cause
}
