package einoext

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	redisindexer "github.com/cloudwego/eino-ext/components/indexer/redis"
	einoembed "github.com/cloudwego/eino/components/embedding"
	einoindexer "github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"research-agent/internal/pipeline/ingest"
	"research-agent/internal/storage/vector"
	"research-agent/pkg/log"
)

const defaultBatchSize = 100

// RedisSink 每次入库在 Redis Stack 中新建一个向量索引，Commit 时切换 active 指针并删除旧索引
type RedisSink struct {
	client     *redis.Client
	collection string
	embedder   einoembed.Embedder
	logger     *log.Logger
	now        func() time.Time
}

func NewRedisSink(client *redis.Client, collection string, embedder einoembed.Embedder, logger *log.Logger) *RedisSink {
	if collection == "" {
		collection = defaultCollection
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &RedisSink{client: client, collection: collection, embedder: embedder, logger: logger, now: time.Now}
}

func (s *RedisSink) Begin(ctx context.Context, info vector.Index) (ingest.Generation, error) {
	if info.Dimension <= 0 {
		return nil, fmt.Errorf("redis 向量索引需要 dimension")
	}
	name := generationName(s.collection, s.now().UnixNano())
	args := []any{
		"FT.CREATE", name,
		"ON", "HASH",
		"PREFIX", "1", keyPrefix(name),
		"SCHEMA",
		fieldContent, "TEXT",
		"source", "TAG",
		fieldVectorContent, "VECTOR", "FLAT", "6",
		"TYPE", "FLOAT32",
		"DIM", info.Dimension,
		"DISTANCE_METRIC", "COSINE",
	}
	if err := s.client.Do(ctx, args...).Err(); err != nil {
		return nil, fmt.Errorf("FT.CREATE %s 失败: %w", name, err)
	}
	idx, err := redisindexer.NewIndexer(ctx, &redisindexer.IndexerConfig{
		Client:    s.client,
		KeyPrefix: keyPrefix(name),
		BatchSize: defaultBatchSize,
		Embedding: s.embedder,
	})
	if err != nil {
		s.drop(context.WithoutCancel(ctx), name)
		return nil, fmt.Errorf("redis indexer: %w", err)
	}
	return &redisGeneration{sink: s, name: name, indexer: idx}, nil
}

func (s *RedisSink) drop(ctx context.Context, name string) {
	if err := s.client.Do(ctx, "FT.DROPINDEX", name, "DD").Err(); err != nil {
		s.logger.Warn("删除 redis 索引失败", "index", name, "error", err)
	}
}

type redisGeneration struct {
	sink    *RedisSink
	name    string
	indexer einoindexer.Indexer
	mu      sync.Mutex
	done    bool
}

func (g *redisGeneration) Store(ctx context.Context, docs []*schema.Document, opts ...einoindexer.Option) ([]string, error) {
	g.mu.Lock()
	done := g.done
	g.mu.Unlock()
	if done {
		return nil, errors.New("generation 已结束")
	}
	return g.indexer.Store(ctx, docs, opts...)
}

// Commit 切换 active 指针，随后删除上一代索引及其文档
func (g *redisGeneration) Commit(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return "", errors.New("generation 已结束")
	}
	g.done = true
	old, err := g.sink.client.SetArgs(ctx, activeKey(g.sink.collection), g.name, redis.SetArgs{Get: true}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("切换 active 索引失败: %w", err)
	}
	if old != "" && old != g.name {
		g.sink.drop(ctx, old)
	}
	return g.name, nil
}

func (g *redisGeneration) Abort(ctx context.Context) error {
	g.mu.Lock()
	g.done = true
	g.mu.Unlock()
	g.sink.drop(ctx, g.name)
	return nil
}
