package einoext

import (
	"context"
	"errors"
	"fmt"
	"sync"

	redisretriever "github.com/cloudwego/eino-ext/components/retriever/redis"
	einoembed "github.com/cloudwego/eino/components/embedding"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"research-agent/internal/pipeline/common"
	"research-agent/internal/storage/vector"
)

// RedisRetriever 每次查询读取 active 指针，委托给对应索引的 eino-ext redis retriever
type RedisRetriever struct {
	client     *redis.Client
	collection string
	embedder   einoembed.Embedder
	topK       int

	mu    sync.Mutex
	byIdx map[string]einoretriever.Retriever
}

func NewRedisRetriever(client *redis.Client, collection string, embedder einoembed.Embedder, topK int) *RedisRetriever {
	if collection == "" {
		collection = defaultCollection
	}
	if topK <= 0 {
		topK = 5
	}
	return &RedisRetriever{
		client:     client,
		collection: collection,
		embedder:   embedder,
		topK:       topK,
		byIdx:      make(map[string]einoretriever.Retriever),
	}
}

func (r *RedisRetriever) Retrieve(ctx context.Context, query string, opts ...einoretriever.Option) ([]*schema.Document, error) {
	name, err := r.client.Get(ctx, activeKey(r.collection)).Result()
	if errors.Is(err, redis.Nil) || (err == nil && name == "") {
		return nil, vector.ErrIndexUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("读取 active 索引失败: %w", err)
	}
	ret, err := r.retrieverFor(ctx, name)
	if err != nil {
		return nil, err
	}
	return ret.Retrieve(ctx, query, opts...)
}

func (r *RedisRetriever) retrieverFor(ctx context.Context, name string) (einoretriever.Retriever, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ret, ok := r.byIdx[name]; ok {
		return ret, nil
	}
	ret, err := redisretriever.NewRetriever(ctx, &redisretriever.RetrieverConfig{
		Client:    r.client,
		Index:     name,
		TopK:      r.topK,
		Embedding: r.embedder,
		ReturnFields: []string{
			fieldContent,
			common.MetaSource,
			common.MetaPage,
			common.MetaChunkIndex,
			fieldDistance,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("redis retriever: %w", err)
	}
	// 旧索引已被删除，只保留当前这一个
	clear(r.byIdx)
	r.byIdx[name] = ret
	return ret, nil
}
