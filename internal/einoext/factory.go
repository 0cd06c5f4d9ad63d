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

package einoext

import (
	"context"
	"fmt"

	einoembed "github.com/cloudwego/eino/components/embedding"
	"github.com/redis/go-redis/v9"

	"research-agent/pkg/config"
	"research-agent/pkg/log"
)

// RedisBackend type=redis 时共享一个客户端的 sink 与 retriever
type RedisBackend struct {
	Client    *redis.Client
	Sink      *RedisSink
	Retriever *RedisRetriever
}

// NewRedisBackend 连接 Redis Stack 并构造 sink/retriever
func NewRedisBackend(ctx context.Context, cfg config.VectorConfig, embedder einoembed.Embedder, logger *log.Logger) (*RedisBackend, error) {
	opts, err := RedisOptionsFromVectorConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("redis options: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	coll := collectionName(cfg)
	return &RedisBackend{
		Client:    client,
		Sink:      NewRedisSink(client, coll, embedder, logger),
		Retriever: NewRedisRetriever(client, coll, embedder, cfg.TopK),
	}, nil
}

func (b *RedisBackend) Close() error {
	return b.Client.Close()
}
