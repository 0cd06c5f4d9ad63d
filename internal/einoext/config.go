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
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"research-agent/pkg/config"
)

const (
	defaultCollection = "research"
	// 与 eino-ext redis 组件默认字段名一致
	fieldContent       = "content"
	fieldVectorContent = "vector_content"
	fieldDistance      = "distance"
)

// RedisOptionsFromVectorConfig 从 VectorConfig 构造 redis.Options（type=redis 时使用）
func RedisOptionsFromVectorConfig(cfg config.VectorConfig) (*redis.Options, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
	}
	if cfg.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	if cfg.DB != "" {
		db, err := strconv.Atoi(cfg.DB)
		if err != nil || db < 0 {
			return nil, fmt.Errorf("storage.vector.db 非法: %q", cfg.DB)
		}
		opts.DB = db
	}
	// Redis Stack 向量检索需 Protocol 2、UnstableResp3 true（见 eino-ext retriever 注释）
	opts.Protocol = 2
	opts.UnstableResp3 = true
	return opts, nil
}

func collectionName(cfg config.VectorConfig) string {
	if cfg.Collection == "" {
		return defaultCollection
	}
	return cfg.Collection
}

// activeKey 记录当前生效索引名的键
func activeKey(collection string) string {
	return collection + ":active"
}

// generationName 每次入库的新索引名
func generationName(collection string, nanos int64) string {
	return collection + ":g" + strconv.FormatInt(nanos, 10)
}

// keyPrefix 索引对应的 HASH 键前缀
func keyPrefix(index string) string {
	if strings.HasSuffix(index, ":") {
		return index
	}
	return index + ":"
}
