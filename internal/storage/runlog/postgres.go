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

package runlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `CREATE TABLE IF NOT EXISTS research_runs (
	id          TEXT PRIMARY KEY,
	question    TEXT NOT NULL,
	status      TEXT NOT NULL,
	answer      TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT '',
	iterations  INT NOT NULL DEFAULT 0,
	tools       JSONB NOT NULL DEFAULT '[]',
	duration_ms BIGINT NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS research_runs_created_at_idx ON research_runs (created_at DESC);`

// PostgresStore 基于 pgx 连接池的运行记录表
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore 连接数据库并确保表存在
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("解析 runlog dsn 失败: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("连接 runlog 数据库失败: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("初始化 research_runs 表失败: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Append(ctx context.Context, rec Record) error {
	tools, err := json.Marshal(nonNil(rec.Tools))
	if err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO research_runs (id, question, status, answer, reason, iterations, tools, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Question, rec.Status, rec.Answer, rec.Reason, rec.Iterations, tools, rec.Duration.Milliseconds(), rec.CreatedAt)
	return err
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, question, status, answer, reason, iterations, tools, duration_ms, created_at
		 FROM research_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		var tools []byte
		var durMs int64
		if err := rows.Scan(&rec.ID, &rec.Question, &rec.Status, &rec.Answer, &rec.Reason, &rec.Iterations, &tools, &durMs, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if len(tools) > 0 {
			if err := json.Unmarshal(tools, &rec.Tools); err != nil {
				return nil, fmt.Errorf("解析 tools 字段失败: %w", err)
			}
		}
		rec.Duration = time.Duration(durMs) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
