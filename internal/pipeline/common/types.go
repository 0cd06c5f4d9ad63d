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

package common

import (
	"strconv"
	"time"
)

// 切片元数据键
const (
	MetaSource     = "source"
	MetaPage       = "page"
	MetaChunkIndex = "chunk_index"
)

// Page 一页（或一个纯文本文件）的抽取结果
type Page struct {
	Source string `json:"source"` // 原始输入路径，原样保留
	Number int    `json:"number"` // 从 1 开始
	Text   string `json:"text"`
}

// Chunk 切片
type Chunk struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Source    string    `json:"source"`
	Page      int       `json:"page"`
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding,omitempty"`
}

// Metadata 切片写入索引时携带的元数据
func (c *Chunk) Metadata() map[string]string {
	return map[string]string{
		MetaSource:     c.Source,
		MetaPage:       strconv.Itoa(c.Page),
		MetaChunkIndex: strconv.Itoa(c.Index),
	}
}

// Report 一次入库的结果
type Report struct {
	Documents int           `json:"documents"`
	Pages     int           `json:"pages"`
	Chunks    int           `json:"chunks"`
	Location  string        `json:"location"` // 快照目录或 redis 索引名
	Duration  time.Duration `json:"duration"`
}
