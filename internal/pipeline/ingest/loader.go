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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	einodoc "github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"

	"research-agent/internal/pipeline/common"
)

// FileLoader 本地文件加载器，实现 eino document.Loader：
// PDF 每页一个 Document，.txt/.md 整个文件一个 Document（page=1）
type FileLoader struct {
	maxSize int64
}

func NewFileLoader() *FileLoader {
	return &FileLoader{maxSize: 100 * 1024 * 1024} // 100MB
}

// SupportedExt 是否为可入库的扩展名
func SupportedExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt", ".md":
		return true
	}
	return false
}

// Load Source.URI 为本地路径或 file:// 路径；返回文档 MetaData 的 source 保持调用方传入的原值
func (l *FileLoader) Load(ctx context.Context, src einodoc.Source, opts ...einodoc.LoaderOption) ([]*schema.Document, error) {
	pages, err := l.LoadPages(ctx, src.URI)
	if err != nil {
		return nil, err
	}
	docs := make([]*schema.Document, 0, len(pages))
	for _, p := range pages {
		docs = append(docs, &schema.Document{
			Content: p.Text,
			MetaData: map[string]any{
				common.MetaSource: p.Source,
				common.MetaPage:   p.Number,
			},
		})
	}
	return docs, nil
}

// LoadPages 读取文件并按页返回文本
func (l *FileLoader) LoadPages(ctx context.Context, source string) ([]common.Page, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w: Source.URI 为空", common.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := source
	if strings.HasPrefix(strings.ToLower(path), "file://") {
		path = path[len("file://"):]
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrLoadingFailed, source, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s 是目录", common.ErrInvalidInput, source)
	}
	if info.Size() > l.maxSize {
		return nil, fmt.Errorf("文件大小超过限制: %d > %d", info.Size(), l.maxSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrLoadingFailed, source, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		pages, err := extractPDFPages(source, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", common.ErrLoadingFailed, source, err)
		}
		return pages, nil
	case ".txt", ".md":
		return []common.Page{{Source: source, Number: 1, Text: string(data)}}, nil
	default:
		return nil, fmt.Errorf("%w: %s", common.ErrUnsupportedFormat, source)
	}
}

// ExpandPaths 展开目录为其下可入库的文件（按路径排序），文件路径原样保留
func ExpandPaths(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", common.ErrLoadingFailed, p, err)
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && SupportedExt(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("遍历目录 %s 失败: %w", p, err)
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}
