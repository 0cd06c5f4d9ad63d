package ingest

import (
	"context"
	"strings"
	"unicode/utf8"

	einodoc "github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"research-agent/internal/pipeline/common"
)

// DefaultSeparators 递归切分的分隔符，由粗到细
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter 递归字符切分：优先按段落切，超长片段再按更细的分隔符切，
// 合并后的块不超过 ChunkSize 个字符，相邻块保留约 ChunkOverlap 个字符的重叠。
// 实现 eino document.Transformer。
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// NewSplitter overlap 必须小于 size
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, common.NewValidationError("chunk_size", "必须大于 0")
	}
	if overlap < 0 || overlap >= size {
		return nil, common.NewValidationError("chunk_overlap", "须在 [0, chunk_size) 内")
	}
	return &Splitter{ChunkSize: size, ChunkOverlap: overlap, Separators: DefaultSeparators}, nil
}

// Transform 将页级文档切成块；同一 source 的 chunk_index 跨页连续递增
func (s *Splitter) Transform(ctx context.Context, src []*schema.Document, opts ...einodoc.TransformerOption) ([]*schema.Document, error) {
	var out []*schema.Document
	counters := make(map[string]int)
	for _, d := range src {
		if d == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		source, _ := d.MetaData[common.MetaSource].(string)
		page, _ := d.MetaData[common.MetaPage].(int)
		for _, text := range s.SplitText(d.Content) {
			idx := counters[source]
			counters[source]++
			out = append(out, &schema.Document{
				ID:      uuid.New().String(),
				Content: text,
				MetaData: map[string]any{
					common.MetaSource:     source,
					common.MetaPage:       page,
					common.MetaChunkIndex: idx,
				},
			})
		}
	}
	return out, nil
}

// SplitText 切分单段文本
func (s *Splitter) SplitText(text string) []string {
	seps := s.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	return s.split(text, seps)
}

func (s *Splitter) split(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var rest []string
	for i, cand := range separators {
		if cand == "" {
			sep = ""
			break
		}
		if strings.Contains(text, cand) {
			sep = cand
			rest = separators[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		pieces = splitRunes(text)
	} else {
		pieces = strings.Split(text, sep)
	}

	var final, good []string
	for _, p := range pieces {
		if p == "" {
			continue
		}
		if runeLen(p) < s.ChunkSize {
			good = append(good, p)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good, sep)...)
			good = nil
		}
		if len(rest) == 0 {
			final = append(final, p)
		} else {
			final = append(final, s.split(p, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good, sep)...)
	}
	return final
}

// merge 把小片段合并成块，并在块之间保留尾部重叠
func (s *Splitter) merge(pieces []string, sep string) []string {
	sepLen := runeLen(sep)
	var docs, current []string
	total := 0
	joinLen := func() int {
		if len(current) > 0 {
			return sepLen
		}
		return 0
	}
	for _, p := range pieces {
		l := runeLen(p)
		if total+l+joinLen() > s.ChunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, sep)); doc != "" {
				docs = append(docs, doc)
			}
			for total > s.ChunkOverlap || (total+l+joinLen() > s.ChunkSize && total > 0) {
				drop := runeLen(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		current = append(current, p)
		total += l
		if len(current) > 1 {
			total += sepLen
		}
	}
	if doc := strings.TrimSpace(strings.Join(current, sep)); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
