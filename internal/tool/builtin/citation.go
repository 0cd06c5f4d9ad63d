package builtin

import (
	"context"
	"fmt"
	"strings"

	"research-agent/internal/pipeline/common"
)

const CitationName = "Citation_Generator"

// CitationTool 生成引用文本。输入为标题，或 "标题 | 作者1, 作者2 | 年份"
type CitationTool struct{}

func NewCitationTool() *CitationTool { return &CitationTool{} }

func (t *CitationTool) Name() string { return CitationName }

func (t *CitationTool) Description() string {
	return "Generate formatted citations for research content. Input should be the title of the paper."
}

func (t *CitationTool) Invoke(ctx context.Context, input string) (string, error) {
	parts := strings.Split(input, "|")
	title := strings.TrimSpace(parts[0])
	if title == "" {
		return "", fmt.Errorf("%w: title 不能为空", common.ErrInvalidInput)
	}
	var authors []string
	if len(parts) > 1 {
		for _, a := range strings.Split(parts[1], ",") {
			if a = strings.TrimSpace(a); a != "" {
				authors = append(authors, a)
			}
		}
	}
	year := ""
	if len(parts) > 2 {
		year = strings.TrimSpace(parts[2])
	}
	return FormatCitation(title, authors, year), nil
}

// FormatCitation <作者或 Unknown> (<年份或 n.d.>). <标题>. Retrieved from Research Agent.
func FormatCitation(title string, authors []string, year string) string {
	a := "Unknown"
	if len(authors) > 0 {
		a = strings.Join(authors, ", ")
	}
	if year == "" {
		year = "n.d."
	}
	return fmt.Sprintf("%s (%s). %s. Retrieved from Research Agent.", a, year, title)
}
