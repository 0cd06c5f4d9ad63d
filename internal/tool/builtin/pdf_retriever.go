package builtin

import (
	"context"
	"fmt"
	"strings"

	einoembed "github.com/cloudwego/eino/components/embedding"
	einoretriever "github.com/cloudwego/eino/components/retriever"

	"research-agent/internal/pipeline/common"
)

const PDFRetrieverName = "PDF_Retriever"

// PDFRetrieverTool 检索已入库的论文切片
type PDFRetrieverTool struct {
	retriever einoretriever.Retriever
	embedder  einoembed.Embedder
	topK      int
}

func NewPDFRetrieverTool(r einoretriever.Retriever, emb einoembed.Embedder, topK int) *PDFRetrieverTool {
	if topK <= 0 {
		topK = 5
	}
	return &PDFRetrieverTool{retriever: r, embedder: emb, topK: topK}
}

func (t *PDFRetrieverTool) Name() string { return PDFRetrieverName }

func (t *PDFRetrieverTool) Description() string {
	return "Retrieve relevant content from research PDFs. Use this when you need information from uploaded documents."
}

// Invoke 输出格式：
//
//	Results from PDFs:
//	<chunk>\n\n<chunk>...
//
//	Source: <source>   （每个切片一行，可重复）
func (t *PDFRetrieverTool) Invoke(ctx context.Context, input string) (string, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return "", fmt.Errorf("%w: query 不能为空", common.ErrInvalidInput)
	}
	docs, err := t.retriever.Retrieve(ctx, query,
		einoretriever.WithTopK(t.topK),
		einoretriever.WithEmbedding(t.embedder),
	)
	if err != nil {
		return "", err
	}

	contents := make([]string, 0, len(docs))
	sources := make([]string, 0, len(docs))
	for _, d := range docs {
		contents = append(contents, d.Content)
		src, _ := d.MetaData[common.MetaSource].(string)
		if src == "" {
			src = "Unknown"
		}
		sources = append(sources, "Source: "+src)
	}
	return "Results from PDFs:\n" + strings.Join(contents, "\n\n") + "\n\n" + strings.Join(sources, "\n"), nil
}
