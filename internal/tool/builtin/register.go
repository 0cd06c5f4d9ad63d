package builtin

import (
	"research-agent/internal/tool"
	"research-agent/internal/tool/registry"
)

// RegisterBuiltin 按固定顺序注册 PDF_Retriever、Web_Search、Citation_Generator
func RegisterBuiltin(reg *registry.Registry, pdf *PDFRetrieverTool, web *WebSearchTool, citation *CitationTool) error {
	return RegisterBuiltinWithTools(reg, pdf, web, citation)
}

// RegisterBuiltinWithTools 依次注册，遇到第一个错误即返回
func RegisterBuiltinWithTools(reg *registry.Registry, tools ...tool.Tool) error {
	for _, t := range tools {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}
