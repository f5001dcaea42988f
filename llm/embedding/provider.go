// Package embedding provides the embedding provider interface, its Gemini
// implementation, and a Redis-backed caching decorator.
package embedding

import "context"

// Provider 向量嵌入提供者
type Provider interface {
	// Name 返回提供者名称
	Name() string

	// EmbedQuery 嵌入单个查询
	EmbedQuery(ctx context.Context, query string) ([]float64, error)

	// EmbedDocuments 嵌入多个文档，返回结果与输入顺序一致
	EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error)
}
