// Package api defines the request and response shapes of the HTTP surface.
package api

// QueryRequest 研究查询请求
type QueryRequest struct {
	// Query 自然语言研究问题
	Query string `json:"query"`
}

// VersionInfo 版本信息响应
type VersionInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
}
