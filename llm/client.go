// Package llm defines the text-generation client interface used by the
// research workflow nodes and its Gemini implementation.
package llm

import "context"

// Request 一次文本生成请求
type Request struct {
	// System 系统指令（可为空）
	System string `json:"system,omitempty"`

	// Prompt 用户提示词
	Prompt string `json:"prompt"`

	// Temperature 覆盖默认温度（0 表示使用配置值）
	Temperature float32 `json:"temperature,omitempty"`

	// MaxTokens 输出 token 上限（0 表示不限制）
	MaxTokens int `json:"max_tokens,omitempty"`
}

// Usage token 用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response 一次文本生成响应
type Response struct {
	Text         string `json:"text"`
	Model        string `json:"model"`
	FinishReason string `json:"finish_reason,omitempty"`
	Usage        Usage  `json:"usage"`
}

// TokenFunc 流式生成的逐 token 回调
type TokenFunc func(token string)

// Client 文本生成客户端
type Client interface {
	// Name 返回提供商名称
	Name() string

	// Invoke 发起一次完整的文本生成
	Invoke(ctx context.Context, req Request) (*Response, error)

	// InvokeStream 发起流式生成，每个 token 调用一次 onToken，
	// 返回拼接后的完整响应
	InvokeStream(ctx context.Context, req Request, onToken TokenFunc) (*Response, error)
}
