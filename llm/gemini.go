package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/researchflow/internal/metrics"
	"github.com/BaSui01/researchflow/types"
)

// GeminiConfig Gemini 客户端配置
type GeminiConfig struct {
	APIKey      string        `yaml:"api_key" json:"api_key"`
	BaseURL     string        `yaml:"base_url" json:"base_url"`
	Model       string        `yaml:"model" json:"model"`
	Temperature float32       `yaml:"temperature" json:"temperature"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

// GeminiClient 实现 Google Gemini 的文本生成客户端
// Gemini API 特点：
// 1. 使用 x-goog-api-key 请求头认证
// 2. 流式接口按行返回完整 JSON 对象
type GeminiClient struct {
	cfg       GeminiConfig
	client    *http.Client
	logger    *zap.Logger
	collector *metrics.Collector
}

// NewGeminiClient 创建 Gemini 客户端。collector 可为 nil（不记录指标）。
func NewGeminiClient(cfg GeminiConfig, collector *metrics.Collector, logger *zap.Logger) *GeminiClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	return &GeminiClient{
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.Timeout},
		logger:    logger.With(zap.String("component", "llm"), zap.String("provider", "gemini")),
		collector: collector,
	}
}

func (c *GeminiClient) Name() string { return "gemini" }

// Gemini 消息结构（纯文本子集）
type geminiContent struct {
	Role  string       `json:"role,omitempty"` // user, model
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     float32 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
	Index        int           `json:"index"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate    `json:"candidates"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata,omitempty"`
}

type geminiErrorResp struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *GeminiClient) buildHeaders(req *http.Request) {
	// Gemini 使用 x-goog-api-key 认证
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
}

func (c *GeminiClient) buildBody(req Request) geminiRequest {
	body := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}},
		},
	}

	if req.System != "" {
		body.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: req.System}},
		}
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.cfg.Temperature
	}
	if temperature > 0 || req.MaxTokens > 0 {
		body.GenerationConfig = &geminiGenerationConfig{
			Temperature:     temperature,
			MaxOutputTokens: req.MaxTokens,
		}
	}

	return body
}

// Invoke 调用 generateContent 接口
func (c *GeminiClient) Invoke(ctx context.Context, req Request) (*Response, error) {
	payload, _ := json.Marshal(c.buildBody(req))
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, err.Error()).WithProvider(c.Name())
	}
	c.buildHeaders(httpReq)

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.recordMetrics("error", time.Since(start), 0, 0)
		return nil, types.NewError(types.ErrUpstreamError, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).
			WithRetryable(true).
			WithProvider(c.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		c.recordMetrics("error", time.Since(start), 0, 0)
		return nil, mapGeminiError(resp.StatusCode, readGeminiErrMsg(resp.Body), c.Name())
	}

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		c.recordMetrics("error", time.Since(start), 0, 0)
		return nil, types.NewError(types.ErrUpstreamError, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).
			WithRetryable(true).
			WithProvider(c.Name())
	}

	out := c.toResponse(gr, req)
	c.recordMetrics("success", time.Since(start), out.Usage.PromptTokens, out.Usage.CompletionTokens)
	return out, nil
}

// InvokeStream 调用 streamGenerateContent 接口。Gemini 流式响应
// 每行是一个完整的 JSON 对象；每个文本片段触发一次 onToken 回调。
func (c *GeminiClient) InvokeStream(ctx context.Context, req Request, onToken TokenFunc) (*Response, error) {
	payload, _ := json.Marshal(c.buildBody(req))
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, err.Error()).WithProvider(c.Name())
	}
	c.buildHeaders(httpReq)

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.recordMetrics("error", time.Since(start), 0, 0)
		return nil, types.NewError(types.ErrUpstreamError, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).
			WithRetryable(true).
			WithProvider(c.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		c.recordMetrics("error", time.Since(start), 0, 0)
		return nil, mapGeminiError(resp.StatusCode, readGeminiErrMsg(resp.Body), c.Name())
	}

	var (
		sb           strings.Builder
		finishReason string
		usage        *geminiUsageMetadata
	)

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				c.recordMetrics("error", time.Since(start), 0, 0)
				return nil, types.NewError(types.ErrUpstreamError, err.Error()).
					WithHTTPStatus(http.StatusBadGateway).
					WithRetryable(true).
					WithProvider(c.Name())
			}
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var gr geminiResponse
		if err := json.Unmarshal([]byte(line), &gr); err != nil {
			continue
		}

		for _, candidate := range gr.Candidates {
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					sb.WriteString(part.Text)
					if onToken != nil {
						onToken(part.Text)
					}
				}
			}
			if candidate.FinishReason != "" {
				finishReason = candidate.FinishReason
			}
		}

		if gr.UsageMetadata != nil {
			usage = gr.UsageMetadata
		}
	}

	out := &Response{
		Text:         sb.String(),
		Model:        c.cfg.Model,
		FinishReason: finishReason,
	}
	if usage != nil {
		out.Usage = Usage{
			PromptTokens:     usage.PromptTokenCount,
			CompletionTokens: usage.CandidatesTokenCount,
			TotalTokens:      usage.TotalTokenCount,
		}
	} else {
		out.Usage = estimateUsage(req, out.Text)
	}

	c.recordMetrics("success", time.Since(start), out.Usage.PromptTokens, out.Usage.CompletionTokens)
	return out, nil
}

func (c *GeminiClient) toResponse(gr geminiResponse, req Request) *Response {
	out := &Response{Model: c.cfg.Model}

	for _, candidate := range gr.Candidates {
		for _, part := range candidate.Content.Parts {
			out.Text += part.Text
		}
		if candidate.FinishReason != "" {
			out.FinishReason = candidate.FinishReason
		}
	}

	if gr.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:     gr.UsageMetadata.PromptTokenCount,
			CompletionTokens: gr.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      gr.UsageMetadata.TotalTokenCount,
		}
	} else {
		// 上游未返回用量时本地估算
		out.Usage = estimateUsage(req, out.Text)
	}

	return out
}

func (c *GeminiClient) recordMetrics(status string, duration time.Duration, promptTokens, completionTokens int) {
	if c.collector == nil {
		return
	}
	c.collector.RecordLLMRequest(c.Name(), c.cfg.Model, status, duration, promptTokens, completionTokens)
}

func estimateUsage(req Request, completion string) Usage {
	prompt := EstimateTokens(req.System) + EstimateTokens(req.Prompt)
	out := EstimateTokens(completion)
	return Usage{
		PromptTokens:     prompt,
		CompletionTokens: out,
		TotalTokens:      prompt + out,
	}
}

func readGeminiErrMsg(body io.Reader) string {
	data, _ := io.ReadAll(body)
	var errResp geminiErrorResp
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return fmt.Sprintf("%s (status: %s)", errResp.Error.Message, errResp.Error.Status)
	}
	return string(data)
}

func mapGeminiError(status int, msg string, provider string) *types.Error {
	switch status {
	case http.StatusUnauthorized:
		return types.NewError(types.ErrUnauthorized, msg).WithHTTPStatus(status).WithProvider(provider)
	case http.StatusForbidden:
		return types.NewError(types.ErrForbidden, msg).WithHTTPStatus(status).WithProvider(provider)
	case http.StatusTooManyRequests:
		return types.NewError(types.ErrRateLimited, msg).WithHTTPStatus(status).WithRetryable(true).WithProvider(provider)
	case http.StatusBadRequest:
		if strings.Contains(msg, "quota") || strings.Contains(msg, "limit") {
			return types.NewError(types.ErrQuotaExceeded, msg).WithHTTPStatus(status).WithProvider(provider)
		}
		return types.NewError(types.ErrInvalidRequest, msg).WithHTTPStatus(status).WithProvider(provider)
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return types.NewError(types.ErrUpstreamError, msg).WithHTTPStatus(status).WithRetryable(true).WithProvider(provider)
	default:
		return types.NewError(types.ErrUpstreamError, msg).WithHTTPStatus(status).WithRetryable(status >= 500).WithProvider(provider)
	}
}
