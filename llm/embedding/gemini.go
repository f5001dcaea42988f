package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// GeminiConfig 配置 Gemini 嵌入提供者.
type GeminiConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"` // gemini-embedding-001
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// GeminiProvider 使用 Google Gemini API 执行嵌入.
// 注: Gemini 使用端点格式 /models/{model}:embedContent，
// 多文档时使用 :batchEmbedContents
type GeminiProvider struct {
	cfg    GeminiConfig
	client *http.Client
}

// NewGeminiProvider 创建新的 Gemini 嵌入提供者.
func NewGeminiProvider(cfg GeminiConfig) *GeminiProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-embedding-001"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &GeminiProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *GeminiProvider) Name() string  { return "gemini-embedding" }
func (p *GeminiProvider) Model() string { return p.cfg.Model }

// Gemini TaskType
type geminiTaskType string

const (
	geminiTaskRetrievalQuery    geminiTaskType = "RETRIEVAL_QUERY"
	geminiTaskRetrievalDocument geminiTaskType = "RETRIEVAL_DOCUMENT"
)

type geminiEmbedRequest struct {
	Model    string         `json:"model"`
	Content  geminiContent  `json:"content"`
	TaskType geminiTaskType `json:"taskType,omitempty"`
}

type geminiBatchEmbedRequest struct {
	Requests []geminiEmbedRequest `json:"requests"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiEmbedResponse struct {
	Embedding geminiContentEmbedding `json:"embedding"`
}

type geminiBatchEmbedResponse struct {
	Embeddings []geminiContentEmbedding `json:"embeddings"`
}

type geminiContentEmbedding struct {
	Values []float64 `json:"values"`
}

// EmbedQuery 嵌入单个查询.
func (p *GeminiProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	body := geminiEmbedRequest{
		Model: fmt.Sprintf("models/%s", p.cfg.Model),
		Content: geminiContent{
			Parts: []geminiPart{{Text: query}},
		},
		TaskType: geminiTaskRetrievalQuery,
	}

	endpoint := fmt.Sprintf("%s/models/%s:embedContent", strings.TrimRight(p.cfg.BaseURL, "/"), p.cfg.Model)
	respBody, err := p.doRequest(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}

	var gResp geminiEmbedResponse
	if err := json.Unmarshal(respBody, &gResp); err != nil {
		return nil, fmt.Errorf("failed to decode gemini response: %w", err)
	}
	if len(gResp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	return gResp.Embedding.Values, nil
}

// EmbedDocuments 嵌入多个文档，结果按输入顺序返回.
func (p *GeminiProvider) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	requests := make([]geminiEmbedRequest, len(documents))
	for i, text := range documents {
		requests[i] = geminiEmbedRequest{
			Model: fmt.Sprintf("models/%s", p.cfg.Model),
			Content: geminiContent{
				Parts: []geminiPart{{Text: text}},
			},
			TaskType: geminiTaskRetrievalDocument,
		}
	}

	endpoint := fmt.Sprintf("%s/models/%s:batchEmbedContents", strings.TrimRight(p.cfg.BaseURL, "/"), p.cfg.Model)
	respBody, err := p.doRequest(ctx, endpoint, geminiBatchEmbedRequest{Requests: requests})
	if err != nil {
		return nil, err
	}

	var gResp geminiBatchEmbedResponse
	if err := json.Unmarshal(respBody, &gResp); err != nil {
		return nil, fmt.Errorf("failed to decode gemini batch response: %w", err)
	}
	if len(gResp.Embeddings) != len(documents) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(gResp.Embeddings), len(documents))
	}

	result := make([][]float64, len(gResp.Embeddings))
	for i, emb := range gResp.Embeddings {
		result[i] = emb.Values
	}
	return result, nil
}

// doRequest 使用 Gemini 特定认证执行 HTTP 请求.
func (p *GeminiProvider) doRequest(ctx context.Context, endpoint string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Gemini 使用 x-goog-api-key 头（不是 Bearer 令牌）
	httpReq.Header.Set("x-goog-api-key", p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("gemini error: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
