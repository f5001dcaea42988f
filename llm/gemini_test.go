package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/researchflow/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewGeminiClient(GeminiConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "gemini-2.0-flash",
	}, nil, zap.NewNop())
}

func TestGeminiInvoke(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Contains(t, r.URL.Path, "gemini-2.0-flash:generateContent")

		fmt.Fprint(w, `{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "hello "}, {"text": "world"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 10, "candidatesTokenCount": 2, "totalTokenCount": 12}
		}`)
	})

	resp, err := client.Invoke(context.Background(), Request{System: "be brief", Prompt: "greet"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", resp.Text)
	assert.Equal(t, "STOP", resp.FinishReason)
	assert.Equal(t, 10, resp.Usage.PromptTokens)
	assert.Equal(t, 2, resp.Usage.CompletionTokens)
}

func TestGeminiInvokeEstimatesUsageWhenMissing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates": [{"content": {"parts": [{"text": "some completion text"}]}}]}`)
	})

	resp, err := client.Invoke(context.Background(), Request{Prompt: "question"})
	require.NoError(t, err)
	assert.Greater(t, resp.Usage.TotalTokens, 0)
}

func TestGeminiInvokeStream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, ":streamGenerateContent")

		fmt.Fprintln(w, `{"candidates": [{"content": {"parts": [{"text": "one "}]}}]}`)
		fmt.Fprintln(w, `{"candidates": [{"content": {"parts": [{"text": "two "}]}}]}`)
		fmt.Fprintln(w, `{"candidates": [{"content": {"parts": [{"text": "three"}]}, "finishReason": "STOP"}], "usageMetadata": {"promptTokenCount": 5, "candidatesTokenCount": 3, "totalTokenCount": 8}}`)
	})

	var tokens []string
	resp, err := client.InvokeStream(context.Background(), Request{Prompt: "count"}, func(token string) {
		tokens = append(tokens, token)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"one ", "two ", "three"}, tokens)
	assert.Equal(t, "one two three", resp.Text)
	assert.Equal(t, "STOP", resp.FinishReason)
	assert.Equal(t, 8, resp.Usage.TotalTokens)
}

func TestGeminiErrorMapping(t *testing.T) {
	cases := []struct {
		status    int
		body      string
		wantCode  types.ErrorCode
		retryable bool
	}{
		{http.StatusUnauthorized, `{"error": {"message": "bad key", "status": "UNAUTHENTICATED"}}`, types.ErrUnauthorized, false},
		{http.StatusTooManyRequests, `{"error": {"message": "slow down", "status": "RESOURCE_EXHAUSTED"}}`, types.ErrRateLimited, true},
		{http.StatusBadRequest, `{"error": {"message": "quota exceeded", "status": "FAILED_PRECONDITION"}}`, types.ErrQuotaExceeded, false},
		{http.StatusBadRequest, `{"error": {"message": "malformed", "status": "INVALID_ARGUMENT"}}`, types.ErrInvalidRequest, false},
		{http.StatusServiceUnavailable, `{"error": {"message": "overloaded", "status": "UNAVAILABLE"}}`, types.ErrUpstreamError, true},
	}

	for _, tc := range cases {
		t.Run(string(tc.wantCode), func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			})

			_, err := client.Invoke(context.Background(), Request{Prompt: "x"})
			require.Error(t, err)

			assert.Equal(t, tc.wantCode, types.GetErrorCode(err))
			assert.Equal(t, tc.retryable, types.IsRetryable(err))
		})
	}
}

func TestEstimateTokensNonZero(t *testing.T) {
	assert.Greater(t, EstimateTokens("the quick brown fox jumps over the lazy dog"), 0)
	assert.Equal(t, 0, EstimateTokens(""))
}
