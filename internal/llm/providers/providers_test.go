package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradepipe/gradepipe/internal/configuration"
	llmerrors "github.com/gradepipe/gradepipe/internal/llm/errors"
	"github.com/gradepipe/gradepipe/internal/llm/transport"
)

func floatPtr(v float64) *float64 { return &v }

func testProviderConfig() configuration.ProviderConfig {
	return configuration.ProviderConfig{
		APIKey:  "test-key",
		Headers: map[string]string{"X-Test": "1"},
	}
}

func gradingRequest() *transport.Request {
	return &transport.Request{
		Operation:    transport.OpGrading,
		Provider:     ProviderOpenAI,
		Model:        "gpt-4o",
		Prompt:       "Grade this essay.",
		SystemPrompt: "You are a teacher.",
		MaxTokens:    512,
		Temperature:  floatPtr(0.2),
		RequestID:    "req-123",
	}
}

func httpResponse(status int, body string, headers map[string]string) *http.Response {
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	return &http.Response{
		StatusCode: status,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestOpenAIAdapter_Build(t *testing.T) {
	adapter := NewOpenAIAdapter(testProviderConfig())

	httpReq, err := adapter.Build(context.Background(), gradingRequest())
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, httpReq.Method)
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", httpReq.URL.String())
	assert.Equal(t, "Bearer test-key", httpReq.Header.Get("Authorization"))
	assert.Equal(t, "req-123", httpReq.Header.Get("Idempotency-Key"))
	assert.Equal(t, "1", httpReq.Header.Get("X-Test"))

	var body struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		MaxTokens int64 `json:"max_tokens"`
	}
	require.NoError(t, json.NewDecoder(httpReq.Body).Decode(&body))
	assert.Equal(t, "gpt-4o", body.Model)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "system", body.Messages[0].Role)
	assert.Equal(t, "You are a teacher.", body.Messages[0].Content)
	assert.Equal(t, "user", body.Messages[1].Role)
	assert.Equal(t, int64(512), body.MaxTokens)
}

func TestOpenAIAdapter_ParseSuccess(t *testing.T) {
	adapter := NewOpenAIAdapter(testProviderConfig())
	body := `{
		"id": "chatcmpl-1",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "Graded."}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 100, "completion_tokens": 40, "total_tokens": 140}
	}`

	resp, err := adapter.Parse(httpResponse(http.StatusOK, body, map[string]string{"x-request-id": "oai-1"}))

	require.NoError(t, err)
	assert.Equal(t, "Graded.", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, []string{"oai-1"}, resp.ProviderRequestIDs)
	assert.Equal(t, int64(100), resp.Usage.PromptTokens)
	assert.Equal(t, int64(40), resp.Usage.CompletionTokens)
	assert.Equal(t, int64(140), resp.Usage.TotalTokens)
}

func TestOpenAIAdapter_ParseRateLimitError(t *testing.T) {
	adapter := NewOpenAIAdapter(testProviderConfig())
	body := `{"error": {"message": "Rate limit reached", "type": "rate_limit_error", "code": "rate_limit_exceeded"}}`

	_, err := adapter.Parse(httpResponse(http.StatusTooManyRequests, body,
		map[string]string{"Retry-After": "21"}))

	require.Error(t, err)
	var provErr *llmerrors.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, ProviderOpenAI, provErr.Provider)
	assert.Equal(t, http.StatusTooManyRequests, provErr.StatusCode)
	assert.Equal(t, "Rate limit reached", provErr.Message)
	assert.Equal(t, llmerrors.ErrorTypeOverload, provErr.Type)
	assert.Equal(t, 21, provErr.RetryAfter)
	assert.True(t, provErr.IsRetryable())
}

func TestOpenAIAdapter_ParseAuthError(t *testing.T) {
	adapter := NewOpenAIAdapter(testProviderConfig())
	body := `{"error": {"message": "Invalid API key", "type": "invalid_request_error", "code": "invalid_api_key"}}`

	_, err := adapter.Parse(httpResponse(http.StatusUnauthorized, body, nil))

	var provErr *llmerrors.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, llmerrors.ErrorTypeAPI, provErr.Type)
	assert.False(t, provErr.IsRetryable())
}

func TestAnthropicAdapter_Build(t *testing.T) {
	adapter := NewAnthropicAdapter(testProviderConfig())
	req := gradingRequest()
	req.Provider = ProviderAnthropic
	req.Model = "claude-sonnet-4-20250514"

	httpReq, err := adapter.Build(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "https://api.anthropic.com/v1/messages", httpReq.URL.String())
	assert.Equal(t, "test-key", httpReq.Header.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", httpReq.Header.Get("anthropic-version"))

	var body struct {
		Model    string `json:"model"`
		System   string `json:"system"`
		Messages []struct {
			Role string `json:"role"`
		} `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(httpReq.Body).Decode(&body))
	assert.Equal(t, "claude-sonnet-4-20250514", body.Model)
	assert.Equal(t, "You are a teacher.", body.System, "system prompt travels outside the message list")
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "user", body.Messages[0].Role)
}

func TestAnthropicAdapter_ParseSuccess(t *testing.T) {
	adapter := NewAnthropicAdapter(testProviderConfig())
	body := `{
		"id": "msg-1",
		"content": [{"type": "text", "text": "Graded."}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 90, "output_tokens": 35}
	}`

	resp, err := adapter.Parse(httpResponse(http.StatusOK, body,
		map[string]string{"anthropic-request-id": "ant-1"}))

	require.NoError(t, err)
	assert.Equal(t, "Graded.", resp.Content)
	assert.Equal(t, "end_turn", resp.FinishReason)
	assert.Equal(t, []string{"ant-1"}, resp.ProviderRequestIDs)
	assert.Equal(t, int64(90), resp.Usage.PromptTokens)
	assert.Equal(t, int64(35), resp.Usage.CompletionTokens)
	assert.Equal(t, int64(125), resp.Usage.TotalTokens)
}

func TestAnthropicAdapter_ParseOverloadedError(t *testing.T) {
	adapter := NewAnthropicAdapter(testProviderConfig())
	body := `{"error": {"type": "overloaded_error", "message": "Overloaded"}}`

	_, err := adapter.Parse(httpResponse(529, body, map[string]string{"Retry-After": "10"}))

	var provErr *llmerrors.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, llmerrors.ErrorTypeOverload, provErr.Type)
	assert.Equal(t, 10, provErr.RetryAfter)
	assert.Equal(t, "Overloaded", provErr.Message)
}

func TestParseRetryAfter(t *testing.T) {
	t.Run("delta seconds", func(t *testing.T) {
		h := http.Header{}
		h.Set("Retry-After", "42")
		assert.Equal(t, 42, parseRetryAfter(h))
	})

	t.Run("negative clamps to zero", func(t *testing.T) {
		h := http.Header{}
		h.Set("Retry-After", "-5")
		assert.Zero(t, parseRetryAfter(h))
	})

	t.Run("http date form", func(t *testing.T) {
		h := http.Header{}
		h.Set("Retry-After", time.Now().UTC().Add(30*time.Second).Format(http.TimeFormat))
		got := parseRetryAfter(h)
		assert.Greater(t, got, 20)
		assert.LessOrEqual(t, got, 31)
	})

	t.Run("absent", func(t *testing.T) {
		assert.Zero(t, parseRetryAfter(http.Header{}))
	})
}

func TestNewRouter(t *testing.T) {
	r, err := NewRouter(map[string]configuration.ProviderConfig{
		ProviderOpenAI:    {APIKey: "a"},
		ProviderAnthropic: {APIKey: "b"},
	})
	require.NoError(t, err)

	openai, err := r.Pick(ProviderOpenAI, "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, openai.Name())

	_, err = r.Pick("mistral", "large")
	require.ErrorIs(t, err, llmerrors.ErrUnknownProvider)
}

func TestNewRouter_UnknownProviderRejected(t *testing.T) {
	_, err := NewRouter(map[string]configuration.ProviderConfig{"mistral": {}})
	require.ErrorIs(t, err, llmerrors.ErrUnknownProvider)
}
