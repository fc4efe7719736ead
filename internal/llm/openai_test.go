package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatServer(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openaiChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Messages)

		json.NewEncoder(w).Encode(openaiChatResponse{
			ID:    "chatcmpl-test",
			Model: req.Model,
			Choices: []openaiChatChoice{{
				Message:      Message{Role: RoleAssistant, Content: answer},
				FinishReason: "stop",
			}},
			Usage: openaiUsage{TotalTokens: 42},
		})
	}))
}

func TestNewOpenAIClientValidation(t *testing.T) {
	_, err := NewOpenAIClient()
	require.Error(t, err)

	var llmErr LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeInvalidAPIKey, llmErr.Code)
}

func TestOpenAIGenerate(t *testing.T) {
	server := newChatServer(t, "Paris")
	defer server.Close()

	client, err := NewOpenAIClient(WithAPIKey("test-key"), WithBaseURL(server.URL))
	require.NoError(t, err)

	resp, err := client.Generate(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris", resp.Text)
	assert.Equal(t, 42, resp.TokenCount)
}

func TestOpenAIGenerateEmptyPrompt(t *testing.T) {
	client, err := NewOpenAIClient(WithAPIKey("test-key"))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "")
	var llmErr LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeEmptyPrompt, llmErr.Code)
}

func TestOpenAIChat(t *testing.T) {
	server := newChatServer(t, "hello there")
	defer server.Close()

	client, err := NewOpenAIClient(WithAPIKey("test-key"), WithBaseURL(server.URL))
	require.NoError(t, err)

	messages := []Message{
		{Role: RoleSystem, Content: "You are helpful."},
		{Role: RoleUser, Content: "Hi"},
	}
	resp, err := client.Chat(context.Background(), messages)
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Text)
	// 响应消息列表包含原始消息和助手回复
	require.Len(t, resp.Messages, 3)
	assert.Equal(t, RoleAssistant, resp.Messages[2].Role)
}

func TestOpenAIChatEmptyMessages(t *testing.T) {
	client, err := NewOpenAIClient(WithAPIKey("test-key"))
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), nil)
	assert.Error(t, err)
}

func TestOpenAIRetryThenFail(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewOpenAIClient(
		WithAPIKey("test-key"),
		WithBaseURL(server.URL),
		WithMaxRetries(2),
	)
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "prompt")
	require.Error(t, err)
	// 初次请求加两次重试
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestOpenAIErrorMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key","type":"auth"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := NewOpenAIClient(WithAPIKey("bad"), WithBaseURL(server.URL))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "prompt")
	var llmErr LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeInvalidAPIKey, llmErr.Code)
	assert.Contains(t, llmErr.Message, "bad key")
}

func TestClientRegistry(t *testing.T) {
	client, err := NewClient("openai", WithAPIKey("test-key"))
	require.NoError(t, err)
	assert.Equal(t, ModelGPT4oMini, client.Name())

	_, err = NewClient("missing")
	assert.Error(t, err)
}
