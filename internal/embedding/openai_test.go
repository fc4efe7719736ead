package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEmbeddingServer 返回按输入顺序生成固定向量的模拟服务
func newEmbeddingServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openaiEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := openaiEmbeddingResponse{Model: req.Model}
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{
				Embedding: []float32{float32(i), 1, 2},
				Index:     i,
			})
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestNewOpenAIClient(t *testing.T) {
	t.Run("MissingAPIKey", func(t *testing.T) {
		_, err := NewOpenAIClient()
		require.Error(t, err)
		var embErr EmbeddingError
		require.ErrorAs(t, err, &embErr)
		assert.Equal(t, ErrCodeInvalidAPIKey, embErr.Code)
	})

	t.Run("Defaults", func(t *testing.T) {
		client, err := NewOpenAIClient(WithAPIKey("test-key"))
		require.NoError(t, err)
		assert.Equal(t, defaultEmbeddingModel, client.Name())
	})
}

func TestNewClientRegistry(t *testing.T) {
	client, err := NewClient("openai", WithAPIKey("test-key"))
	require.NoError(t, err)
	assert.NotNil(t, client)

	_, err = NewClient("unknown")
	assert.Error(t, err)
}

func TestOpenAIEmbed(t *testing.T) {
	server := newEmbeddingServer(t)
	defer server.Close()

	client, err := NewOpenAIClient(WithAPIKey("test-key"), WithBaseURL(server.URL))
	require.NoError(t, err)

	vector, err := client.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 2}, vector)
}

func TestOpenAIEmbedEmptyText(t *testing.T) {
	client, err := NewOpenAIClient(WithAPIKey("test-key"))
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "")
	var embErr EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, ErrCodeEmptyInput, embErr.Code)
}

func TestOpenAIEmbedBatch(t *testing.T) {
	server := newEmbeddingServer(t)
	defer server.Close()

	client, err := NewOpenAIClient(WithAPIKey("test-key"), WithBaseURL(server.URL))
	require.NoError(t, err)

	vectors, err := client.EmbedBatch(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{1, 1, 2}, vectors[1])
}

func TestOpenAIRetryOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(openaiEmbeddingResponse{
			Data: []struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{{Embedding: []float32{1, 2, 3}, Index: 0}},
		})
	}))
	defer server.Close()

	client, err := NewOpenAIClient(
		WithAPIKey("test-key"),
		WithBaseURL(server.URL),
		WithMaxRetries(3),
		WithTimeout(5*time.Second),
	)
	require.NoError(t, err)

	vector, err := client.Embed(context.Background(), "retry me")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vector)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestOpenAIAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid api key","type":"auth"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := NewOpenAIClient(WithAPIKey("bad-key"), WithBaseURL(server.URL))
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "hello")
	var embErr EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, ErrCodeInvalidAPIKey, embErr.Code)
}

func TestErrorFromStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   ErrCode
	}{
		{"Unauthorized", http.StatusUnauthorized, ErrCodeInvalidAPIKey},
		{"Forbidden", http.StatusForbidden, ErrCodeInvalidAPIKey},
		{"RateLimited", http.StatusTooManyRequests, ErrCodeRateLimited},
		{"BadRequest", http.StatusBadRequest, ErrCodeInvalidRequest},
		{"ServerError", http.StatusInternalServerError, ErrCodeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embErr := errorFromStatus(tt.status, "upstream message")
			assert.Equal(t, tt.want, embErr.Code)
			assert.Contains(t, embErr.Error(), "upstream message")
		})
	}
}

func TestBatchProcessor(t *testing.T) {
	server := newEmbeddingServer(t)
	defer server.Close()

	client, err := NewOpenAIClient(WithAPIKey("test-key"), WithBaseURL(server.URL))
	require.NoError(t, err)

	processor := NewBatchProcessor(client, 2, 2)

	texts := []string{"a", "b", "c", "d", "e"}
	vectors, err := processor.Process(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for _, v := range vectors {
		assert.Len(t, v, 3)
	}
}

func TestBatchProcessorEmpty(t *testing.T) {
	processor := NewBatchProcessor(nil, 2, 2)
	vectors, err := processor.Process(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}
