package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// 默认API端点
	defaultOpenAIBaseURL = "https://api.openai.com/v1/embeddings"

	// 默认模型与维度
	defaultEmbeddingModel     = "text-embedding-3-small"
	defaultEmbeddingDimension = 1536

	// 单次请求的最大文本数
	maxEmbeddingBatch = 2048
)

// OpenAIClient 实现OpenAI嵌入API客户端
type OpenAIClient struct {
	apiKey     string       // API密钥
	endpoint   string       // API端点
	model      string       // 模型名称
	httpClient *http.Client // HTTP客户端
	maxRetries int          // 最大重试次数
	dimensions int          // 向量维度
}

// openaiEmbeddingRequest OpenAI嵌入请求结构
type openaiEmbeddingRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
	Dimensions     int      `json:"dimensions,omitempty"`
}

// openaiEmbeddingResponse OpenAI嵌入响应结构
type openaiEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// NewOpenAIClient 创建新的OpenAI嵌入客户端
func NewOpenAIClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	if cfg.APIKey == "" {
		return nil, NewEmbeddingError(ErrCodeInvalidAPIKey, "API key is not configured")
	}

	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = defaultOpenAIBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultEmbeddingModel
	}
	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = defaultEmbeddingDimension
	}

	return &OpenAIClient{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		model:      model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		dimensions: dimensions,
	}, nil
}

// Name 返回模型名称
func (c *OpenAIClient) Name() string {
	return c.model
}

// Embed 生成单条文本的向量表示
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, NewEmbeddingError(ErrCodeEmptyInput, "input text cannot be empty")
	}

	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, NewEmbeddingError(ErrCodeServerError, "no embedding vectors returned")
	}
	return vectors[0], nil
}

// EmbedBatch 批量生成文本的向量表示，结果顺序与输入一致
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if len(texts) > maxEmbeddingBatch {
		return nil, NewEmbeddingError(ErrCodeInvalidRequest,
			fmt.Sprintf("batch size %d exceeds limit %d", len(texts), maxEmbeddingBatch))
	}
	for _, text := range texts {
		if text == "" {
			return nil, NewEmbeddingError(ErrCodeEmptyInput, "input text cannot be empty")
		}
	}

	reqData := openaiEmbeddingRequest{
		Model:          c.model,
		Input:          texts,
		EncodingFormat: "float",
	}
	// text-embedding-3系列支持降维
	if c.dimensions > 0 && c.dimensions != defaultEmbeddingDimension {
		reqData.Dimensions = c.dimensions
	}

	var resp openaiEmbeddingResponse
	if err := c.sendRequest(ctx, reqData, &resp); err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, NewEmbeddingError(ErrCodeServerError,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	result := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			continue
		}
		result[item.Index] = item.Embedding
	}
	return result, nil
}

// sendRequest 发送API请求并解析响应，5xx错误按指数退避重试
func (c *OpenAIClient) sendRequest(ctx context.Context, reqData interface{}, respObj interface{}) error {
	jsonData, err := json.Marshal(reqData)
	if err != nil {
		return NewEmbeddingError(ErrCodeInvalidRequest, fmt.Sprintf("failed to marshal request: %v", err))
	}

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return NewEmbeddingError(ErrCodeTimeout, ctx.Err().Error())
			case <-time.After(time.Duration(1<<attempt) * 100 * time.Millisecond):
			}
		}

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
		if reqErr != nil {
			return NewEmbeddingError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", reqErr))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err = c.httpClient.Do(req)
		if err == nil && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			break
		}

		if err != nil {
			lastErr = err
		} else {
			resp.Body.Close()
			lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
			resp = nil
		}
	}

	if err != nil || resp == nil {
		return NewEmbeddingError(ErrCodeNetworkError, fmt.Sprintf("request failed: %v", lastErr))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewEmbeddingError(ErrCodeServerError, fmt.Sprintf("failed to read response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error struct {
				Message string `json:"message"`
				Type    string `json:"type"`
				Code    string `json:"code"`
			} `json:"error"`
		}
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Error.Message != "" {
			return errorFromStatus(resp.StatusCode, errResp.Error.Message)
		}
		return errorFromStatus(resp.StatusCode,
			fmt.Sprintf("API error (status %d): %s", resp.StatusCode, string(body)))
	}

	if err := json.Unmarshal(body, respObj); err != nil {
		return NewEmbeddingError(ErrCodeServerError, fmt.Sprintf("failed to parse response: %v", err))
	}
	return nil
}

// 注册OpenAI客户端
func init() {
	RegisterClient("openai", NewOpenAIClient)
}
