package llm

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
	// OpenAI聊天补全API端点
	defaultOpenAIChatEndpoint = "https://api.openai.com/v1/chat/completions"
)

// OpenAIClient OpenAI大模型客户端实现
type OpenAIClient struct {
	apiKey      string       // API密钥
	baseURL     string       // API端点
	model       string       // 模型名称
	httpClient  *http.Client // HTTP客户端
	maxRetries  int          // 最大重试次数
	maxTokens   int          // 最大生成Token数
	temperature float32      // 温度参数
	topP        float32      // topP参数
}

// NewOpenAIClient 创建新的OpenAI大模型客户端
func NewOpenAIClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIChatEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = ModelGPT4oMini
	}

	return &OpenAIClient{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		model:       model,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		maxRetries:  cfg.MaxRetries,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
	}, nil
}

// Name 返回模型名称
func (c *OpenAIClient) Name() string {
	return c.model
}

// Generate 根据提示词生成回答
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error) {
	if prompt == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}

	messages := []Message{
		{Role: RoleUser, Content: prompt},
	}

	opts := &GenerateOptions{}
	for _, opt := range options {
		opt(opts)
	}

	var chatOpts []ChatOption
	if opts.MaxTokens != nil {
		chatOpts = append(chatOpts, WithChatMaxTokens(*opts.MaxTokens))
	}
	if opts.Temperature != nil {
		chatOpts = append(chatOpts, WithChatTemperature(*opts.Temperature))
	}
	if opts.TopP != nil {
		chatOpts = append(chatOpts, WithChatTopP(*opts.TopP))
	}

	return c.Chat(ctx, messages, chatOpts...)
}

// Chat 进行多轮对话
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error) {
	if len(messages) == 0 {
		return nil, NewLLMError(ErrCodeInvalidRequest, "messages cannot be empty")
	}

	opts := &ChatOptions{}
	for _, opt := range options {
		opt(opts)
	}

	reqData := openaiChatRequest{
		Model:    c.model,
		Messages: messages,
	}
	if opts.MaxTokens != nil {
		reqData.MaxTokens = opts.MaxTokens
	} else if c.maxTokens > 0 {
		reqData.MaxTokens = &c.maxTokens
	}
	if opts.Temperature != nil {
		reqData.Temperature = opts.Temperature
	} else {
		reqData.Temperature = &c.temperature
	}
	if opts.TopP != nil {
		reqData.TopP = opts.TopP
	} else if c.topP > 0 {
		reqData.TopP = &c.topP
	}

	var resp openaiChatResponse
	if err := c.sendRequest(ctx, reqData, &resp); err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, NewLLMError(ErrCodeServerError, "no choices returned")
	}

	answer := resp.Choices[0].Message
	return &Response{
		Text:       answer.Content,
		Messages:   append(messages, answer),
		TokenCount: resp.Usage.TotalTokens,
		ModelName:  resp.Model,
		FinishTime: time.Now(),
	}, nil
}

// sendRequest 发送API请求并解析响应，服务端错误按指数退避重试
func (c *OpenAIClient) sendRequest(ctx context.Context, reqData interface{}, respObj interface{}) error {
	jsonData, err := json.Marshal(reqData)
	if err != nil {
		return NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to marshal request: %v", err))
	}

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return NewLLMError(ErrCodeTimeout, ctx.Err().Error())
			case <-time.After(time.Duration(1<<attempt) * 100 * time.Millisecond):
			}
		}

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(jsonData))
		if reqErr != nil {
			return NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", reqErr))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

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
		return NewLLMError(ErrCodeNetworkError, fmt.Sprintf("request failed: %v", lastErr))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewLLMError(ErrCodeServerError, fmt.Sprintf("failed to read response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		var errResp openaiErrorResponse
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Error.Message != "" {
			return NewLLMError(statusToErrCode(resp.StatusCode), errResp.Error.Message)
		}
		return NewLLMError(statusToErrCode(resp.StatusCode),
			fmt.Sprintf("API error (status %d): %s", resp.StatusCode, string(body)))
	}

	if err := json.Unmarshal(body, respObj); err != nil {
		return NewLLMError(ErrCodeServerError, fmt.Sprintf("failed to parse response: %v", err))
	}
	return nil
}

// 注册OpenAI客户端
func init() {
	RegisterClient("openai", NewOpenAIClient)
}
