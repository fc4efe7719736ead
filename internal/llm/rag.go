package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultRAGTemplate 默认RAG提示词模板
// 包含变量：
// {{.Question}} - 用户问题
// {{.Context}} - 检索的上下文
const DefaultRAGTemplate = `You are a question answering assistant. Answer the question using only the reference context below.
If the context does not contain enough information to answer, reply "Sorry, I could not find relevant information." Do not guess or make up facts.

Reference context:
{{.Context}}

Question: {{.Question}}

Answer directly and concisely. Do not repeat the question or mention the reference context.`

// NoContextAnswer 检索不到相关内容时的固定回答
const NoContextAnswer = "Sorry, I could not find relevant information in the indexed documents."

// formatContext 格式化上下文内容，逐条编号
func formatContext(contexts []string) string {
	var sb strings.Builder
	for i, ctx := range contexts {
		sb.WriteString(fmt.Sprintf("[%d] %s\n\n", i+1, ctx))
	}
	return sb.String()
}

// RAGConfig 检索增强生成配置
type RAGConfig struct {
	Template       string        // 提示词模板
	MaxTokens      int           // 最大Token数
	Temperature    float32       // 温度参数
	Timeout        time.Duration // 超时时间
	IncludeSources bool          // 是否带上引用来源
}

// DefaultRAGConfig 默认RAG配置
func DefaultRAGConfig() *RAGConfig {
	return &RAGConfig{
		Template:       DefaultRAGTemplate,
		MaxTokens:      2048,
		Temperature:    0.7,
		Timeout:        60 * time.Second,
		IncludeSources: true,
	}
}

// RAGService 实现检索增强生成服务
type RAGService struct {
	Client Client       // 大模型客户端
	config *RAGConfig   // 配置
	mu     sync.RWMutex // 配置互斥锁
}

// NewRAG 创建新的检索增强生成服务
func NewRAG(client Client, opts ...RAGOption) *RAGService {
	cfg := DefaultRAGConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &RAGService{
		Client: client,
		config: cfg,
	}
}

// RAGOption RAG配置选项函数类型
type RAGOption func(*RAGConfig)

// WithTemplate 设置提示词模板
func WithTemplate(template string) RAGOption {
	return func(c *RAGConfig) {
		c.Template = template
	}
}

// WithRAGMaxTokens 设置最大Token数
func WithRAGMaxTokens(tokens int) RAGOption {
	return func(c *RAGConfig) {
		c.MaxTokens = tokens
	}
}

// WithRAGTemperature 设置温度参数
func WithRAGTemperature(temp float32) RAGOption {
	return func(c *RAGConfig) {
		c.Temperature = temp
	}
}

// WithRAGTimeout 设置请求超时时间
func WithRAGTimeout(timeout time.Duration) RAGOption {
	return func(c *RAGConfig) {
		c.Timeout = timeout
	}
}

// WithSources 设置是否包含引用来源
func WithSources(include bool) RAGOption {
	return func(c *RAGConfig) {
		c.IncludeSources = include
	}
}

// Answer 根据检索到的引用内容和问题生成回答
func (r *RAGService) Answer(ctx context.Context, question string, references []SourceReference) (*RAGResponse, error) {
	if question == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, "question cannot be empty")
	}

	r.mu.RLock()
	cfg := r.config
	r.mu.RUnlock()

	// 无检索结果时直接返回固定回答，不调用大模型
	if len(references) == 0 {
		return &RAGResponse{Answer: NoContextAnswer}, nil
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	contexts := make([]string, len(references))
	for i, ref := range references {
		contexts[i] = ref.Content
	}
	prompt := r.buildPrompt(question, contexts)

	response, err := r.Client.Generate(
		ctxWithTimeout,
		prompt,
		WithGenerateMaxTokens(cfg.MaxTokens),
		WithGenerateTemperature(cfg.Temperature),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	ragResponse := &RAGResponse{
		Answer: response.Text,
	}
	if cfg.IncludeSources {
		ragResponse.Sources = references
	}
	return ragResponse, nil
}

// buildPrompt 构建增强提示词
func (r *RAGService) buildPrompt(question string, contexts []string) string {
	r.mu.RLock()
	template := r.config.Template
	r.mu.RUnlock()

	prompt := template
	prompt = strings.ReplaceAll(prompt, "{{.Context}}", formatContext(contexts))
	prompt = strings.ReplaceAll(prompt, "{{.Question}}", question)
	return prompt
}

// SetTemplate 设置自定义提示词模板
func (r *RAGService) SetTemplate(template string) *RAGService {
	r.mu.Lock()
	r.config.Template = template
	r.mu.Unlock()
	return r
}
