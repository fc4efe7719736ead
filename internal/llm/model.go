package llm

import "time"

// MessageRole 消息角色类型
type MessageRole string

const (
	// RoleSystem 系统角色
	RoleSystem MessageRole = "system"
	// RoleUser 用户角色
	RoleUser MessageRole = "user"
	// RoleAssistant 助手角色
	RoleAssistant MessageRole = "assistant"
)

// Message 对话消息结构
type Message struct {
	Role    MessageRole `json:"role"`           // 角色
	Content string      `json:"content"`        // 内容
	Name    string      `json:"name,omitempty"` // 可选名称标识
}

// openaiChatRequest OpenAI聊天补全请求结构
type openaiChatRequest struct {
	Model       string    `json:"model"`                 // 模型名称
	Messages    []Message `json:"messages"`              // 消息列表
	MaxTokens   *int      `json:"max_tokens,omitempty"`  // 最大生成Token数
	Temperature *float32  `json:"temperature,omitempty"` // 采样温度
	TopP        *float32  `json:"top_p,omitempty"`       // 核采样概率阈值
}

// openaiChatResponse OpenAI聊天补全响应结构
type openaiChatResponse struct {
	ID      string             `json:"id"`      // 响应ID
	Model   string             `json:"model"`   // 模型名称
	Choices []openaiChatChoice `json:"choices"` // 候选回答
	Usage   openaiUsage        `json:"usage"`   // 资源使用情况
}

// openaiChatChoice 候选回答
type openaiChatChoice struct {
	Index        int     `json:"index"`         // 序号
	Message      Message `json:"message"`       // 消息内容
	FinishReason string  `json:"finish_reason"` // 结束原因
}

// openaiUsage 资源使用情况
type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`     // 输入token数
	CompletionTokens int `json:"completion_tokens"` // 输出token数
	TotalTokens      int `json:"total_tokens"`      // 总token数
}

// openaiErrorResponse OpenAI错误响应结构
type openaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Response 统一的响应结构
type Response struct {
	Text       string    // 生成的文本
	Messages   []Message // 消息列表（如果是对话）
	TokenCount int       // 使用的token数
	ModelName  string    // 使用的模型名称
	FinishTime time.Time // 完成时间
}

// RAGResponse 检索增强生成的响应结构
type RAGResponse struct {
	Answer  string            // 回答内容
	Sources []SourceReference // 引用来源
}

// SourceReference 引用来源
type SourceReference struct {
	ID      string // 引用标识
	Source  string // 来源（文件名或URL）
	Content string // 引用内容
}

// 常用模型名称
const (
	ModelGPT4oMini = "gpt-4o-mini" // 均衡的默认模型
	ModelGPT4o     = "gpt-4o"      // 高级能力模型
	ModelGPT4Turbo = "gpt-4-turbo" // 长上下文模型
)
