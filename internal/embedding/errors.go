package embedding

import (
	"fmt"
	"net/http"
)

// ErrCode 嵌入调用的错误类别，与openai兼容接口的失败形态对应
type ErrCode string

const (
	// ErrCodeInvalidAPIKey 认证失败（HTTP 401/403）
	ErrCodeInvalidAPIKey ErrCode = "invalid_api_key"
	// ErrCodeInvalidRequest 请求参数非法（本地校验或HTTP 400）
	ErrCodeInvalidRequest ErrCode = "invalid_request"
	// ErrCodeEmptyInput 待嵌入文本为空
	ErrCodeEmptyInput ErrCode = "empty_input"
	// ErrCodeRateLimited 频率超限（HTTP 429）
	ErrCodeRateLimited ErrCode = "rate_limited"
	// ErrCodeTimeout 上下文超时或取消
	ErrCodeTimeout ErrCode = "timeout"
	// ErrCodeNetworkError 重试耗尽后仍无法连通服务端
	ErrCodeNetworkError ErrCode = "network_error"
	// ErrCodeServerError 服务端错误或响应不可解析
	ErrCodeServerError ErrCode = "server_error"
)

// EmbeddingError 携带错误类别的嵌入错误
type EmbeddingError struct {
	Code    ErrCode // 错误类别
	Message string  // 上游返回或本地生成的描述
}

// Error 实现error接口
func (e EmbeddingError) Error() string {
	return fmt.Sprintf("embedding %s: %s", e.Code, e.Message)
}

// NewEmbeddingError 创建新的嵌入错误
func NewEmbeddingError(code ErrCode, message string) EmbeddingError {
	return EmbeddingError{
		Code:    code,
		Message: message,
	}
}

// errorFromStatus 将openai接口返回的HTTP状态码映射为错误类别
func errorFromStatus(status int, message string) EmbeddingError {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return NewEmbeddingError(ErrCodeInvalidAPIKey, message)
	case http.StatusTooManyRequests:
		return NewEmbeddingError(ErrCodeRateLimited, message)
	case http.StatusBadRequest:
		return NewEmbeddingError(ErrCodeInvalidRequest, message)
	default:
		return NewEmbeddingError(ErrCodeServerError, message)
	}
}
