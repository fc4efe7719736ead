package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tekurkaa/DocuRAG/api/model"
)

// 应用中的错误类型常量
// 每个用户动作边界上的错误都归入其中一类
const (
	ErrorTypeValidation        = "VALIDATION_ERROR"         // 输入验证错误（缺少URL和文件、空问题）
	ErrorTypeUnsupportedFormat = "UNSUPPORTED_FORMAT_ERROR" // 文件格式不支持
	ErrorTypeEmptyResult       = "EMPTY_RESULT_ERROR"       // 某个阶段没有产出可用内容
	ErrorTypeNotFound          = "NOT_FOUND_ERROR"          // 资源不存在（索引或文档记录）
	ErrorTypeUpstream          = "UPSTREAM_ERROR"           // 上游调用失败（抓取、模型、解析）
	ErrorTypeInternal          = "INTERNAL_ERROR"           // 内部错误（包括未加载索引就查询）
)

// AppError 应用错误结构体
type AppError struct {
	Type    string // 错误类型
	Message string // 错误消息
	Details string // 详细错误信息
	Code    int    // HTTP状态码
}

// Error 实现error接口
func (e AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewValidationError 创建输入验证错误
func NewValidationError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusBadRequest,
	}
}

// NewUnsupportedFormatError 创建格式不支持错误
func NewUnsupportedFormatError(message string) AppError {
	return AppError{
		Type:    ErrorTypeUnsupportedFormat,
		Message: message,
		Code:    http.StatusBadRequest,
	}
}

// NewEmptyResultError 创建空结果错误
// 每个阶段使用独立的消息，而不是静默继续下一阶段
func NewEmptyResultError(message string) AppError {
	return AppError{
		Type:    ErrorTypeEmptyResult,
		Message: message,
		Code:    http.StatusUnprocessableEntity,
	}
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(message string) AppError {
	return AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

// NewUpstreamError 创建上游调用失败错误，消息中带上底层原因
func NewUpstreamError(message string, cause error) AppError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return AppError{
		Type:    ErrorTypeUpstream,
		Message: message,
		Details: details,
		Code:    http.StatusBadGateway,
	}
}

// NewInternalError 创建内部错误
func NewInternalError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusInternalServerError,
	}
}

// ErrorHandler 统一错误处理中间件
// panic和处理器通过c.Error上报的错误都在这里转换为JSON响应
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				stack := string(debug.Stack())

				log.WithFields(logrus.Fields{
					"error": err,
					"stack": stack,
					"path":  c.Request.URL.Path,
				}).Error("Panic recovered in API request")

				errResp := model.NewErrorResponse(
					http.StatusInternalServerError,
					"An unexpected error occurred",
				)
				if gin.Mode() == gin.DebugMode {
					errResp.Message = fmt.Sprintf("Panic: %v", err)
				}
				errResp.TraceID = traceIDFromContext(c)

				c.AbortWithStatusJSON(http.StatusInternalServerError, errResp)
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		traceID := traceIDFromContext(c)

		var appErr AppError
		switch e := err.(type) {
		case AppError:
			appErr = e
		case *AppError:
			appErr = *e
		default:
			// 未分类的错误按内部错误处理
			appErr = NewInternalError("Internal server error")
			if gin.Mode() == gin.DebugMode {
				appErr.Message = err.Error()
			}
		}

		log.WithFields(logrus.Fields{
			"error_type": appErr.Type,
			"trace_id":   traceID,
			"path":       c.Request.URL.Path,
			"details":    appErr.Details,
		}).Error(appErr.Message)

		errResp := model.NewErrorResponse(appErr.Code, appErr.Message)
		errResp.TraceID = traceID

		c.AbortWithStatusJSON(appErr.Code, errResp)
	}
}

// HandleError 在处理器中上报错误的辅助函数
func HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
}

// traceIDFromContext 从上下文中取出追踪ID
func traceIDFromContext(c *gin.Context) string {
	if value, exists := c.Get("TraceID"); exists {
		if traceID, ok := value.(string); ok {
			return traceID
		}
	}
	return ""
}
