package model

import (
	"strings"
	"time"

	"github.com/tekurkaa/DocuRAG/internal/models"
	"github.com/tekurkaa/DocuRAG/internal/services"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// ProcessResponse 文档入库响应
// 各阶段的统计在阶段完成后填充
type ProcessResponse struct {
	Documents int      `json:"documents"` // 加载的文档数
	Chunks    int      `json:"chunks"`    // 入库的分块数
	Sources   []string `json:"sources"`   // 入库的来源
	Status    string   `json:"status"`    // 最终状态
}

// QAResponse 问答响应
type QAResponse struct {
	Question string   `json:"question"` // 用户问题
	Answer   string   `json:"answer"`   // 生成的回答
	Sources  []string `json:"sources"`  // 引用来源列表
}

// NewQAResponse 从流水线结果构建问答响应
func NewQAResponse(question string, answer *services.Answer) QAResponse {
	var sources []string
	if answer.Sources != "" {
		sources = strings.Split(answer.Sources, "\n")
	}
	return QAResponse{
		Question: question,
		Answer:   answer.Text,
		Sources:  sources,
	}
}

// DocumentInfo 文档记录信息
type DocumentInfo struct {
	ID          string `json:"id"`                     // 记录ID
	Source      string `json:"source"`                 // 来源（文件名或URL）
	SourceType  string `json:"source_type"`            // 来源类型：file或url
	Status      string `json:"status"`                 // 处理状态
	Stage       string `json:"stage,omitempty"`        // 当前处理阶段
	ChunkCount  int    `json:"chunk_count"`            // 分块数量
	FileSize    int64  `json:"file_size,omitempty"`    // 文件大小
	Error       string `json:"error,omitempty"`        // 错误信息
	UploadedAt  string `json:"uploaded_at"`            // 入库时间
	ProcessedAt string `json:"processed_at,omitempty"` // 处理完成时间
}

// NewDocumentInfo 从数据库记录构建文档信息
func NewDocumentInfo(doc *models.Document) DocumentInfo {
	info := DocumentInfo{
		ID:         doc.ID,
		Source:     doc.Source,
		SourceType: doc.SourceType,
		Status:     string(doc.Status),
		Stage:      string(doc.CurrentStage),
		ChunkCount: doc.ChunkCount,
		FileSize:   doc.FileSize,
		Error:      doc.Error,
		UploadedAt: doc.UploadedAt.Format(time.RFC3339),
	}
	if doc.ProcessedAt != nil {
		info.ProcessedAt = doc.ProcessedAt.Format(time.RFC3339)
	}
	return info
}

// DocumentListResponse 文档列表响应
type DocumentListResponse struct {
	Total     int64          `json:"total"`     // 总数量
	Page      int            `json:"page"`      // 当前页码
	PageSize  int            `json:"page_size"` // 每页大小
	Documents []DocumentInfo `json:"documents"` // 文档列表
}

// DocumentDeleteResponse 文档删除响应
type DocumentDeleteResponse struct {
	Success bool   `json:"success"` // 是否成功
	ID      string `json:"id"`      // 记录ID
}
