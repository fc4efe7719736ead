package model

import (
	"mime/multipart"
)

// PaginationRequest 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// ProcessRequest 文档入库请求
// URL和文件至少提供一个
type ProcessRequest struct {
	URL  string                `form:"url" binding:"omitempty,url"` // 网页地址
	File *multipart.FileHeader `form:"file" binding:"omitempty"`    // 上传文件
}

// QARequest 问答请求
type QARequest struct {
	Question string `json:"question" binding:"required"` // 问题内容
}

// DocumentListRequest 文档列表请求
type DocumentListRequest struct {
	PaginationRequest
	Status string `form:"status" json:"status" binding:"omitempty,oneof=uploaded processing completed failed"` // 按状态过滤
}

// DocumentIDRequest 按ID操作文档的请求
type DocumentIDRequest struct {
	ID string `uri:"id" binding:"required"` // 文档记录ID
}
