package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tekurkaa/DocuRAG/internal/document"
)

// WebHandler 表单页面处理器
type WebHandler struct{}

// NewWebHandler 创建表单页面处理器
func NewWebHandler() *WebHandler {
	return &WebHandler{}
}

// Index 渲染问答表单页面
// GET /
func (h *WebHandler) Index(c *gin.Context) {
	extensions := document.SupportedExtensions()
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Accept":     strings.Join(extensions, ","),
		"Extensions": strings.Join(extensions, " "),
	})
}
