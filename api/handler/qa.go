package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tekurkaa/DocuRAG/api/middleware"
	"github.com/tekurkaa/DocuRAG/api/model"
	"github.com/tekurkaa/DocuRAG/internal/services"
	"github.com/tekurkaa/DocuRAG/internal/vectordb"
)

// QAHandler 问答处理器
type QAHandler struct {
	pipeline *services.Pipeline // 文档问答流水线
	logger   *logrus.Logger     // 日志记录器
}

// NewQAHandler 创建问答处理器
func NewQAHandler(pipeline *services.Pipeline) *QAHandler {
	return &QAHandler{
		pipeline: pipeline,
		logger:   middleware.GetLogger(),
	}
}

// Answer 回答问题
// POST /api/qa
// 查询前确认索引已加载：磁盘上没有索引直接报错，有则先加载
func (h *QAHandler) Answer(c *gin.Context) {
	var req model.QARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("question cannot be empty", err.Error()))
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		middleware.HandleError(c, middleware.NewValidationError("question cannot be empty"))
		return
	}

	if !h.pipeline.IndexLoaded() {
		exists, err := h.pipeline.IndexExists()
		if err != nil {
			middleware.HandleError(c, middleware.NewInternalError("failed to check index", err.Error()))
			return
		}
		if !exists {
			middleware.HandleError(c, middleware.NewNotFoundError("no index found, process a document first"))
			return
		}

		if err := h.pipeline.LoadIndex(); err != nil {
			if errors.Is(err, vectordb.ErrIndexNotFound) {
				middleware.HandleError(c, middleware.NewNotFoundError("no index found, process a document first"))
				return
			}
			middleware.HandleError(c, middleware.NewInternalError("failed to load index", err.Error()))
			return
		}
	}

	answer, err := h.pipeline.Query(c.Request.Context(), question)
	if err != nil {
		if errors.Is(err, services.ErrIndexNotLoaded) {
			middleware.HandleError(c, middleware.NewInternalError("index not initialized"))
			return
		}
		middleware.HandleError(c, middleware.NewUpstreamError("failed to answer question", err))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewQAResponse(question, answer)))
}
