package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tekurkaa/DocuRAG/api/middleware"
	"github.com/tekurkaa/DocuRAG/api/model"
	"github.com/tekurkaa/DocuRAG/internal/models"
	"github.com/tekurkaa/DocuRAG/internal/repository"
	"github.com/tekurkaa/DocuRAG/pkg/storage"
)

// DocumentHandler 文档记录管理处理器
type DocumentHandler struct {
	repo    repository.DocumentRepository // 文档元数据存储
	storage storage.Storage               // 原始文件存储，可为空
	logger  *logrus.Logger                // 日志记录器
}

// NewDocumentHandler 创建文档记录管理处理器
func NewDocumentHandler(repo repository.DocumentRepository, store storage.Storage) *DocumentHandler {
	return &DocumentHandler{
		repo:    repo,
		storage: store,
		logger:  middleware.GetLogger(),
	}
}

// List 获取文档列表
// GET /api/documents
func (h *DocumentHandler) List(c *gin.Context) {
	var req model.DocumentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid query parameters", err.Error()))
		return
	}

	page := req.GetPage()
	pageSize := req.GetPageSize()
	offset := (page - 1) * pageSize

	docs, total, err := h.repo.List(offset, pageSize, models.DocumentStatus(req.Status))
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("failed to list documents", err.Error()))
		return
	}

	infos := make([]model.DocumentInfo, len(docs))
	for i, doc := range docs {
		infos[i] = model.NewDocumentInfo(doc)
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.DocumentListResponse{
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
		Documents: infos,
	}))
}

// Get 获取单个文档记录
// GET /api/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	var req model.DocumentIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("document id is required"))
		return
	}

	doc, err := h.repo.GetByID(req.ID)
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("document not found"))
			return
		}
		middleware.HandleError(c, middleware.NewInternalError("failed to get document", err.Error()))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewDocumentInfo(doc)))
}

// Delete 删除文档记录及归档的原始文件
// DELETE /api/documents/:id
// 不会触发索引重建，下一次入库才会反映删除
func (h *DocumentHandler) Delete(c *gin.Context) {
	var req model.DocumentIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("document id is required"))
		return
	}

	doc, err := h.repo.GetByID(req.ID)
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("document not found"))
			return
		}
		middleware.HandleError(c, middleware.NewInternalError("failed to get document", err.Error()))
		return
	}

	if err := h.repo.Delete(doc.ID); err != nil {
		middleware.HandleError(c, middleware.NewInternalError("failed to delete document", err.Error()))
		return
	}

	// 归档文件可能不存在，删除失败只记录日志
	if h.storage != nil && doc.SourceType == "file" {
		if err := h.storage.Delete(doc.Source); err != nil {
			h.logger.WithError(err).WithField("source", doc.Source).Warn("Failed to delete archived file")
		}
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.DocumentDeleteResponse{
		Success: true,
		ID:      doc.ID,
	}))
}
