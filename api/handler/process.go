package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tekurkaa/DocuRAG/api/middleware"
	"github.com/tekurkaa/DocuRAG/api/model"
	"github.com/tekurkaa/DocuRAG/internal/document"
	"github.com/tekurkaa/DocuRAG/internal/services"
)

// ProcessHandler 文档入库处理器
// 在一个请求内同步执行加载、分块、向量化和索引重建
type ProcessHandler struct {
	pipeline *services.Pipeline // 文档问答流水线
	logger   *logrus.Logger     // 日志记录器
}

// NewProcessHandler 创建文档入库处理器
func NewProcessHandler(pipeline *services.Pipeline) *ProcessHandler {
	return &ProcessHandler{
		pipeline: pipeline,
		logger:   middleware.GetLogger(),
	}
}

// Process 处理文档入库请求
// POST /api/process (multipart: url + file)
func (h *ProcessHandler) Process(c *gin.Context) {
	var req model.ProcessRequest
	if err := c.ShouldBind(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid request", err.Error()))
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" && req.File == nil {
		middleware.HandleError(c, middleware.NewValidationError("provide a URL or upload a file"))
		return
	}

	var urls []string
	if req.URL != "" {
		urls = append(urls, req.URL)
	}

	var uploads []services.Upload
	if req.File != nil {
		file, err := req.File.Open()
		if err != nil {
			middleware.HandleError(c, middleware.NewInternalError("failed to read uploaded file", err.Error()))
			return
		}
		defer file.Close()

		uploads = append(uploads, services.Upload{
			Filename: req.File.Filename,
			Reader:   file,
		})
	}

	ctx := c.Request.Context()

	// 阶段一：加载
	docs, err := h.pipeline.LoadDocuments(ctx, urls, uploads)
	if err != nil {
		switch {
		case errors.Is(err, document.ErrUnsupportedFormat):
			middleware.HandleError(c, middleware.NewUnsupportedFormatError(err.Error()))
		default:
			middleware.HandleError(c, middleware.NewUpstreamError("failed to load documents", err))
		}
		return
	}
	if len(docs) == 0 {
		middleware.HandleError(c, middleware.NewEmptyResultError("no content could be loaded from the given input"))
		return
	}

	// 阶段二：分块
	chunks := h.pipeline.SplitDocuments(docs)
	if len(chunks) == 0 {
		middleware.HandleError(c, middleware.NewEmptyResultError("splitting produced no chunks"))
		return
	}

	// 阶段三：向量化并重建索引
	if err := h.pipeline.BuildIndex(ctx, chunks); err != nil {
		middleware.HandleError(c, middleware.NewUpstreamError("failed to build index", err))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.ProcessResponse{
		Documents: len(docs),
		Chunks:    len(chunks),
		Sources:   documentSources(docs),
		Status:    "completed",
	}))
}

// documentSources 按首次出现顺序返回去重后的来源列表
func documentSources(docs []document.Document) []string {
	seen := make(map[string]bool)
	var sources []string
	for _, doc := range docs {
		source := doc.Source()
		if source == "" || seen[source] {
			continue
		}
		seen[source] = true
		sources = append(sources, source)
	}
	return sources
}
