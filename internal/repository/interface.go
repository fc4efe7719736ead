package repository

import "github.com/tekurkaa/DocuRAG/internal/models"

// DocumentRepository 文档摄取记录仓储接口
type DocumentRepository interface {
	// Create 创建文档记录
	Create(doc *models.Document) error

	// Update 更新文档记录
	Update(doc *models.Document) error

	// GetByID 根据ID获取文档
	GetByID(id string) (*models.Document, error)

	// GetBySource 根据来源获取文档
	GetBySource(source string) (*models.Document, error)

	// List 列出文档列表，支持分页和按状态筛选
	List(offset, limit int, status models.DocumentStatus) ([]*models.Document, int64, error)

	// Delete 删除文档记录
	Delete(id string) error

	// UpdateStatus 更新文档状态及错误信息
	UpdateStatus(id string, status models.DocumentStatus, errorMsg string) error

	// UpdateStage 更新文档处理阶段
	UpdateStage(id string, stage models.ProcessStage) error

	// MarkCompleted 标记文档处理完成并记录分块数量
	MarkCompleted(id string, chunkCount int) error
}
