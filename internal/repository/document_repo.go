package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tekurkaa/DocuRAG/internal/database"
	"github.com/tekurkaa/DocuRAG/internal/models"
)

// docRepository 文档仓储实现
type docRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建文档仓储实例
func NewDocumentRepository() DocumentRepository {
	return &docRepository{db: database.MustDB()}
}

// NewDocumentRepositoryWithDB 使用指定的数据库连接创建文档仓储实例
func NewDocumentRepositoryWithDB(db *gorm.DB) DocumentRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &docRepository{db: db}
}

// Create 创建文档记录
func (r *docRepository) Create(doc *models.Document) error {
	if doc.ID == "" {
		return errors.New("document ID cannot be empty")
	}
	return r.db.Create(doc).Error
}

// Update 更新文档记录
func (r *docRepository) Update(doc *models.Document) error {
	if doc.ID == "" {
		return errors.New("document ID cannot be empty")
	}
	return r.db.Save(doc).Error
}

// GetByID 根据ID获取文档
func (r *docRepository) GetByID(id string) (*models.Document, error) {
	var doc models.Document
	err := r.db.Where("id = ?", id).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NotFoundError(id)
		}
		return nil, err
	}
	return &doc, nil
}

// GetBySource 根据来源获取最近一条文档记录
func (r *docRepository) GetBySource(source string) (*models.Document, error) {
	var doc models.Document
	err := r.db.Where("source = ?", source).Order("uploaded_at DESC").First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NotFoundError(source)
		}
		return nil, err
	}
	return &doc, nil
}

// List 列出文档列表，支持分页和按状态筛选
func (r *docRepository) List(offset, limit int, status models.DocumentStatus) ([]*models.Document, int64, error) {
	var docs []*models.Document
	var total int64

	query := r.db.Model(&models.Document{})
	if status != "" {
		query = query.Where("status = ?", string(status))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 20
	}
	err := query.Order("uploaded_at DESC").Offset(offset).Limit(limit).Find(&docs).Error
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// Delete 删除文档记录
func (r *docRepository) Delete(id string) error {
	result := r.db.Where("id = ?", id).Delete(&models.Document{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.NotFoundError(id)
	}
	return nil
}

// UpdateStatus 更新文档状态及错误信息
func (r *docRepository) UpdateStatus(id string, status models.DocumentStatus, errorMsg string) error {
	if !models.ValidStatus(status) {
		return fmt.Errorf("%w: %s", models.ErrInvalidDocumentStatus, status)
	}

	updates := map[string]interface{}{
		"status":     status,
		"error":      errorMsg,
		"updated_at": time.Now(),
	}
	return r.updateByID(id, updates)
}

// UpdateStage 更新文档处理阶段
func (r *docRepository) UpdateStage(id string, stage models.ProcessStage) error {
	updates := map[string]interface{}{
		"current_stage": stage,
		"status":        models.DocStatusProcessing,
		"updated_at":    time.Now(),
	}
	return r.updateByID(id, updates)
}

// MarkCompleted 标记文档处理完成并记录分块数量
func (r *docRepository) MarkCompleted(id string, chunkCount int) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":        models.DocStatusCompleted,
		"current_stage": models.StageCompleted,
		"chunk_count":   chunkCount,
		"processed_at":  &now,
		"error":         "",
		"updated_at":    now,
	}
	return r.updateByID(id, updates)
}

// updateByID 按ID更新字段，记录不存在时返回错误
func (r *docRepository) updateByID(id string, updates map[string]interface{}) error {
	result := r.db.Model(&models.Document{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.NotFoundError(id)
	}
	return nil
}
