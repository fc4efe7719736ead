package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentStatus 文档处理状态类型
type DocumentStatus string

const (
	// DocStatusUploaded 文档已上传，等待处理
	DocStatusUploaded DocumentStatus = "uploaded"
	// DocStatusProcessing 文档处理中
	DocStatusProcessing DocumentStatus = "processing"
	// DocStatusCompleted 文档处理完成
	DocStatusCompleted DocumentStatus = "completed"
	// DocStatusFailed 文档处理失败
	DocStatusFailed DocumentStatus = "failed"
)

// ProcessStage 文档处理阶段
type ProcessStage string

const (
	// StageLoading 加载阶段
	StageLoading ProcessStage = "loading"
	// StageSplitting 分块阶段
	StageSplitting ProcessStage = "splitting"
	// StageEmbedding 向量化阶段
	StageEmbedding ProcessStage = "embedding"
	// StageCompleted 处理完成
	StageCompleted ProcessStage = "completed"
)

// Document 文档摄取记录
// 记录每个被加载进索引的来源及其处理进度
type Document struct {
	ID           string         `gorm:"primaryKey"`         // 文档ID，主键
	Source       string         `gorm:"not null;index"`     // 来源（文件名或URL）
	SourceType   string         `gorm:"not null;size:20"`   // 来源类型：file或url
	FileType     string         `gorm:"size:20"`            // 文件扩展名
	FileSize     int64          `gorm:"default:0"`          // 文件大小（字节）
	Status       DocumentStatus `gorm:"not null;index"`     // 处理状态
	CurrentStage ProcessStage   `gorm:"size:20"`            // 当前处理阶段
	ChunkCount   int            `gorm:"not null;default:0"` // 分块数量
	Error        string         `gorm:"type:text"`          // 错误信息
	Metadata     datatypes.JSON `gorm:"type:json"`          // 元数据，JSON格式
	UploadedAt   time.Time      `gorm:"not null;index"`     // 上传时间
	ProcessedAt  *time.Time     `gorm:"index"`              // 处理完成时间
	UpdatedAt    time.Time      `gorm:"not null;index"`     // 更新时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (d *Document) BeforeCreate(tx *gorm.DB) (err error) {
	if d.UploadedAt.IsZero() {
		d.UploadedAt = time.Now()
	}
	d.UpdatedAt = time.Now()
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (d *Document) BeforeUpdate(tx *gorm.DB) (err error) {
	d.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (Document) TableName() string {
	return "documents"
}
