package storage

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// FileInfo 已归档文档的元数据
type FileInfo struct {
	Name     string    // 原始文件名，同时作为存储键
	Size     int64     // 文件大小(字节)
	MimeType string    // 文件MIME类型
	Path     string    // 内部存储路径(实现相关)
	ModTime  time.Time // 最近一次保存时间
}

// Storage 原始文档归档接口
// 按文件名作为键保存上传的原始文档，同名保存会覆盖旧副本
type Storage interface {
	// Save 保存文档并返回文件信息
	Save(reader io.Reader, name string) (FileInfo, error)

	// Get 获取文档内容
	Get(name string) (io.ReadCloser, error)

	// Delete 删除文档
	Delete(name string) error

	// List 列出所有已归档文档
	List() ([]FileInfo, error)

	// Exists 检查文档是否存在
	Exists(name string) (bool, error)
}

// Config 存储配置
type Config struct {
	Type  string      // 存储类型: "local", "minio"
	Local LocalConfig // 本地存储配置
	Minio MinioConfig // MinIO存储配置
}

// NewStorage 根据配置创建存储实例
func NewStorage(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalStorage(cfg.Local)
	case "minio":
		return NewMinioStorage(cfg.Minio)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// objectName 将文件名规范化为安全的存储键
// 去掉路径部分，把路径分隔符替换为下划线
func objectName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, string(filepath.Separator), "_")
	if name == "" || name == "." || name == ".." {
		return "unnamed"
	}
	return name
}

// getMimeType 根据文件扩展名判断MIME类型
func getMimeType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".html", ".htm":
		return "text/html"
	default:
		return "application/octet-stream"
	}
}
