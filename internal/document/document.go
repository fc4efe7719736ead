package document

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"
)

// 常用错误定义
var (
	// ErrUnsupportedFormat 文件扩展名没有对应的解析器
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrEmptyContent 解析结果为空
	ErrEmptyContent = errors.New("no text content found in document")
)

// MetaSource 元数据中标识来源的键名
// 引用展示时使用该字段的值（上传文件名或URL）
const MetaSource = "source"

// Document 一段已加载的文本及其元数据
// 由加载器创建，分段器消费；分段产物仍然是Document
type Document struct {
	Content  string            // 文本内容
	Metadata map[string]string // 元数据，至少包含source
}

// NewDocument 创建带来源信息的文档
func NewDocument(content, source string) Document {
	return Document{
		Content: content,
		Metadata: map[string]string{
			MetaSource: source,
		},
	}
}

// Source 返回文档的来源标识
func (d Document) Source() string {
	return d.Metadata[MetaSource]
}

// CloneMetadata 复制元数据映射
// 分段时每个分块持有独立的副本，避免共享可变状态
func (d Document) CloneMetadata() map[string]string {
	meta := make(map[string]string, len(d.Metadata))
	for k, v := range d.Metadata {
		meta[k] = v
	}
	return meta
}

// Loader 文件加载器接口
// 负责将某种格式的文件解析为Document列表
type Loader interface {
	// Load 解析文件并返回文档列表
	Load(filePath string) ([]Document, error)
}

// LoaderFactory 加载器工厂函数类型
type LoaderFactory func() Loader

// 按文件扩展名注册的加载器工厂
var loaderFactories = make(map[string]LoaderFactory)

// RegisterLoader 注册指定扩展名的加载器工厂
// 扩展名需要带点号，例如".pdf"
func RegisterLoader(ext string, factory LoaderFactory) {
	loaderFactories[strings.ToLower(ext)] = factory
}

// LoaderFor 根据文件名创建对应的加载器
// 没有匹配的扩展名时返回ErrUnsupportedFormat
func LoaderFor(filename string) (Loader, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	factory, ok := loaderFactories[ext]
	if !ok {
		return nil, ErrUnsupportedFormat
	}
	return factory(), nil
}

// SupportedExtensions 返回所有已注册的扩展名（升序）
func SupportedExtensions() []string {
	exts := make([]string, 0, len(loaderFactories))
	for ext := range loaderFactories {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
