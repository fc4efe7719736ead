package vectordb

import (
	"errors"
	"fmt"
	"time"
)

// 常用错误定义
var (
	ErrChunkNotFound    = errors.New("chunk not found")
	ErrEmptyVector      = errors.New("empty vector")
	ErrInvalidID        = errors.New("invalid chunk ID")
	ErrInvalidDimension = errors.New("vector dimension mismatch")
	// ErrIndexNotFound 持久化索引不存在
	ErrIndexNotFound = errors.New("vector index not found")
)

// Chunk 文本分块模型
// 包含向量表示、来源及附加元数据
type Chunk struct {
	ID        string            `json:"id"`                 // 唯一标识符
	Source    string            `json:"source"`             // 来源（文件名或URL）
	Position  int               `json:"position"`           // 在原文档中的分块位置
	Text      string            `json:"text"`               // 原始文本内容
	Vector    []float32         `json:"vector"`             // 向量表示
	CreatedAt time.Time         `json:"created_at"`         // 创建时间
	Metadata  map[string]string `json:"metadata,omitempty"` // 附加元数据
}

// DistanceType 向量距离计算方法
type DistanceType string

const (
	// Cosine 余弦相似度
	Cosine DistanceType = "cosine"
	// DotProduct 点积
	DotProduct DistanceType = "dot"
	// Euclidean 欧几里得距离
	Euclidean DistanceType = "l2"
)

// SearchResult 搜索结果
type SearchResult struct {
	Chunk    Chunk   // 命中的分块
	Score    float32 // 相似度得分
	Distance float32 // 计算的距离
}

// SearchFilter 搜索过滤条件
type SearchFilter struct {
	Sources    []string          // 按来源过滤
	Metadata   map[string]string // 按元数据过滤
	MinScore   float32           // 最小相似度分数
	MaxResults int               // 最大返回结果数
}

// DefaultSearchFilter 返回默认的搜索过滤器
func DefaultSearchFilter() SearchFilter {
	return SearchFilter{
		MinScore:   0.0,
		MaxResults: 5,
	}
}

// Repository 向量索引仓库接口
type Repository interface {
	// Add 添加单个分块
	Add(chunk Chunk) error

	// AddBatch 批量添加分块
	AddBatch(chunks []Chunk) error

	// Get 获取单个分块
	Get(id string) (Chunk, error)

	// Delete 删除单个分块
	Delete(id string) error

	// DeleteBySource 删除指定来源的所有分块
	DeleteBySource(source string) error

	// Search 相似度搜索
	Search(vector []float32, filter SearchFilter) ([]SearchResult, error)

	// Count 获取分块总数
	Count() (int, error)

	// Dimension 返回向量维数
	Dimension() int

	// Save 将索引持久化到配置的路径，覆盖已有内容
	Save() error

	// Close 关闭索引
	Close() error
}

// Config 向量索引配置
type Config struct {
	Type         string       // 索引类型，如 "flat", "faiss", "memory"
	Path         string       // 索引持久化目录
	Dimension    int          // 向量维度
	DistanceType DistanceType // 距离计算类型
}

// Driver 一种向量索引实现的工厂集合
// New总是创建空索引（全量重建语义），Open加载已持久化的索引，
// 索引不存在时Open返回ErrIndexNotFound
type Driver struct {
	New    func(config Config) (Repository, error)
	Open   func(config Config) (Repository, error)
	Exists func(config Config) (bool, error)
}

// 已注册的索引驱动
var drivers = map[string]Driver{}

// RegisterDriver 注册向量索引驱动
func RegisterDriver(name string, driver Driver) {
	drivers[name] = driver
}

// driverFor 查找驱动，类型为空时使用flat实现
func driverFor(typ string) (Driver, error) {
	if typ == "" {
		typ = "flat"
	}
	driver, ok := drivers[typ]
	if !ok {
		return Driver{}, fmt.Errorf("unknown vector index type: %s", typ)
	}
	return driver, nil
}

// NewRepository 创建一个全新的空索引
func NewRepository(config Config) (Repository, error) {
	driver, err := driverFor(config.Type)
	if err != nil {
		return nil, err
	}
	return driver.New(config)
}

// OpenRepository 加载已持久化的索引
// 索引不存在时返回ErrIndexNotFound
func OpenRepository(config Config) (Repository, error) {
	driver, err := driverFor(config.Type)
	if err != nil {
		return nil, err
	}
	return driver.Open(config)
}

// IndexExists 检查配置路径下是否存在已持久化的索引
func IndexExists(config Config) (bool, error) {
	driver, err := driverFor(config.Type)
	if err != nil {
		return false, err
	}
	return driver.Exists(config)
}
