package vectordb

// MemoryRepository 纯内存向量索引
// 复用flat实现的存储与搜索，不做任何持久化，用于开发和测试
type MemoryRepository struct {
	*FlatRepository
}

// NewMemoryRepository 创建内存索引
func NewMemoryRepository(config Config) (Repository, error) {
	inner, err := NewFlatRepository(config)
	if err != nil {
		return nil, err
	}
	return &MemoryRepository{FlatRepository: inner.(*FlatRepository)}, nil
}

// Save 内存索引不持久化
func (r *MemoryRepository) Save() error {
	return nil
}

func init() {
	RegisterDriver("memory", Driver{
		New: NewMemoryRepository,
		Open: func(Config) (Repository, error) {
			return nil, ErrIndexNotFound
		},
		Exists: func(Config) (bool, error) {
			return false, nil
		},
	})
}
