//go:build cgo

package vectordb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/DataIntelligenceCrew/go-faiss"
	"github.com/google/uuid"
)

// faiss索引目录下的文件名
const (
	faissIndexFile = "index.faiss"
	faissMetaFile  = "index.meta.json"
)

// FaissRepository 基于Faiss的向量索引
// 向量存储在Faiss flat索引中，分块元数据保存为JSON附属文件
type FaissRepository struct {
	mu           sync.RWMutex
	index        faiss.Index
	config       Config
	chunks       map[string]Chunk
	sourceToIDs  map[string][]string
	idToPosition map[string]int
	posToID      map[int]string
}

// faissMetadata 附属元数据文件格式
type faissMetadata struct {
	Dimension    int                 `json:"dimension"`
	DistanceType DistanceType        `json:"distance_type"`
	Chunks       map[string]Chunk    `json:"chunks"`
	SourceToIDs  map[string][]string `json:"source_to_ids"`
	IDToPosition map[string]int      `json:"id_to_position"`
}

// NewFaissRepository 创建一个空的Faiss索引
func NewFaissRepository(config Config) (Repository, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}
	if config.DistanceType == "" {
		config.DistanceType = Cosine
	}

	index, err := createFaissIndex(config.Dimension, config.DistanceType)
	if err != nil {
		return nil, fmt.Errorf("failed to create faiss index: %w", err)
	}

	return &FaissRepository{
		index:        index,
		config:       config,
		chunks:       make(map[string]Chunk),
		sourceToIDs:  make(map[string][]string),
		idToPosition: make(map[string]int),
		posToID:      make(map[int]string),
	}, nil
}

// OpenFaissRepository 从持久化文件加载Faiss索引
// 索引文件不存在时返回ErrIndexNotFound
func OpenFaissRepository(config Config) (Repository, error) {
	indexPath := filepath.Join(config.Path, faissIndexFile)
	if !fileExists(indexPath) {
		return nil, ErrIndexNotFound
	}

	index, err := faiss.ReadIndex(indexPath, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read faiss index: %w", err)
	}

	meta, err := loadFaissMetadata(filepath.Join(config.Path, faissMetaFile))
	if err != nil {
		return nil, err
	}

	if config.Dimension == 0 {
		config.Dimension = meta.Dimension
	}
	if config.DistanceType == "" {
		config.DistanceType = meta.DistanceType
	}

	repo := &FaissRepository{
		index:        index,
		config:       config,
		chunks:       meta.Chunks,
		sourceToIDs:  meta.SourceToIDs,
		idToPosition: meta.IDToPosition,
		posToID:      make(map[int]string, len(meta.IDToPosition)),
	}
	if repo.chunks == nil {
		repo.chunks = make(map[string]Chunk)
	}
	if repo.sourceToIDs == nil {
		repo.sourceToIDs = make(map[string][]string)
	}
	if repo.idToPosition == nil {
		repo.idToPosition = make(map[string]int)
	}
	for id, pos := range repo.idToPosition {
		repo.posToID[pos] = id
	}
	return repo, nil
}

// FaissIndexExists 检查Faiss索引文件是否存在
func FaissIndexExists(config Config) (bool, error) {
	return fileExists(filepath.Join(config.Path, faissIndexFile)), nil
}

// createFaissIndex 按距离类型创建flat索引
func createFaissIndex(dimension int, distType DistanceType) (faiss.Index, error) {
	var metric int
	switch distType {
	case Cosine, DotProduct:
		metric = faiss.MetricInnerProduct
	case Euclidean:
		metric = faiss.MetricL2
	default:
		metric = faiss.MetricL2
	}
	return faiss.NewIndexFlat(dimension, metric)
}

// Add 添加单个分块
func (r *FaissRepository) Add(chunk Chunk) error {
	return r.AddBatch([]Chunk{chunk})
}

// AddBatch 批量添加分块
func (r *FaissRepository) AddBatch(chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	for i := range chunks {
		if err := ValidateVector(chunks[i].Vector, r.config.Dimension); err != nil {
			return fmt.Errorf("invalid vector for chunk %s: %w", chunks[i].ID, err)
		}
		// 余弦距离通过归一化向量的内积实现
		if r.config.DistanceType == Cosine {
			chunks[i].Vector = normalizeVector(chunks[i].Vector)
		}
		if chunks[i].ID == "" {
			chunks[i].ID = uuid.New().String()
		}
		if chunks[i].CreatedAt.IsZero() {
			chunks[i].CreatedAt = time.Now()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	startPos := int(r.index.Ntotal())
	for _, chunk := range chunks {
		if err := r.index.Add(chunk.Vector); err != nil {
			return fmt.Errorf("failed to add vector to index: %w", err)
		}
	}

	for i, chunk := range chunks {
		pos := startPos + i
		r.chunks[chunk.ID] = chunk
		r.idToPosition[chunk.ID] = pos
		r.posToID[pos] = chunk.ID
		r.sourceToIDs[chunk.Source] = append(r.sourceToIDs[chunk.Source], chunk.ID)
	}
	return nil
}

// Get 获取单个分块
func (r *FaissRepository) Get(id string) (Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chunk, exists := r.chunks[id]
	if !exists {
		return Chunk{}, ErrChunkNotFound
	}
	return chunk, nil
}

// Delete 删除单个分块
// 仅移除元数据，Faiss索引中的向量位置在搜索时被跳过
func (r *FaissRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	chunk, exists := r.chunks[id]
	if !exists {
		return ErrChunkNotFound
	}
	r.removeChunk(chunk)
	return nil
}

// DeleteBySource 删除指定来源的所有分块
func (r *FaissRepository) DeleteBySource(source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.sourceToIDs[source]
	for _, id := range ids {
		if chunk, ok := r.chunks[id]; ok {
			r.removeChunk(chunk)
		}
	}
	return nil
}

// removeChunk 移除单个分块的全部映射，调用方需持有写锁
func (r *FaissRepository) removeChunk(chunk Chunk) {
	delete(r.chunks, chunk.ID)
	if pos, ok := r.idToPosition[chunk.ID]; ok {
		delete(r.posToID, pos)
	}
	delete(r.idToPosition, chunk.ID)

	ids := r.sourceToIDs[chunk.Source]
	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != chunk.ID {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		delete(r.sourceToIDs, chunk.Source)
	} else {
		r.sourceToIDs[chunk.Source] = kept
	}
}

// Search 相似度搜索
func (r *FaissRepository) Search(vector []float32, filter SearchFilter) ([]SearchResult, error) {
	if err := ValidateVector(vector, r.config.Dimension); err != nil {
		return nil, err
	}
	if r.config.DistanceType == Cosine {
		vector = normalizeVector(vector)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.chunks) == 0 {
		return []SearchResult{}, nil
	}

	k := filter.MaxResults
	if k <= 0 {
		k = 10
	}

	// 多取一些以补偿被过滤或已删除的位置
	queryLimit := k * 2
	if total := int(r.index.Ntotal()); queryLimit > total {
		queryLimit = total
	}
	if queryLimit == 0 {
		return []SearchResult{}, nil
	}

	distances, indices, err := r.index.Search(vector, int64(queryLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	var results []SearchResult
	for i := 0; i < len(indices); i++ {
		idx := indices[i]
		if idx < 0 {
			continue
		}
		id, ok := r.posToID[int(idx)]
		if !ok {
			continue
		}
		chunk, exists := r.chunks[id]
		if !exists {
			continue
		}
		if !matchesFilter(chunk, filter) {
			continue
		}

		// 内积度量下faiss返回相似度而非距离
		dist := distances[i]
		if r.config.DistanceType == Cosine {
			dist = 1 - dist
		}
		score := DistanceToScore(dist, r.config.DistanceType)
		if score < filter.MinScore {
			continue
		}

		results = append(results, SearchResult{
			Chunk:    chunk,
			Score:    score,
			Distance: dist,
		})
		if len(results) >= k {
			break
		}
	}

	SortSearchResults(results)
	return results, nil
}

// Count 获取分块总数
func (r *FaissRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chunks), nil
}

// Dimension 返回向量维数
func (r *FaissRepository) Dimension() int {
	return r.config.Dimension
}

// Save 将索引和元数据写入配置目录，覆盖已有文件
func (r *FaissRepository) Save() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.config.Path == "" {
		return fmt.Errorf("index path not configured")
	}
	if err := os.MkdirAll(r.config.Path, 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	if err := faiss.WriteIndex(r.index, filepath.Join(r.config.Path, faissIndexFile)); err != nil {
		return fmt.Errorf("failed to write faiss index: %w", err)
	}

	meta := faissMetadata{
		Dimension:    r.config.Dimension,
		DistanceType: r.config.DistanceType,
		Chunks:       r.chunks,
		SourceToIDs:  r.sourceToIDs,
		IDToPosition: r.idToPosition,
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal index metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.config.Path, faissMetaFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write index metadata: %w", err)
	}
	return nil
}

// Close 释放Faiss索引
func (r *FaissRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index != nil {
		r.index.Delete()
		r.index = nil
	}
	return nil
}

// loadFaissMetadata 读取附属元数据文件
func loadFaissMetadata(path string) (faissMetadata, error) {
	var meta faissMetadata
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return meta, nil
		}
		return meta, fmt.Errorf("failed to read index metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("failed to parse index metadata: %w", err)
	}
	return meta, nil
}

// fileExists 检查文件是否存在
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

func init() {
	RegisterDriver("faiss", Driver{
		New:    NewFaissRepository,
		Open:   OpenFaissRepository,
		Exists: FaissIndexExists,
	})
}
