package vectordb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// flatSnapshotFile 持久化快照在索引目录下的文件名
const flatSnapshotFile = "index.json"

// FlatRepository 线性扫描的向量索引
// 分块保存在内存中，Save时整体序列化为JSON快照写入索引目录，
// 适合中小规模语料，无需外部依赖
type FlatRepository struct {
	mu          sync.RWMutex
	config      Config
	chunks      []Chunk
	idToPos     map[string]int
	sourceToIDs map[string][]string
}

// flatSnapshot 持久化快照格式
type flatSnapshot struct {
	Dimension    int          `json:"dimension"`
	DistanceType DistanceType `json:"distance_type"`
	SavedAt      time.Time    `json:"saved_at"`
	Chunks       []Chunk      `json:"chunks"`
}

// NewFlatRepository 创建一个空的flat索引
func NewFlatRepository(config Config) (Repository, error) {
	if config.DistanceType == "" {
		config.DistanceType = Cosine
	}
	return &FlatRepository{
		config:      config,
		idToPos:     make(map[string]int),
		sourceToIDs: make(map[string][]string),
	}, nil
}

// OpenFlatRepository 从持久化快照加载flat索引
// 快照不存在时返回ErrIndexNotFound
func OpenFlatRepository(config Config) (Repository, error) {
	data, err := os.ReadFile(flatSnapshotPath(config))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrIndexNotFound
		}
		return nil, fmt.Errorf("failed to read index snapshot: %w", err)
	}

	var snapshot flatSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse index snapshot: %w", err)
	}

	if config.DistanceType == "" {
		config.DistanceType = snapshot.DistanceType
	}
	if config.Dimension == 0 {
		config.Dimension = snapshot.Dimension
	}

	repo := &FlatRepository{
		config:      config,
		idToPos:     make(map[string]int),
		sourceToIDs: make(map[string][]string),
	}
	for _, chunk := range snapshot.Chunks {
		repo.append(chunk)
	}
	return repo, nil
}

// FlatIndexExists 检查flat索引快照是否存在
func FlatIndexExists(config Config) (bool, error) {
	_, err := os.Stat(flatSnapshotPath(config))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func flatSnapshotPath(config Config) string {
	return filepath.Join(config.Path, flatSnapshotFile)
}

// append 将分块追加到内存结构，调用方需持有写锁
func (r *FlatRepository) append(chunk Chunk) {
	r.idToPos[chunk.ID] = len(r.chunks)
	r.sourceToIDs[chunk.Source] = append(r.sourceToIDs[chunk.Source], chunk.ID)
	r.chunks = append(r.chunks, chunk)
}

// Add 添加单个分块
func (r *FlatRepository) Add(chunk Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.add(chunk)
}

func (r *FlatRepository) add(chunk Chunk) error {
	if err := ValidateVector(chunk.Vector, r.config.Dimension); err != nil {
		return err
	}
	if chunk.ID == "" {
		chunk.ID = uuid.New().String()
	}
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now()
	}
	if _, exists := r.idToPos[chunk.ID]; exists {
		return fmt.Errorf("duplicate chunk ID: %s", chunk.ID)
	}

	// 首个分块确定索引维度
	if r.config.Dimension == 0 {
		r.config.Dimension = len(chunk.Vector)
	}

	r.append(chunk)
	return nil
}

// AddBatch 批量添加分块
func (r *FlatRepository) AddBatch(chunks []Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, chunk := range chunks {
		if err := r.add(chunk); err != nil {
			return fmt.Errorf("failed to add chunk %d: %w", i, err)
		}
	}
	return nil
}

// Get 获取单个分块
func (r *FlatRepository) Get(id string) (Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pos, ok := r.idToPos[id]
	if !ok {
		return Chunk{}, ErrChunkNotFound
	}
	return r.chunks[pos], nil
}

// Delete 删除单个分块
func (r *FlatRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.idToPos[id]; !ok {
		return ErrChunkNotFound
	}
	r.rebuildWithout(map[string]bool{id: true})
	return nil
}

// DeleteBySource 删除指定来源的所有分块
func (r *FlatRepository) DeleteBySource(source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, ok := r.sourceToIDs[source]
	if !ok || len(ids) == 0 {
		return nil
	}
	removed := make(map[string]bool, len(ids))
	for _, id := range ids {
		removed[id] = true
	}
	r.rebuildWithout(removed)
	return nil
}

// rebuildWithout 重建内存结构并排除指定ID，调用方需持有写锁
func (r *FlatRepository) rebuildWithout(removed map[string]bool) {
	kept := make([]Chunk, 0, len(r.chunks))
	for _, chunk := range r.chunks {
		if !removed[chunk.ID] {
			kept = append(kept, chunk)
		}
	}

	r.chunks = nil
	r.idToPos = make(map[string]int, len(kept))
	r.sourceToIDs = make(map[string][]string)
	for _, chunk := range kept {
		r.append(chunk)
	}
}

// Search 线性扫描的相似度搜索
func (r *FlatRepository) Search(vector []float32, filter SearchFilter) ([]SearchResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := ValidateVector(vector, r.config.Dimension); err != nil {
		return nil, err
	}

	var results []SearchResult
	for _, chunk := range r.chunks {
		if !matchesFilter(chunk, filter) {
			continue
		}

		distance, err := ComputeDistance(vector, chunk.Vector, r.config.DistanceType)
		if err != nil {
			return nil, err
		}
		score := DistanceToScore(distance, r.config.DistanceType)
		if score < filter.MinScore {
			continue
		}

		results = append(results, SearchResult{
			Chunk:    chunk,
			Score:    score,
			Distance: distance,
		})
	}

	SortSearchResults(results)
	if filter.MaxResults > 0 && len(results) > filter.MaxResults {
		results = results[:filter.MaxResults]
	}
	return results, nil
}

// Count 获取分块总数
func (r *FlatRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chunks), nil
}

// Dimension 返回向量维数
func (r *FlatRepository) Dimension() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config.Dimension
}

// Save 将索引快照写入配置目录，覆盖已有快照
func (r *FlatRepository) Save() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.config.Path == "" {
		return fmt.Errorf("index path not configured")
	}
	if err := os.MkdirAll(r.config.Path, 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	snapshot := flatSnapshot{
		Dimension:    r.config.Dimension,
		DistanceType: r.config.DistanceType,
		SavedAt:      time.Now(),
		Chunks:       r.chunks,
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to serialize index snapshot: %w", err)
	}

	if err := os.WriteFile(flatSnapshotPath(r.config), data, 0644); err != nil {
		return fmt.Errorf("failed to write index snapshot: %w", err)
	}
	return nil
}

// Close 关闭索引
func (r *FlatRepository) Close() error {
	return nil
}

func init() {
	RegisterDriver("flat", Driver{
		New:    NewFlatRepository,
		Open:   OpenFlatRepository,
		Exists: FlatIndexExists,
	})
}
