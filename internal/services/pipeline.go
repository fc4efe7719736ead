package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tekurkaa/DocuRAG/internal/cache"
	"github.com/tekurkaa/DocuRAG/internal/document"
	"github.com/tekurkaa/DocuRAG/internal/embedding"
	"github.com/tekurkaa/DocuRAG/internal/llm"
	"github.com/tekurkaa/DocuRAG/internal/models"
	"github.com/tekurkaa/DocuRAG/internal/repository"
	"github.com/tekurkaa/DocuRAG/internal/vectordb"
	"github.com/tekurkaa/DocuRAG/pkg/storage"
)

// ErrIndexNotLoaded 在尚未构建或加载索引时执行查询会返回此错误
var ErrIndexNotLoaded = errors.New("no index loaded, build or load an index first")

// Answer 问答结果
// Sources为去重后的来源列表，按首次出现顺序用换行符拼接
type Answer struct {
	Text    string `json:"text"`
	Sources string `json:"sources"`
}

// Upload 待入库的上传文件
type Upload struct {
	Filename string    // 原始文件名，用于选择加载器和标记来源
	Reader   io.Reader // 文件内容
}

// Pipeline 文档问答流水线
// 负责协调文档加载、分块、向量化、索引构建和问答
type Pipeline struct {
	embedder     embedding.Client              // 嵌入模型客户端
	llmClient    llm.Client                    // 大模型客户端
	rag          *llm.RAGService               // RAG服务
	splitter     *document.TextSplitter        // 文本分块器
	urlLoader    *document.URLLoader           // 网页加载器
	cache        cache.Cache                   // 问答缓存
	cacheTTL     time.Duration                 // 缓存有效期
	storage      storage.Storage               // 原始文件存储
	repo         repository.DocumentRepository // 文档元数据存储
	vectorConfig vectordb.Config               // 向量索引配置
	searchLimit  int                           // 检索结果数量限制
	minScore     float32                       // 最低相似度分数
	batchSize    int                           // 嵌入批处理大小
	maxWorkers   int                           // 嵌入并发数
	logger       *logrus.Logger                // 日志记录器

	mu    sync.RWMutex
	index vectordb.Repository // 当前加载的索引，查询前必须就绪
}

// PipelineOption 流水线配置选项
type PipelineOption func(*Pipeline)

// NewPipeline 创建文档问答流水线
func NewPipeline(
	embedder embedding.Client,
	llmClient llm.Client,
	vectorConfig vectordb.Config,
	opts ...PipelineOption,
) (*Pipeline, error) {
	splitter, err := document.NewTextSplitter(document.DefaultSplitterConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create text splitter: %w", err)
	}

	p := &Pipeline{
		embedder:     embedder,
		llmClient:    llmClient,
		splitter:     splitter,
		urlLoader:    document.NewURLLoader(),
		vectorConfig: vectorConfig,
		cacheTTL:     24 * time.Hour,
		searchLimit:  5,
		minScore:     0.0,
		batchSize:    16,
		maxWorkers:   4,
		logger:       logrus.New(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.rag == nil {
		p.rag = llm.NewRAG(llmClient)
	}

	return p, nil
}

// WithSplitter 设置文本分块器
func WithSplitter(splitter *document.TextSplitter) PipelineOption {
	return func(p *Pipeline) {
		if splitter != nil {
			p.splitter = splitter
		}
	}
}

// WithURLLoader 设置网页加载器
func WithURLLoader(loader *document.URLLoader) PipelineOption {
	return func(p *Pipeline) {
		if loader != nil {
			p.urlLoader = loader
		}
	}
}

// WithRAG 设置RAG服务
func WithRAG(rag *llm.RAGService) PipelineOption {
	return func(p *Pipeline) {
		p.rag = rag
	}
}

// WithCache 设置问答缓存
func WithCache(c cache.Cache) PipelineOption {
	return func(p *Pipeline) {
		p.cache = c
	}
}

// WithCacheTTL 设置缓存有效期
func WithCacheTTL(ttl time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if ttl > 0 {
			p.cacheTTL = ttl
		}
	}
}

// WithStorage 设置原始文件存储
func WithStorage(s storage.Storage) PipelineOption {
	return func(p *Pipeline) {
		p.storage = s
	}
}

// WithDocumentRepository 设置文档元数据存储
func WithDocumentRepository(repo repository.DocumentRepository) PipelineOption {
	return func(p *Pipeline) {
		p.repo = repo
	}
}

// WithSearchLimit 设置检索结果数量
func WithSearchLimit(limit int) PipelineOption {
	return func(p *Pipeline) {
		if limit > 0 {
			p.searchLimit = limit
		}
	}
}

// WithMinScore 设置最低相似度分数
func WithMinScore(score float32) PipelineOption {
	return func(p *Pipeline) {
		p.minScore = score
	}
}

// WithBatchSize 设置嵌入批处理大小
func WithBatchSize(size int) PipelineOption {
	return func(p *Pipeline) {
		if size > 0 {
			p.batchSize = size
		}
	}
}

// WithMaxWorkers 设置嵌入并发数
func WithMaxWorkers(workers int) PipelineOption {
	return func(p *Pipeline) {
		if workers > 0 {
			p.maxWorkers = workers
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// LoadDocuments 加载文档内容
// urls中的每个地址抓取为一份文档，uploads中的每个文件按扩展名选择加载器解析
func (p *Pipeline) LoadDocuments(ctx context.Context, urls []string, uploads []Upload) ([]document.Document, error) {
	var docs []document.Document

	for _, rawURL := range urls {
		loaded, err := p.loadURL(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		docs = append(docs, loaded...)
	}

	for _, upload := range uploads {
		loaded, err := p.loadUpload(upload)
		if err != nil {
			return nil, err
		}
		docs = append(docs, loaded...)
	}

	p.logger.WithFields(logrus.Fields{
		"urls":      len(urls),
		"uploads":   len(uploads),
		"documents": len(docs),
	}).Info("Documents loaded")

	return docs, nil
}

// loadURL 抓取并解析网页内容
func (p *Pipeline) loadURL(ctx context.Context, rawURL string) ([]document.Document, error) {
	recordID := p.trackDocument(rawURL, "url", "", 0)

	docs, err := p.urlLoader.Load(ctx, rawURL)
	if err != nil {
		p.markFailed(recordID, err)
		// 抓到的页面没有正文时按零文档处理，不中断整次加载
		if errors.Is(err, document.ErrEmptyContent) {
			p.logger.WithField("url", rawURL).Warn("URL yielded no text content")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}

	return docs, nil
}

// loadUpload 将上传内容写入临时文件后交给对应的加载器解析
// 临时文件在解析结束后删除，加载器不支持的格式不会落盘
func (p *Pipeline) loadUpload(upload Upload) ([]document.Document, error) {
	if upload.Filename == "" {
		return nil, errors.New("upload filename cannot be empty")
	}

	loader, err := document.LoaderFor(upload.Filename)
	if err != nil {
		return nil, err
	}

	ext := filepath.Ext(upload.Filename)
	tmp, err := os.CreateTemp("", "docurag-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, upload.Reader)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to buffer upload %s: %w", upload.Filename, err)
	}

	recordID := p.trackDocument(upload.Filename, "file", ext, size)

	docs, err := loader.Load(tmpPath)
	if err != nil {
		p.markFailed(recordID, err)
		// 空文件不算加载失败，跳过该输入继续处理其余输入
		if errors.Is(err, document.ErrEmptyContent) {
			p.logger.WithField("filename", upload.Filename).Warn("Upload yielded no text content")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load %s: %w", upload.Filename, err)
	}

	// 加载器记录的是临时文件路径，用原始文件名覆盖来源
	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = make(map[string]string)
		}
		docs[i].Metadata[document.MetaSource] = upload.Filename
	}

	p.saveOriginal(tmpPath, upload.Filename)

	return docs, nil
}

// saveOriginal 将上传的原始文件保存一份副本，失败不影响主流程
func (p *Pipeline) saveOriginal(tmpPath, filename string) {
	if p.storage == nil {
		return
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		p.logger.WithError(err).Warn("Failed to reopen upload for archiving")
		return
	}
	defer f.Close()

	if _, err := p.storage.Save(f, filename); err != nil {
		p.logger.WithError(err).WithField("filename", filename).Warn("Failed to archive uploaded file")
	}
}

// SplitDocuments 将文档切分为分块，保留各文档内的顺序
func (p *Pipeline) SplitDocuments(docs []document.Document) []document.Document {
	for _, source := range distinctSources(docs) {
		p.markStageBySource(source, models.StageSplitting)
	}

	chunks := p.splitter.SplitDocuments(docs)

	p.logger.WithFields(logrus.Fields{
		"documents": len(docs),
		"chunks":    len(chunks),
	}).Info("Documents split into chunks")

	return chunks
}

// BuildIndex 对分块做向量化并全量重建索引
// 新索引持久化到配置路径后替换当前加载的索引
func (p *Pipeline) BuildIndex(ctx context.Context, chunks []document.Document) error {
	if len(chunks) == 0 {
		return errors.New("no content to index")
	}

	sources := distinctSources(chunks)
	for _, source := range sources {
		p.markStageBySource(source, models.StageEmbedding)
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}

	processor := embedding.NewBatchProcessor(p.embedder, p.batchSize, p.maxWorkers)
	vectors, err := processor.Process(ctx, texts)
	if err != nil {
		p.failSources(sources, err)
		return fmt.Errorf("failed to embed chunks: %w", err)
	}

	cfg := p.vectorConfig
	if cfg.Dimension == 0 && len(vectors) > 0 {
		cfg.Dimension = len(vectors[0])
	}

	index, err := vectordb.NewRepository(cfg)
	if err != nil {
		p.failSources(sources, err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	entries := make([]vectordb.Chunk, len(chunks))
	counts := make(map[string]int)
	for i := range chunks {
		source := chunks[i].Source()
		entries[i] = vectordb.Chunk{
			Source:   source,
			Position: counts[source],
			Text:     chunks[i].Content,
			Vector:   vectors[i],
			Metadata: chunks[i].CloneMetadata(),
		}
		counts[source]++
	}

	if err := index.AddBatch(entries); err != nil {
		index.Close()
		p.failSources(sources, err)
		return fmt.Errorf("failed to store vectors: %w", err)
	}

	if err := index.Save(); err != nil {
		index.Close()
		p.failSources(sources, err)
		return fmt.Errorf("failed to persist index: %w", err)
	}

	p.mu.Lock()
	if p.index != nil {
		p.index.Close()
	}
	p.index = index
	p.mu.Unlock()

	for source, n := range counts {
		p.completeSource(source, n)
	}

	p.logger.WithFields(logrus.Fields{
		"chunks":  len(entries),
		"sources": len(counts),
		"path":    cfg.Path,
	}).Info("Index built successfully")

	return nil
}

// Process 执行完整的入库流程：加载、分块、向量化并重建索引
// 返回入库的分块数量
func (p *Pipeline) Process(ctx context.Context, urls []string, uploads []Upload) (int, error) {
	docs, err := p.LoadDocuments(ctx, urls, uploads)
	if err != nil {
		return 0, err
	}

	chunks := p.SplitDocuments(docs)

	if err := p.BuildIndex(ctx, chunks); err != nil {
		return 0, err
	}

	return len(chunks), nil
}

// LoadIndex 从配置路径加载已持久化的索引
// 索引不存在时返回包装后的vectordb.ErrIndexNotFound
func (p *Pipeline) LoadIndex() error {
	index, err := vectordb.OpenRepository(p.vectorConfig)
	if err != nil {
		return fmt.Errorf("failed to load index from %s: %w", p.vectorConfig.Path, err)
	}

	p.mu.Lock()
	if p.index != nil {
		p.index.Close()
	}
	p.index = index
	p.mu.Unlock()

	count, _ := index.Count()
	p.logger.WithFields(logrus.Fields{
		"path":   p.vectorConfig.Path,
		"chunks": count,
	}).Info("Index loaded")

	return nil
}

// IndexExists 检查配置路径下是否有已持久化的索引
func (p *Pipeline) IndexExists() (bool, error) {
	return vectordb.IndexExists(p.vectorConfig)
}

// IndexLoaded 判断当前是否有可查询的索引
func (p *Pipeline) IndexLoaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.index != nil
}

// Query 基于已加载的索引回答问题
func (p *Pipeline) Query(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("question cannot be empty")
	}

	p.mu.RLock()
	index := p.index
	p.mu.RUnlock()
	if index == nil {
		return nil, ErrIndexNotLoaded
	}

	var cacheKey string
	if p.cache != nil {
		cacheKey = cache.AnswerKey(question)
		if cached, found, err := p.cache.Get(cacheKey); err == nil && found {
			var answer Answer
			if err := json.Unmarshal([]byte(cached), &answer); err == nil {
				return &answer, nil
			}
		}
	}

	vector, err := p.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	filter := vectordb.SearchFilter{
		MinScore:   p.minScore,
		MaxResults: p.searchLimit,
	}
	results, err := index.Search(vector, filter)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	references := make([]llm.SourceReference, len(results))
	for i, result := range results {
		references[i] = llm.SourceReference{
			ID:      result.Chunk.ID,
			Source:  result.Chunk.Source,
			Content: result.Chunk.Text,
		}
	}

	response, err := p.rag.Answer(ctx, question, references)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	answer := &Answer{
		Text:    response.Answer,
		Sources: joinSources(results),
	}

	p.cacheAnswer(cacheKey, answer)

	return answer, nil
}

// Close 释放当前加载的索引
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.index == nil {
		return nil
	}

	err := p.index.Close()
	p.index = nil
	return err
}

// cacheAnswer 缓存问答结果，失败只记录日志
func (p *Pipeline) cacheAnswer(key string, answer *Answer) {
	if p.cache == nil || key == "" {
		return
	}

	data, err := json.Marshal(answer)
	if err != nil {
		return
	}

	if err := p.cache.Set(key, string(data), p.cacheTTL); err != nil {
		p.logger.WithError(err).Warn("Failed to cache answer")
	}
}

// trackDocument 为入库来源创建或复用元数据记录，返回记录ID
func (p *Pipeline) trackDocument(source, sourceType, fileType string, size int64) string {
	if p.repo == nil {
		return ""
	}

	if existing, err := p.repo.GetBySource(source); err == nil {
		if err := p.repo.UpdateStage(existing.ID, models.StageLoading); err != nil {
			p.logger.WithError(err).Warn("Failed to update document stage")
		}
		return existing.ID
	}

	doc := &models.Document{
		ID:         uuid.New().String(),
		Source:     source,
		SourceType: sourceType,
		FileType:   fileType,
		FileSize:   size,
		Status:     models.DocStatusUploaded,
	}
	if err := p.repo.Create(doc); err != nil {
		p.logger.WithError(err).WithField("source", source).Warn("Failed to record document")
		return ""
	}
	if err := p.repo.UpdateStage(doc.ID, models.StageLoading); err != nil {
		p.logger.WithError(err).Warn("Failed to update document stage")
	}

	return doc.ID
}

// markStageBySource 按来源更新文档处理阶段
func (p *Pipeline) markStageBySource(source string, stage models.ProcessStage) {
	if p.repo == nil {
		return
	}

	doc, err := p.repo.GetBySource(source)
	if err != nil {
		return
	}

	if err := p.repo.UpdateStage(doc.ID, stage); err != nil {
		p.logger.WithError(err).Warn("Failed to update document stage")
	}
}

// markFailed 将文档记录标记为失败
func (p *Pipeline) markFailed(id string, cause error) {
	if p.repo == nil || id == "" {
		return
	}

	if err := p.repo.UpdateStatus(id, models.DocStatusFailed, cause.Error()); err != nil {
		p.logger.WithError(err).Warn("Failed to mark document as failed")
	}
}

// failSources 将一组来源对应的文档记录标记为失败
func (p *Pipeline) failSources(sources []string, cause error) {
	if p.repo == nil {
		return
	}

	for _, source := range sources {
		doc, err := p.repo.GetBySource(source)
		if err != nil {
			continue
		}
		p.markFailed(doc.ID, cause)
	}
}

// completeSource 将来源对应的文档记录标记为完成
func (p *Pipeline) completeSource(source string, chunkCount int) {
	if p.repo == nil {
		return
	}

	doc, err := p.repo.GetBySource(source)
	if err != nil {
		return
	}

	if err := p.repo.MarkCompleted(doc.ID, chunkCount); err != nil {
		p.logger.WithError(err).Warn("Failed to mark document as completed")
	}
}

// distinctSources 按首次出现顺序返回去重后的来源列表
func distinctSources(docs []document.Document) []string {
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

// joinSources 提取检索结果的去重来源并用换行符拼接
func joinSources(results []vectordb.SearchResult) string {
	seen := make(map[string]bool)
	var sources []string
	for _, result := range results {
		source := result.Chunk.Source
		if source == "" || seen[source] {
			continue
		}
		seen[source] = true
		sources = append(sources, source)
	}
	return strings.Join(sources, "\n")
}
