package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tekurkaa/DocuRAG/internal/cache"
	"github.com/tekurkaa/DocuRAG/internal/llm"
	"github.com/tekurkaa/DocuRAG/internal/models"
	"github.com/tekurkaa/DocuRAG/internal/repository"
	"github.com/tekurkaa/DocuRAG/internal/vectordb"
)

// hashEmbedder 基于词哈希的确定性嵌入器
// 共享词汇越多的文本向量越接近，便于验证检索排序
type hashEmbedder struct {
	dim   int
	calls atomic.Int32
}

func newHashEmbedder() *hashEmbedder {
	return &hashEmbedder{dim: 16}
}

func (e *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	vec := make([]float32, e.dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,?!\"'")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%uint32(e.dim)]++
	}
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(float64(norm)))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

func (e *hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (e *hashEmbedder) Name() string { return "hash-embedder" }

// echoLLM 从提示词的上下文中提取回答的测试用大模型
type echoLLM struct {
	answer     string
	lastPrompt string
	calls      int
}

func (c *echoLLM) Generate(_ context.Context, prompt string, _ ...llm.GenerateOption) (*llm.Response, error) {
	c.calls++
	c.lastPrompt = prompt
	return &llm.Response{Text: c.answer, ModelName: c.Name()}, nil
}

func (c *echoLLM) Chat(ctx context.Context, messages []llm.Message, _ ...llm.ChatOption) (*llm.Response, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("messages cannot be empty")
	}
	return c.Generate(ctx, messages[len(messages)-1].Content)
}

func (c *echoLLM) Name() string { return "echo-llm" }

func newTestPipeline(t *testing.T, opts ...PipelineOption) (*Pipeline, *hashEmbedder, *echoLLM) {
	t.Helper()

	embedder := newHashEmbedder()
	llmClient := &echoLLM{answer: "The capital of France is Paris."}

	cfg := vectordb.Config{
		Type:         "flat",
		Path:         filepath.Join(t.TempDir(), "index"),
		DistanceType: vectordb.Cosine,
	}

	pipeline, err := NewPipeline(embedder, llmClient, cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { pipeline.Close() })

	return pipeline, embedder, llmClient
}

func testUploads() []Upload {
	return []Upload{
		{
			Filename: "france.txt",
			Reader:   strings.NewReader("The capital of France is Paris. Paris is known for the Eiffel Tower."),
		},
		{
			Filename: "japan.txt",
			Reader:   strings.NewReader("The capital of Japan is Tokyo. Tokyo is the largest city in Japan."),
		},
	}
}

func TestPipelineProcessAndQuery(t *testing.T) {
	pipeline, _, llmClient := newTestPipeline(t)
	ctx := context.Background()

	chunks, err := pipeline.Process(ctx, nil, testUploads())
	require.NoError(t, err)
	assert.Equal(t, 2, chunks)

	answer, err := pipeline.Query(ctx, "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "The capital of France is Paris.", answer.Text)
	assert.Contains(t, answer.Sources, "france.txt")

	// 提示词应包含检索到的上下文
	assert.Contains(t, llmClient.lastPrompt, "capital of France")
	assert.Contains(t, llmClient.lastPrompt, "What is the capital of France?")
}

func TestPipelineQueryRanking(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t, WithSearchLimit(1))
	ctx := context.Background()

	_, err := pipeline.Process(ctx, nil, testUploads())
	require.NoError(t, err)

	answer, err := pipeline.Query(ctx, "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "france.txt", answer.Sources)

	answer, err = pipeline.Query(ctx, "What is the capital of Japan?")
	require.NoError(t, err)
	assert.Equal(t, "japan.txt", answer.Sources)
}

func TestPipelineQuerySourcesDistinct(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)
	ctx := context.Background()

	// 长文档切成多块，同一来源在结果中只出现一次
	paragraphs := make([]string, 40)
	for i := range paragraphs {
		paragraphs[i] = fmt.Sprintf("The capital of France is Paris, chapter %d of the travel guide.", i)
	}
	uploads := []Upload{{
		Filename: "guide.txt",
		Reader:   strings.NewReader(strings.Join(paragraphs, "\n\n")),
	}}

	chunks, err := pipeline.Process(ctx, nil, uploads)
	require.NoError(t, err)
	assert.Greater(t, chunks, 1)

	answer, err := pipeline.Query(ctx, "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "guide.txt", answer.Sources)
	assert.NotContains(t, answer.Sources, "\n")
}

func TestPipelineQueryBeforeIndex(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)

	_, err := pipeline.Query(context.Background(), "What is the capital of France?")
	assert.ErrorIs(t, err, ErrIndexNotLoaded)
}

func TestPipelineQueryEmptyQuestion(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)
	ctx := context.Background()

	_, err := pipeline.Process(ctx, nil, testUploads())
	require.NoError(t, err)

	_, err = pipeline.Query(ctx, "   ")
	assert.Error(t, err)
}

func TestPipelineQueryNoRelevantContext(t *testing.T) {
	pipeline, _, llmClient := newTestPipeline(t, WithMinScore(0.99))
	ctx := context.Background()

	_, err := pipeline.Process(ctx, nil, testUploads())
	require.NoError(t, err)

	answer, err := pipeline.Query(ctx, "How do I bake sourdough bread at home?")
	require.NoError(t, err)
	assert.Equal(t, llm.NoContextAnswer, answer.Text)
	assert.Empty(t, answer.Sources)
	assert.Equal(t, 0, llmClient.calls)
}

func TestPipelineLoadIndex(t *testing.T) {
	cfg := vectordb.Config{
		Type:         "flat",
		Path:         filepath.Join(t.TempDir(), "index"),
		DistanceType: vectordb.Cosine,
	}

	builder, err := NewPipeline(newHashEmbedder(), &echoLLM{answer: "Paris"}, cfg)
	require.NoError(t, err)
	_, err = builder.Process(context.Background(), nil, testUploads())
	require.NoError(t, err)
	require.NoError(t, builder.Close())

	// 新流水线从磁盘加载同一个索引
	reader, err := NewPipeline(newHashEmbedder(), &echoLLM{answer: "Paris"}, cfg)
	require.NoError(t, err)
	defer reader.Close()

	exists, err := reader.IndexExists()
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, reader.LoadIndex())
	assert.True(t, reader.IndexLoaded())

	answer, err := reader.Query(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris", answer.Text)
	assert.Contains(t, answer.Sources, "france.txt")
}

func TestPipelineLoadIndexNotFound(t *testing.T) {
	cfg := vectordb.Config{
		Type: "flat",
		Path: filepath.Join(t.TempDir(), "missing"),
	}

	pipeline, err := NewPipeline(newHashEmbedder(), &echoLLM{}, cfg)
	require.NoError(t, err)

	exists, err := pipeline.IndexExists()
	require.NoError(t, err)
	assert.False(t, exists)

	err = pipeline.LoadIndex()
	assert.ErrorIs(t, err, vectordb.ErrIndexNotFound)
	assert.False(t, pipeline.IndexLoaded())
}

func TestPipelineRebuildReplacesIndex(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)
	ctx := context.Background()

	_, err := pipeline.Process(ctx, nil, testUploads())
	require.NoError(t, err)

	// 重建后旧内容不再出现在来源中
	uploads := []Upload{{
		Filename: "germany.txt",
		Reader:   strings.NewReader("The capital of Germany is Berlin."),
	}}
	_, err = pipeline.Process(ctx, nil, uploads)
	require.NoError(t, err)

	answer, err := pipeline.Query(ctx, "What is the capital of Germany?")
	require.NoError(t, err)
	assert.Equal(t, "germany.txt", answer.Sources)
	assert.NotContains(t, answer.Sources, "france.txt")
}

func TestPipelineLoadUnsupportedFormat(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)

	uploads := []Upload{{
		Filename: "image.png",
		Reader:   strings.NewReader("not really an image"),
	}}

	_, err := pipeline.LoadDocuments(context.Background(), nil, uploads)
	assert.Error(t, err)
}

func TestPipelineLoadEmptyUpload(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)
	ctx := context.Background()

	t.Run("OnlyEmptyUpload", func(t *testing.T) {
		uploads := []Upload{{
			Filename: "empty.txt",
			Reader:   strings.NewReader("   \n\n  "),
		}}

		docs, err := pipeline.LoadDocuments(ctx, nil, uploads)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("EmptyUploadKeepsOthers", func(t *testing.T) {
		uploads := []Upload{
			{Filename: "blank.txt", Reader: strings.NewReader("\n\n")},
			{Filename: "france.txt", Reader: strings.NewReader("The capital of France is Paris.")},
		}

		docs, err := pipeline.LoadDocuments(ctx, nil, uploads)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "france.txt", docs[0].Source())
	})
}

func TestPipelineTempFileCleanup(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)

	before := countTempFiles(t)
	_, err := pipeline.LoadDocuments(context.Background(), nil, testUploads())
	require.NoError(t, err)
	assert.Equal(t, before, countTempFiles(t))
}

func countTempFiles(t *testing.T) int {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(os.TempDir(), "docurag-*"))
	require.NoError(t, err)
	return len(matches)
}

func TestPipelineSourceMetadataOverwrite(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)

	docs, err := pipeline.LoadDocuments(context.Background(), nil, testUploads())
	require.NoError(t, err)
	require.Len(t, docs, 2)

	// 来源应为原始文件名而不是临时文件路径
	assert.Equal(t, "france.txt", docs[0].Source())
	assert.Equal(t, "japan.txt", docs[1].Source())
}

func TestPipelineBuildIndexEmpty(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)

	err := pipeline.BuildIndex(context.Background(), nil)
	assert.Error(t, err)
}

func TestPipelineQueryCache(t *testing.T) {
	memCache, err := cache.NewCache(cache.Config{Type: "memory", DefaultTTL: time.Minute})
	require.NoError(t, err)

	pipeline, embedder, llmClient := newTestPipeline(t, WithCache(memCache))
	ctx := context.Background()

	_, err = pipeline.Process(ctx, nil, testUploads())
	require.NoError(t, err)

	first, err := pipeline.Query(ctx, "What is the capital of France?")
	require.NoError(t, err)

	embedCalls := embedder.calls.Load()
	llmCalls := llmClient.calls

	// 相同问题（大小写不敏感）命中缓存，不再调用模型
	second, err := pipeline.Query(ctx, "WHAT IS THE CAPITAL OF FRANCE?")
	require.NoError(t, err)
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, first.Sources, second.Sources)
	assert.Equal(t, embedCalls, embedder.calls.Load())
	assert.Equal(t, llmCalls, llmClient.calls)
}

func TestPipelineDocumentTracking(t *testing.T) {
	dsn := fmt.Sprintf("file:memdb_pipeline_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Document{}))

	repo := repository.NewDocumentRepositoryWithDB(db)
	pipeline, _, _ := newTestPipeline(t, WithDocumentRepository(repo))
	ctx := context.Background()

	_, err = pipeline.Process(ctx, nil, testUploads())
	require.NoError(t, err)

	doc, err := repo.GetBySource("france.txt")
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusCompleted, doc.Status)
	assert.Equal(t, models.StageCompleted, doc.CurrentStage)
	assert.Equal(t, 1, doc.ChunkCount)
	require.NotNil(t, doc.ProcessedAt)

	docs, total, err := repo.List(0, 10, "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, docs, 2)
}
