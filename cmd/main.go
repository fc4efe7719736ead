package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tekurkaa/DocuRAG/api"
	"github.com/tekurkaa/DocuRAG/api/handler"
	"github.com/tekurkaa/DocuRAG/api/middleware"
	appconfig "github.com/tekurkaa/DocuRAG/config"
	"github.com/tekurkaa/DocuRAG/internal/cache"
	"github.com/tekurkaa/DocuRAG/internal/database"
	"github.com/tekurkaa/DocuRAG/internal/document"
	"github.com/tekurkaa/DocuRAG/internal/embedding"
	"github.com/tekurkaa/DocuRAG/internal/llm"
	"github.com/tekurkaa/DocuRAG/internal/repository"
	"github.com/tekurkaa/DocuRAG/internal/services"
	"github.com/tekurkaa/DocuRAG/internal/vectordb"
	"github.com/tekurkaa/DocuRAG/pkg/storage"
)

func main() {
	configFile := flag.String("config", "", "Path to config file")
	mode := flag.String("mode", "release", "Run mode (debug/release)")
	port := flag.Int("port", 0, "Server port (overrides config)")
	flag.Parse()

	// 凭据在进程启动时读取一次
	if err := godotenv.Load(); err == nil {
		fmt.Println("Loaded environment from .env")
	}

	cfg, err := appconfig.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	gin.SetMode(*mode)

	logger := setupLogger(cfg.Log)
	logger.Info("Starting DocuRAG...")

	if err := database.Setup(&database.Config{
		Type: cfg.Database.Type,
		DSN:  cfg.Database.DSN,
	}, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	fileStorage, err := setupStorage(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	embeddingClient, err := setupEmbedding(cfg.Embed)
	if err != nil {
		logger.Fatalf("Failed to initialize embedding client: %v", err)
	}

	llmClient, err := setupLLM(cfg.LLM)
	if err != nil {
		logger.Fatalf("Failed to initialize LLM client: %v", err)
	}

	splitter, err := document.NewTextSplitter(document.SplitterConfig{
		ChunkSize:    cfg.Document.ChunkSize,
		ChunkOverlap: cfg.Document.ChunkOverlap,
		Separators:   document.DefaultSeparators,
	})
	if err != nil {
		logger.Fatalf("Failed to create text splitter: %v", err)
	}

	ragService := llm.NewRAG(llmClient,
		llm.WithRAGMaxTokens(cfg.LLM.MaxTokens),
		llm.WithRAGTemperature(cfg.LLM.Temperature),
	)

	repo := repository.NewDocumentRepository()

	pipelineOptions := []services.PipelineOption{
		services.WithSplitter(splitter),
		services.WithRAG(ragService),
		services.WithStorage(fileStorage),
		services.WithDocumentRepository(repo),
		services.WithSearchLimit(cfg.Search.Limit),
		services.WithMinScore(cfg.Search.MinScore),
		services.WithBatchSize(cfg.Embed.BatchSize),
		services.WithLogger(logger),
	}

	if cfg.Cache.Enable {
		cacheService, err := setupCache(cfg.Cache)
		if err != nil {
			logger.Fatalf("Failed to initialize cache: %v", err)
		}
		pipelineOptions = append(pipelineOptions,
			services.WithCache(cacheService),
			services.WithCacheTTL(time.Duration(cfg.Cache.TTL)*time.Second),
		)
	}

	pipeline, err := services.NewPipeline(
		embeddingClient,
		llmClient,
		vectordb.Config{
			Type:         cfg.VectorDB.Type,
			Path:         cfg.VectorDB.Path,
			Dimension:    cfg.VectorDB.Dim,
			DistanceType: distanceType(cfg.VectorDB.Distance),
		},
		pipelineOptions...,
	)
	if err != nil {
		logger.Fatalf("Failed to create pipeline: %v", err)
	}
	defer pipeline.Close()

	// 已有持久化索引时启动即加载，问答无需先入库
	if exists, err := pipeline.IndexExists(); err == nil && exists {
		if err := pipeline.LoadIndex(); err != nil {
			logger.WithError(err).Warn("Failed to load persisted index")
		}
	}

	router := api.SetupRouter(
		handler.NewProcessHandler(pipeline),
		handler.NewQAHandler(pipeline),
		handler.NewDocumentHandler(repo, fileStorage),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // 入库请求同步执行，给足处理时间
	}

	go func() {
		logger.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// setupLogger 设置日志系统
// 配置了日志文件时通过lumberjack做滚动切割
func setupLogger(cfg appconfig.LogConfig) *logrus.Logger {
	logger := middleware.GetLogger()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.File != "" {
		logger.SetOutput(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}

	return logger
}

// setupStorage 设置原始文件存储
func setupStorage(cfg appconfig.StorageConfig) (storage.Storage, error) {
	return storage.NewStorage(storage.Config{
		Type: cfg.Type,
		Local: storage.LocalConfig{
			Path: cfg.Path,
		},
		Minio: storage.MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
		},
	})
}

// setupEmbedding 设置嵌入模型客户端
func setupEmbedding(cfg appconfig.EmbedConfig) (embedding.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}

	return embedding.NewClient(cfg.Provider,
		embedding.WithAPIKey(cfg.APIKey),
		embedding.WithBaseURL(cfg.Endpoint),
		embedding.WithModel(cfg.Model),
		embedding.WithDimensions(cfg.Dimensions),
		embedding.WithBatchSize(cfg.BatchSize),
	)
}

// setupLLM 设置大语言模型客户端
func setupLLM(cfg appconfig.LLMConfig) (llm.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("LLM API key is required")
	}

	return llm.NewClient(cfg.Provider,
		llm.WithAPIKey(cfg.APIKey),
		llm.WithBaseURL(cfg.Endpoint),
		llm.WithModel(cfg.Model),
		llm.WithMaxTokens(cfg.MaxTokens),
		llm.WithTemperature(cfg.Temperature),
	)
}

// setupCache 设置问答缓存
func setupCache(cfg appconfig.CacheConfig) (cache.Cache, error) {
	cacheConfig := cache.Config{
		Type:            cfg.Type,
		DefaultTTL:      time.Duration(cfg.TTL) * time.Second,
		CleanupInterval: 10 * time.Minute,
	}

	if cfg.Type == "redis" {
		cacheConfig.RedisAddr = cfg.Address
		cacheConfig.RedisPassword = cfg.Password
		cacheConfig.RedisDB = cfg.DB
	}

	return cache.NewCache(cacheConfig)
}

// distanceType 将配置中的距离度量映射为向量索引的距离类型
func distanceType(name string) vectordb.DistanceType {
	switch name {
	case "l2", "euclidean":
		return vectordb.Euclidean
	case "dot":
		return vectordb.DotProduct
	default:
		return vectordb.Cosine
	}
}
