package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/gammazero/workerpool"
)

// BatchProcessor 批量嵌入处理器
// 将大量文本切分为批次并通过工作池并行嵌入，结果顺序与输入一致
type BatchProcessor struct {
	client     Client // 嵌入客户端
	batchSize  int    // 每批处理的文本数量
	maxWorkers int    // 最大并行工作协程数
}

// NewBatchProcessor 创建新的批处理器
func NewBatchProcessor(client Client, batchSize int, maxWorkers int) *BatchProcessor {
	if batchSize <= 0 {
		batchSize = 16
	}
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &BatchProcessor{
		client:     client,
		batchSize:  batchSize,
		maxWorkers: maxWorkers,
	}
}

// Process 批量嵌入文本
// 任一批次失败则整体失败
func (p *BatchProcessor) Process(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	batches := splitIntoBatches(texts, p.batchSize)

	wp := workerpool.New(p.maxWorkers)
	var mu sync.Mutex
	var firstErr error
	results := make([][][]float32, len(batches))

	for i, batch := range batches {
		i, batch := i, batch
		wp.Submit(func() {
			select {
			case <-ctx.Done():
				mu.Lock()
				if firstErr == nil {
					firstErr = ctx.Err()
				}
				mu.Unlock()
				return
			default:
			}

			vectors, err := p.client.EmbedBatch(ctx, batch)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("failed to embed batch %d: %w", i, err)
				}
				return
			}
			results[i] = vectors
		})
	}
	wp.StopWait()

	if firstErr != nil {
		return nil, firstErr
	}

	all := make([][]float32, 0, len(texts))
	for _, vectors := range results {
		all = append(all, vectors...)
	}
	if len(all) != len(texts) {
		return nil, NewEmbeddingError(ErrCodeServerError,
			fmt.Sprintf("expected %d vectors, got %d", len(texts), len(all)))
	}
	return all, nil
}

// splitIntoBatches 将文本列表切分为多个批次
func splitIntoBatches(texts []string, batchSize int) [][]string {
	if batchSize <= 0 {
		batchSize = 1
	}

	batches := make([][]string, 0, (len(texts)+batchSize-1)/batchSize)
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, texts[i:end])
	}
	return batches
}
