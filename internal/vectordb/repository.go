package vectordb

import (
	"fmt"
	"math"
	"sort"
)

// ComputeDistance 计算两个向量间的距离
func ComputeDistance(v1, v2 []float32, distType DistanceType) (float32, error) {
	if len(v1) != len(v2) {
		return 0, fmt.Errorf("vector dimensions do not match: %d vs %d", len(v1), len(v2))
	}

	switch distType {
	case Cosine:
		return cosineDistance(v1, v2), nil
	case DotProduct:
		return dotProduct(v1, v2), nil
	case Euclidean:
		return euclideanDistance(v1, v2), nil
	default:
		return 0, fmt.Errorf("unsupported distance type: %s", distType)
	}
}

// cosineDistance 余弦距离 = 1 - 余弦相似度
func cosineDistance(v1, v2 []float32) float32 {
	norm1 := vectorNorm(v1)
	norm2 := vectorNorm(v2)
	if norm1 == 0 || norm2 == 0 {
		return 1.0
	}

	similarity := dotProduct(v1, v2) / (norm1 * norm2)
	// 处理浮点精度问题
	if similarity > 1.0 {
		similarity = 1.0
	}
	return 1.0 - similarity
}

// dotProduct 计算两个向量的点积
func dotProduct(v1, v2 []float32) float32 {
	var dot float32
	for i := 0; i < len(v1); i++ {
		dot += v1[i] * v2[i]
	}
	return dot
}

// euclideanDistance 计算欧几里得距离
func euclideanDistance(v1, v2 []float32) float32 {
	var sum float32
	for i := 0; i < len(v1); i++ {
		d := v1[i] - v2[i]
		sum += d * d
	}
	return float32(math.Sqrt(float64(sum)))
}

// vectorNorm 计算向量的L2范数
func vectorNorm(v []float32) float32 {
	var sum float32
	for _, val := range v {
		sum += val * val
	}
	return float32(math.Sqrt(float64(sum)))
}

// normalizeVector 归一化向量（使其长度为1）
func normalizeVector(v []float32) []float32 {
	norm := vectorNorm(v)
	if norm == 0 {
		return v
	}

	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}
	return result
}

// matchesFilter 检查分块是否满足来源与元数据过滤条件
func matchesFilter(chunk Chunk, filter SearchFilter) bool {
	if len(filter.Sources) > 0 {
		found := false
		for _, source := range filter.Sources {
			if chunk.Source == source {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	for key, want := range filter.Metadata {
		if got, ok := chunk.Metadata[key]; !ok || got != want {
			return false
		}
	}
	return true
}

// SortSearchResults 对搜索结果按相似度评分降序排序
func SortSearchResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// DistanceToScore 将距离转换为[0,1]区间的评分
// 不同距离度量使用不同的转换方法
func DistanceToScore(distance float32, distType DistanceType) float32 {
	switch distType {
	case Cosine:
		return 1 - distance
	case DotProduct:
		// 归一化向量的点积范围是[-1, 1]
		return (distance + 1) / 2
	case Euclidean:
		// 高斯衰减，距离越小分数越高
		return float32(math.Exp(-float64(distance)))
	default:
		return 0
	}
}

// ValidateVector 验证向量维度和有效性
func ValidateVector(vector []float32, expectedDim int) error {
	if len(vector) == 0 {
		return ErrEmptyVector
	}
	if expectedDim > 0 && len(vector) != expectedDim {
		return fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, expectedDim, len(vector))
	}
	return nil
}
