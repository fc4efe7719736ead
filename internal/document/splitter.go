package document

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultSeparators 递归分割时依次尝试的分隔符，从段落到句子再到短语
var DefaultSeparators = []string{"\n\n", "\n", ". ", "。", ", ", "，", " "}

// SplitterConfig 文本分段器配置
type SplitterConfig struct {
	ChunkSize    int      // 分块大小上限（按字符数）
	ChunkOverlap int      // 相邻分块重叠的字符数
	MaxChunks    int      // 最大分块数量（0表示不限制）
	Separators   []string // 分隔符优先级列表，空则使用默认值
}

// DefaultSplitterConfig 返回默认分段器配置
func DefaultSplitterConfig() SplitterConfig {
	return SplitterConfig{
		ChunkSize:    1000,
		ChunkOverlap: 100,
		MaxChunks:    0,
		Separators:   DefaultSeparators,
	}
}

// TextSplitter 递归字符文本分段器
// 优先在段落边界分割，段落过长时逐级降到换行、句子、短语，
// 最终兜底按固定步长硬切
type TextSplitter struct {
	config SplitterConfig
}

// NewTextSplitter 创建新的文本分段器
func NewTextSplitter(config SplitterConfig) (*TextSplitter, error) {
	if config.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", config.ChunkSize, config.ChunkOverlap)
	}
	if len(config.Separators) == 0 {
		config.Separators = DefaultSeparators
	}
	return &TextSplitter{config: config}, nil
}

// Split 将文本分割为多个分块
// 不超过ChunkSize的文本原样作为单个分块返回
func (s *TextSplitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= s.config.ChunkSize {
		return []string{text}
	}

	raw := s.split(text, s.config.Separators)

	var chunks []string
	for _, c := range raw {
		c = strings.TrimSpace(c)
		if c != "" {
			chunks = append(chunks, c)
		}
	}
	if s.config.MaxChunks > 0 && len(chunks) > s.config.MaxChunks {
		chunks = chunks[:s.config.MaxChunks]
	}
	return chunks
}

// SplitDocuments 将每个文档分割为分块文档，保持输入顺序
// 每个分块继承父文档的全部元数据
func (s *TextSplitter) SplitDocuments(docs []Document) []Document {
	var result []Document
	for _, doc := range docs {
		for _, chunk := range s.Split(doc.Content) {
			result = append(result, Document{
				Content:  chunk,
				Metadata: doc.CloneMetadata(),
			})
		}
	}
	return result
}

// split 按分隔符优先级递归分割超长文本
func (s *TextSplitter) split(text string, separators []string) []string {
	if utf8.RuneCountInString(text) <= s.config.ChunkSize {
		return []string{text}
	}
	if len(separators) == 0 {
		return s.hardSplit(text)
	}

	sep := separators[0]
	rest := separators[1:]
	if !strings.Contains(text, sep) {
		return s.split(text, rest)
	}

	return s.merge(splitKeepSeparator(text, sep), rest)
}

// merge 将分隔后的片段贪心合并为不超过ChunkSize的分块，
// 相邻分块之间携带ChunkOverlap的尾部重叠
func (s *TextSplitter) merge(pieces []string, rest []string) []string {
	var chunks []string
	var current strings.Builder
	seed := ""

	flush := func(withOverlap bool) {
		chunk := current.String()
		if strings.TrimSpace(chunk) != "" && chunk != seed {
			chunks = append(chunks, chunk)
		}
		current.Reset()
		seed = ""
		if withOverlap && chunk != "" {
			seed = overlapTail(chunk, s.config.ChunkOverlap)
			current.WriteString(seed)
		}
	}

	for _, piece := range pieces {
		pieceLen := utf8.RuneCountInString(piece)

		// 单个片段仍超长时，用更细粒度的分隔符继续分割
		if pieceLen > s.config.ChunkSize {
			flush(false)
			chunks = append(chunks, s.split(piece, rest)...)
			continue
		}

		if utf8.RuneCountInString(current.String())+pieceLen > s.config.ChunkSize {
			flush(true)
			// 重叠加上片段仍超长时放弃本次重叠
			if utf8.RuneCountInString(current.String())+pieceLen > s.config.ChunkSize {
				current.Reset()
				seed = ""
			}
		}
		current.WriteString(piece)
	}
	flush(false)

	return chunks
}

// hardSplit 无可用分隔符时按固定步长硬切
func (s *TextSplitter) hardSplit(text string) []string {
	runes := []rune(text)
	stride := s.config.ChunkSize - s.config.ChunkOverlap

	var chunks []string
	for start := 0; start < len(runes); start += stride {
		end := start + s.config.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// splitKeepSeparator 按分隔符分割并将分隔符保留在前一片段末尾
func splitKeepSeparator(text, sep string) []string {
	parts := strings.Split(text, sep)
	pieces := make([]string, 0, len(parts))
	for i, part := range parts {
		if i < len(parts)-1 {
			part += sep
		}
		if part != "" {
			pieces = append(pieces, part)
		}
	}
	return pieces
}

// overlapTail 返回文本末尾最多n个字符，用于分块间重叠
func overlapTail(text string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[len(runes)-n:])
}
