package document

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTextSplitter(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		s, err := NewTextSplitter(DefaultSplitterConfig())
		require.NoError(t, err)
		assert.NotNil(t, s)
	})

	t.Run("InvalidChunkSize", func(t *testing.T) {
		_, err := NewTextSplitter(SplitterConfig{ChunkSize: 0, ChunkOverlap: 0})
		assert.Error(t, err)
	})

	t.Run("OverlapNotLessThanSize", func(t *testing.T) {
		_, err := NewTextSplitter(SplitterConfig{ChunkSize: 100, ChunkOverlap: 100})
		assert.Error(t, err)
	})
}

func TestSplitShortText(t *testing.T) {
	s, err := NewTextSplitter(DefaultSplitterConfig())
	require.NoError(t, err)

	// 不超过分块上限的文本应原样作为唯一分块返回
	text := "The capital of France is Paris. It is known for the Eiffel Tower."
	chunks := s.Split(text)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestSplitEmptyText(t *testing.T) {
	s, err := NewTextSplitter(DefaultSplitterConfig())
	require.NoError(t, err)

	assert.Empty(t, s.Split(""))
	assert.Empty(t, s.Split("   \n\n  "))
}

func TestSplitLongText(t *testing.T) {
	config := DefaultSplitterConfig()
	s, err := NewTextSplitter(config)
	require.NoError(t, err)

	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString("This is a sentence that describes an interesting fact about the world around us. ")
		if i%5 == 4 {
			sb.WriteString("\n\n")
		}
	}
	text := sb.String()

	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), config.ChunkSize,
			"chunk %d exceeds size limit", i)
		assert.NotEmpty(t, strings.TrimSpace(chunk))
	}

	// 每个分块都应出现在原文中（分割不改写内容）
	for i, chunk := range chunks {
		assert.Contains(t, text, chunk, "chunk %d not found in source text", i)
	}
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	s, err := NewTextSplitter(SplitterConfig{ChunkSize: 100, ChunkOverlap: 10})
	require.NoError(t, err)

	para1 := strings.Repeat("alpha ", 12)
	para2 := strings.Repeat("beta ", 12)
	text := strings.TrimSpace(para1) + "\n\n" + strings.TrimSpace(para2)

	chunks := s.Split(text)
	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0], "alpha")
	assert.NotContains(t, chunks[0], "beta")
	assert.Contains(t, chunks[1], "beta")
}

func TestSplitNoSeparators(t *testing.T) {
	config := SplitterConfig{ChunkSize: 100, ChunkOverlap: 20}
	s, err := NewTextSplitter(config)
	require.NoError(t, err)

	// 无任何分隔符的连续文本只能硬切
	text := strings.Repeat("x", 350)
	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), config.ChunkSize)
	}

	// 相邻分块间保留重叠
	for i := 1; i < len(chunks); i++ {
		prevTail := chunks[i-1][len(chunks[i-1])-config.ChunkOverlap:]
		assert.True(t, strings.HasPrefix(chunks[i], prevTail),
			"chunk %d should start with overlap from previous chunk", i)
	}
}

func TestSplitOverlapAndReconstruction(t *testing.T) {
	config := DefaultSplitterConfig()
	s, err := NewTextSplitter(config)
	require.NoError(t, err)

	// 编号段落保证内容互不重复，重叠长度可以精确定位
	paragraphs := make([]string, 30)
	for i := range paragraphs {
		paragraphs[i] = fmt.Sprintf(
			"Paragraph %02d examines topic number %02d in moderate depth. "+
				"It offers several observations about subject %02d and its background. "+
				"A closing sentence wraps up paragraph %02d with a definitive remark.",
			i, i, i, i)
	}
	text := strings.Join(paragraphs, "\n\n")

	chunks := s.Split(text)
	require.Greater(t, len(chunks), 2)

	// 相邻分块之间应携带接近ChunkOverlap的重叠
	overlaps := make([]int, 0, len(chunks)-1)
	for i := 1; i < len(chunks); i++ {
		k := longestOverlap(chunks[i-1], chunks[i])
		overlaps = append(overlaps, k)
		assert.GreaterOrEqual(t, k, config.ChunkOverlap-10,
			"chunks %d and %d overlap too little", i-1, i)
		assert.LessOrEqual(t, k, config.ChunkOverlap+1,
			"chunks %d and %d overlap too much", i-1, i)
	}

	// 去掉重叠后拼接应还原原文，仅损失分块边界被裁剪的空白
	var sb strings.Builder
	sb.WriteString(chunks[0])
	for i := 1; i < len(chunks); i++ {
		runes := []rune(chunks[i])
		sb.WriteString(" ")
		sb.WriteString(string(runes[overlaps[i-1]:]))
	}
	assert.Equal(t,
		strings.Join(strings.Fields(text), " "),
		strings.Join(strings.Fields(sb.String()), " "))
}

// longestOverlap 返回prev的后缀与next的前缀能匹配的最大字符数
func longestOverlap(prev, next string) int {
	p := []rune(prev)
	n := []rune(next)

	max := len(p)
	if len(n) < max {
		max = len(n)
	}
	for k := max; k > 0; k-- {
		if string(p[len(p)-k:]) == string(n[:k]) {
			return k
		}
	}
	return 0
}

func TestSplitUnicodeText(t *testing.T) {
	s, err := NewTextSplitter(SplitterConfig{ChunkSize: 50, ChunkOverlap: 5})
	require.NoError(t, err)

	text := strings.Repeat("这是一个关于文档问答系统的中文句子。", 20)
	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk), "chunk contains invalid UTF-8")
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 50)
	}
}

func TestSplitDocuments(t *testing.T) {
	s, err := NewTextSplitter(SplitterConfig{ChunkSize: 80, ChunkOverlap: 10})
	require.NoError(t, err)

	docs := []Document{
		NewDocument(strings.Repeat("first document sentence. ", 10), "a.txt"),
		NewDocument("short second document", "b.txt"),
	}

	chunks := s.SplitDocuments(docs)
	require.Greater(t, len(chunks), 2)

	// 顺序保持：a.txt的所有分块在b.txt之前
	lastA := -1
	firstB := len(chunks)
	for i, c := range chunks {
		switch c.Source() {
		case "a.txt":
			lastA = i
		case "b.txt":
			if i < firstB {
				firstB = i
			}
		default:
			t.Fatalf("unexpected source %q", c.Source())
		}
	}
	assert.Less(t, lastA, firstB)

	// 短文档原样成为单个分块
	assert.Equal(t, "short second document", chunks[len(chunks)-1].Content)

	// 元数据为副本，修改分块不影响原文档
	chunks[0].Metadata["extra"] = "value"
	assert.NotContains(t, docs[0].Metadata, "extra")
}
