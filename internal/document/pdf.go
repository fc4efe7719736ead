package document

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFLoader PDF文档加载器
// 使用pdfcpu提取各页文本，按页码顺序拼接为单个文档
type PDFLoader struct{}

// NewPDFLoader 创建一个新的PDF加载器
func NewPDFLoader() Loader {
	return &PDFLoader{}
}

// Load 解析PDF文件并提取其文本内容
func (l *PDFLoader) Load(filePath string) ([]Document, error) {
	// 创建临时目录用于存放提取的文本
	tmpDir, err := os.MkdirTemp("", "pdfcpu_extract_")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	conf := model.NewDefaultConfiguration()

	// 提取文本到临时目录，每页一个txt文件
	if err := api.ExtractContentFile(filePath, tmpDir, nil, conf); err != nil {
		return nil, fmt.Errorf("failed to extract text from PDF: %w", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted text dir: %w", err)
	}

	// 按文件名排序（页码顺序）
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	var allText strings.Builder
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(tmpDir, entry.Name()))
		if err != nil {
			continue
		}
		if allText.Len() > 0 {
			allText.WriteString("\n\n")
		}
		allText.Write(data)
	}

	content := strings.TrimSpace(allText.String())
	if content == "" {
		return nil, ErrEmptyContent
	}

	return []Document{NewDocument(content, filePath)}, nil
}

func init() {
	RegisterLoader(".pdf", NewPDFLoader)
}
