package document

import (
	"fmt"
	"os"
	"strings"
)

// PlainTextLoader 纯文本加载器
type PlainTextLoader struct{}

// NewPlainTextLoader 创建一个新的纯文本加载器
func NewPlainTextLoader() Loader {
	return &PlainTextLoader{}
}

// Load 读取纯文本文件
func (l *PlainTextLoader) Load(filePath string) ([]Document, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}

	text := strings.TrimSpace(string(content))
	if text == "" {
		return nil, ErrEmptyContent
	}

	return []Document{NewDocument(text, filePath)}, nil
}

func init() {
	RegisterLoader(".txt", NewPlainTextLoader)
}
