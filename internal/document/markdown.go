package document

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownLoader Markdown文档加载器
// 先渲染为HTML，再提取纯文本，保留段落结构
type MarkdownLoader struct{}

// NewMarkdownLoader 创建新的Markdown加载器
func NewMarkdownLoader() Loader {
	return &MarkdownLoader{}
}

// Load 解析Markdown文件并提取文本内容
func (l *MarkdownLoader) Load(filePath string) ([]Document, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read markdown file: %w", err)
	}

	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	mdParser := parser.NewWithExtensions(extensions)
	node := mdParser.Parse(content)

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	htmlContent := markdown.Render(node, renderer)

	text, err := htmlToText(htmlContent)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text from markdown: %w", err)
	}
	if text == "" {
		return nil, ErrEmptyContent
	}

	return []Document{NewDocument(text, filePath)}, nil
}

// htmlToText 从HTML中逐块提取纯文本，块之间以空行分隔
func htmlToText(htmlContent []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	var blocks []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, td").Each(func(_ int, s *goquery.Selection) {
		// 跳过包含子块的容器，避免重复提取
		if s.Find("p, li, pre").Length() > 0 {
			return
		}
		text := strings.TrimSpace(s.Text())
		if text != "" {
			blocks = append(blocks, text)
		}
	})

	if len(blocks) == 0 {
		// 无块级元素时回退到整体文本
		return strings.TrimSpace(doc.Text()), nil
	}
	return strings.Join(blocks, "\n\n"), nil
}

func init() {
	RegisterLoader(".md", NewMarkdownLoader)
	RegisterLoader(".markdown", NewMarkdownLoader)
}
