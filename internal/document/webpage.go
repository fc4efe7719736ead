package document

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// 网页抓取的默认限制
const (
	defaultFetchTimeout = 30 * time.Second
	defaultMaxBodySize  = 10 << 20 // 10MB
)

// 提取正文时优先匹配的容器选择器
var mainContentSelectors = []string{
	"main", "article", ".content", ".post", ".entry", "#content", "#main",
}

// URLLoader 网页加载器
// 抓取HTML页面并提取可读正文，标题与正文以空行分隔
type URLLoader struct {
	client    *http.Client
	userAgent string
}

// URLLoaderOption URL加载器配置选项
type URLLoaderOption func(*URLLoader)

// WithHTTPClient 设置自定义HTTP客户端
func WithHTTPClient(client *http.Client) URLLoaderOption {
	return func(l *URLLoader) {
		l.client = client
	}
}

// WithUserAgent 设置请求User-Agent
func WithUserAgent(ua string) URLLoaderOption {
	return func(l *URLLoader) {
		l.userAgent = ua
	}
}

// NewURLLoader 创建网页加载器
func NewURLLoader(opts ...URLLoaderOption) *URLLoader {
	l := &URLLoader{
		client:    &http.Client{Timeout: defaultFetchTimeout},
		userAgent: "DocuRAG/1.0 (Web Content Fetcher)",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load 抓取URL并返回提取出的文档，来源元数据为原始URL
func (l *URLLoader) Load(ctx context.Context, rawURL string) ([]Document, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, defaultMaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	var text string
	switch {
	case strings.Contains(contentType, "text/html"), contentType == "":
		text, err = extractReadableText(string(body))
		if err != nil {
			return nil, fmt.Errorf("failed to extract content: %w", err)
		}
	case strings.Contains(contentType, "text/"):
		text = strings.TrimSpace(string(body))
	default:
		return nil, fmt.Errorf("unsupported content type: %s", contentType)
	}

	if text == "" {
		return nil, ErrEmptyContent
	}

	return []Document{NewDocument(text, rawURL)}, nil
}

// extractReadableText 从HTML中提取可读正文
func extractReadableText(htmlContent string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	// 移除非正文元素
	doc.Find("script, style, nav, footer, aside, header, noscript").Remove()

	var sb strings.Builder
	if title := strings.TrimSpace(doc.Find("title").Text()); title != "" {
		sb.WriteString(title)
		sb.WriteString("\n\n")
	}

	// 优先提取主内容区域，找不到时回退到body
	var main *goquery.Selection
	for _, selector := range mainContentSelectors {
		if sel := doc.Find(selector); sel.Length() > 0 {
			main = sel.First()
			break
		}
	}
	if main == nil {
		main = doc.Find("body")
	}

	main.Find("h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, td").Each(func(_ int, s *goquery.Selection) {
		if s.Find("p, li, pre").Length() > 0 {
			return
		}
		if text := strings.TrimSpace(s.Text()); text != "" {
			sb.WriteString(text)
			sb.WriteString("\n\n")
		}
	})

	result := strings.TrimSpace(sb.String())
	if result == "" {
		// 页面无块级结构时回退到整体文本
		result = cleanWhitespace(main.Text())
	}
	return result, nil
}

// cleanWhitespace 压缩连续空白，保留段落分隔
func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		if trimmed := strings.Join(strings.Fields(line), " "); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return strings.Join(cleaned, "\n")
}
