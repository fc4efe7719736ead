package document

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"strings"
)

// DocxLoader Word文档(.docx)加载器
// docx本质是zip包，正文位于word/document.xml，按段落提取文本
type DocxLoader struct{}

// NewDocxLoader 创建一个新的Word文档加载器
func NewDocxLoader() Loader {
	return &DocxLoader{}
}

// docxBody word/document.xml中与文本相关的最小结构
type docxBody struct {
	Paragraphs []docxParagraph `xml:"body>p"`
}

type docxParagraph struct {
	Runs []docxRun `xml:"r"`
}

type docxRun struct {
	Texts []string `xml:"t"`
}

// Load 解压docx并提取正文文本
func (l *DocxLoader) Load(filePath string) ([]Document, error) {
	reader, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open docx file: %w", err)
	}
	defer reader.Close()

	var docXML *zip.File
	for _, f := range reader.File {
		if f.Name == "word/document.xml" {
			docXML = f
			break
		}
	}
	if docXML == nil {
		return nil, fmt.Errorf("invalid docx file: missing word/document.xml")
	}

	rc, err := docXML.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open document.xml: %w", err)
	}
	defer rc.Close()

	var body docxBody
	if err := xml.NewDecoder(rc).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to parse document.xml: %w", err)
	}

	var paragraphs []string
	for _, p := range body.Paragraphs {
		var sb strings.Builder
		for _, r := range p.Runs {
			for _, t := range r.Texts {
				sb.WriteString(t)
			}
		}
		if text := strings.TrimSpace(sb.String()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}

	content := strings.Join(paragraphs, "\n\n")
	if content == "" {
		return nil, ErrEmptyContent
	}

	return []Document{NewDocument(content, filePath)}, nil
}

func init() {
	RegisterLoader(".docx", NewDocxLoader)
}
