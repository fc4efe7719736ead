package document

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTempFile(t *testing.T, content, ext string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp(t.TempDir(), "docurag-test-*"+ext)
	require.NoError(t, err)
	_, err = tmpFile.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tmpFile.Close())
	return tmpFile.Name()
}

func createTempPDF(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docurag-test.pdf")
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "", 12)
	pdf.MultiCell(0, 10, text, "", "", false)
	require.NoError(t, pdf.Output(file))
	return path
}

func createTempDocx(t *testing.T, paragraphs []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docurag-test.docx")
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	zw := zip.NewWriter(file)

	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	body.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	body.WriteString(`</w:body></w:document>`)

	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(body.String()))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return path
}

func TestPlainTextLoader(t *testing.T) {
	file := createTempFile(t, "Hello, this is a plain text file.\nSecond line.", ".txt")

	docs, err := NewPlainTextLoader().Load(file)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Content, "plain text file")
	assert.Equal(t, file, docs[0].Source())
}

func TestPlainTextLoaderEmptyFile(t *testing.T) {
	file := createTempFile(t, "   \n  ", ".txt")

	_, err := NewPlainTextLoader().Load(file)
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestMarkdownLoader(t *testing.T) {
	content := "# Title\n\nThis is a **markdown** file.\n\n- Item 1\n- Item 2"
	file := createTempFile(t, content, ".md")

	docs, err := NewMarkdownLoader().Load(file)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Content, "markdown file")
	assert.Contains(t, docs[0].Content, "Item 1")
	assert.NotContains(t, docs[0].Content, "**")
}

func TestPDFLoader(t *testing.T) {
	file := createTempPDF(t, "This is a PDF test.\nSecond line.")

	docs, err := NewPDFLoader().Load(file)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Content, "PDF test")
}

func TestPDFLoaderInvalidFile(t *testing.T) {
	file := createTempFile(t, "not a real pdf", ".pdf")

	_, err := NewPDFLoader().Load(file)
	assert.Error(t, err)
}

func TestDocxLoader(t *testing.T) {
	file := createTempDocx(t, []string{"First paragraph of the document.", "Second paragraph here."})

	docs, err := NewDocxLoader().Load(file)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Content, "First paragraph")
	assert.Contains(t, docs[0].Content, "Second paragraph")
	// 段落之间以空行分隔
	assert.Contains(t, docs[0].Content, "document.\n\nSecond")
}

func TestDocxLoaderInvalidFile(t *testing.T) {
	file := createTempFile(t, "not a zip archive", ".docx")

	_, err := NewDocxLoader().Load(file)
	assert.Error(t, err)
}

func TestLoaderFor(t *testing.T) {
	t.Run("ByExtension", func(t *testing.T) {
		cases := map[string]string{
			"report.pdf":  ".pdf",
			"notes.TXT":   ".txt",
			"readme.md":   ".md",
			"paper.docx":  ".docx",
			"a/b/file.md": ".md",
		}
		for name := range cases {
			loader, err := LoaderFor(name)
			require.NoError(t, err, "expected loader for %s", name)
			assert.NotNil(t, loader)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		_, err := LoaderFor("archive.tar.gz")
		assert.ErrorIs(t, err, ErrUnsupportedFormat)

		_, err = LoaderFor("noextension")
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})
}

func TestSupportedExtensions(t *testing.T) {
	exts := SupportedExtensions()
	assert.Contains(t, exts, ".pdf")
	assert.Contains(t, exts, ".txt")
	assert.Contains(t, exts, ".md")
	assert.Contains(t, exts, ".docx")
}
