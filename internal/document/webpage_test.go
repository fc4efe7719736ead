package document

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLLoaderHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html>
			<head><title>Test Page</title><style>body { color: red; }</style></head>
			<body>
				<nav>Navigation links</nav>
				<article>
					<h1>Main Heading</h1>
					<p>The capital of France is Paris.</p>
					<p>Paris is known for the Eiffel Tower.</p>
				</article>
				<footer>Copyright notice</footer>
				<script>console.log("noise");</script>
			</body>
		</html>`))
	}))
	defer server.Close()

	loader := NewURLLoader()
	docs, err := loader.Load(context.Background(), server.URL)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	doc := docs[0]
	assert.Equal(t, server.URL, doc.Source())
	assert.Contains(t, doc.Content, "Test Page")
	assert.Contains(t, doc.Content, "Main Heading")
	assert.Contains(t, doc.Content, "The capital of France is Paris.")

	// 非正文元素应被剔除
	assert.NotContains(t, doc.Content, "Navigation links")
	assert.NotContains(t, doc.Content, "Copyright notice")
	assert.NotContains(t, doc.Content, "console.log")
	assert.NotContains(t, doc.Content, "color: red")
}

func TestURLLoaderPlainText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("plain text response body"))
	}))
	defer server.Close()

	docs, err := NewURLLoader().Load(context.Background(), server.URL)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "plain text response body", docs[0].Content)
}

func TestURLLoaderErrors(t *testing.T) {
	t.Run("InvalidScheme", func(t *testing.T) {
		_, err := NewURLLoader().Load(context.Background(), "ftp://example.com/file.txt")
		assert.Error(t, err)
	})

	t.Run("HTTPError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer server.Close()

		_, err := NewURLLoader().Load(context.Background(), server.URL)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("EmptyPage", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html><body></body></html>"))
		}))
		defer server.Close()

		_, err := NewURLLoader().Load(context.Background(), server.URL)
		assert.ErrorIs(t, err, ErrEmptyContent)
	})

	t.Run("UnsupportedContentType", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Write([]byte{0x00, 0x01})
		}))
		defer server.Close()

		_, err := NewURLLoader().Load(context.Background(), server.URL)
		assert.Error(t, err)
	})
}
