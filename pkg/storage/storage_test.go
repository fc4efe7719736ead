package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, r io.ReadCloser) string {
	t.Helper()
	defer r.Close()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

func TestLocalStorage(t *testing.T) {
	store, err := NewLocalStorage(LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	content := "The capital of France is Paris."
	info, err := store.Save(strings.NewReader(content), "france.txt")
	require.NoError(t, err)
	assert.Equal(t, "france.txt", info.Name)
	assert.EqualValues(t, len(content), info.Size)
	assert.Equal(t, "text/plain", info.MimeType)

	t.Run("Get", func(t *testing.T) {
		reader, err := store.Get("france.txt")
		require.NoError(t, err)
		assert.Equal(t, content, readAll(t, reader))
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := store.Get("missing.txt")
		assert.Error(t, err)
	})

	t.Run("SaveOverwrites", func(t *testing.T) {
		updated := "The capital of France is Paris. Population about two million."
		_, err := store.Save(strings.NewReader(updated), "france.txt")
		require.NoError(t, err)

		reader, err := store.Get("france.txt")
		require.NoError(t, err)
		assert.Equal(t, updated, readAll(t, reader))

		// 覆盖不会产生新条目
		files, err := store.List()
		require.NoError(t, err)
		assert.Len(t, files, 1)
	})

	t.Run("List", func(t *testing.T) {
		_, err := store.Save(strings.NewReader("The capital of Japan is Tokyo."), "japan.txt")
		require.NoError(t, err)

		files, err := store.List()
		require.NoError(t, err)
		assert.Len(t, files, 2)

		names := make([]string, len(files))
		for i, f := range files {
			names[i] = f.Name
		}
		assert.Contains(t, names, "france.txt")
		assert.Contains(t, names, "japan.txt")
	})

	t.Run("Exists", func(t *testing.T) {
		exists, err := store.Exists("france.txt")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = store.Exists("missing.txt")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete("japan.txt"))

		exists, err := store.Exists("japan.txt")
		require.NoError(t, err)
		assert.False(t, exists)

		assert.Error(t, store.Delete("japan.txt"))
	})

	t.Run("PathTraversal", func(t *testing.T) {
		// 路径部分被剥离，不会写到基础目录之外
		info, err := store.Save(strings.NewReader("x"), "../escape.txt")
		require.NoError(t, err)
		assert.Equal(t, "escape.txt", info.Name)
	})
}

func TestNewStorage(t *testing.T) {
	t.Run("DefaultsToLocal", func(t *testing.T) {
		store, err := NewStorage(Config{Local: LocalConfig{Path: t.TempDir()}})
		require.NoError(t, err)
		assert.IsType(t, &LocalStorage{}, store)
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		_, err := NewStorage(Config{Type: "s3"})
		assert.Error(t, err)
	})
}

func TestObjectName(t *testing.T) {
	cases := map[string]string{
		"report.pdf":        "report.pdf",
		"  notes.md ":       "notes.md",
		"dir/inner.txt":     "inner.txt",
		"../../passwd":      "passwd",
		"":                  "unnamed",
		"..":                "unnamed",
	}

	for input, want := range cases {
		assert.Equal(t, want, objectName(input), "input: %q", input)
	}
}
