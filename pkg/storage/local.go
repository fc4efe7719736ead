package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage 本地文件系统存储实现
type LocalStorage struct {
	basePath string // 基础存储路径
}

// LocalConfig 本地存储配置
type LocalConfig struct {
	Path string // 本地存储路径
}

// NewLocalStorage 创建本地存储实例
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: absPath,
	}, nil
}

// Save 保存文档到本地存储，同名文档被覆盖
func (s *LocalStorage) Save(reader io.Reader, name string) (FileInfo, error) {
	key := objectName(name)
	filePath := filepath.Join(s.basePath, key)

	// 先写临时文件再改名，避免读到写到一半的内容
	tmp, err := os.CreateTemp(s.basePath, ".upload-*")
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to create file: %w", err)
	}
	tmpPath := tmp.Name()

	size, err := io.Copy(tmp, reader)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return FileInfo{}, fmt.Errorf("failed to write file: %w", err)
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return FileInfo{}, fmt.Errorf("failed to store file: %w", err)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to stat stored file: %w", err)
	}

	return FileInfo{
		Name:     key,
		Size:     size,
		MimeType: getMimeType(key),
		Path:     filePath,
		ModTime:  info.ModTime(),
	}, nil
}

// Get 获取文档内容
func (s *LocalStorage) Get(name string) (io.ReadCloser, error) {
	filePath := filepath.Join(s.basePath, objectName(name))

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file %s not found", name)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Delete 删除文档
func (s *LocalStorage) Delete(name string) error {
	filePath := filepath.Join(s.basePath, objectName(name))

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file %s not found", name)
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// List 列出所有已归档文档
func (s *LocalStorage) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		files = append(files, FileInfo{
			Name:     entry.Name(),
			Size:     info.Size(),
			MimeType: getMimeType(entry.Name()),
			Path:     filepath.Join(s.basePath, entry.Name()),
			ModTime:  info.ModTime(),
		})
	}

	return files, nil
}

// Exists 检查文档是否存在
func (s *LocalStorage) Exists(name string) (bool, error) {
	filePath := filepath.Join(s.basePath, objectName(name))

	_, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat file: %w", err)
	}

	return true, nil
}
