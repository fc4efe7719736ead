package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage MinIO对象存储实现
type MinioStorage struct {
	client     *minio.Client // MinIO客户端
	bucketName string        // 存储桶名称
}

// MinioConfig MinIO存储配置
type MinioConfig struct {
	Endpoint  string // MinIO服务端点
	AccessKey string // 访问密钥ID
	SecretKey string // 秘密访问密钥
	UseSSL    bool   // 是否使用SSL
	Bucket    string // 存储桶名称
}

// NewMinioStorage 创建MinIO存储实例
// 存储桶不存在时自动创建
func NewMinioStorage(cfg MinioConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinioStorage{
		client:     client,
		bucketName: cfg.Bucket,
	}, nil
}

// Save 保存文档到MinIO存储，同名对象被覆盖
func (s *MinioStorage) Save(reader io.Reader, name string) (FileInfo, error) {
	key := objectName(name)
	contentType := getMimeType(key)

	// 大小未知时用流式上传
	uploaded, err := s.client.PutObject(
		context.Background(),
		s.bucketName,
		key,
		reader,
		-1,
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to upload file: %w", err)
	}

	return FileInfo{
		Name:     key,
		Size:     uploaded.Size,
		MimeType: contentType,
		Path:     key,
	}, nil
}

// Get 获取MinIO中的文档
func (s *MinioStorage) Get(name string) (io.ReadCloser, error) {
	key := objectName(name)

	obj, err := s.client.GetObject(
		context.Background(),
		s.bucketName,
		key,
		minio.GetObjectOptions{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	// GetObject是惰性的，先确认对象存在
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("file %s not found", name)
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}

	return obj, nil
}

// Delete 从MinIO中删除文档
func (s *MinioStorage) Delete(name string) error {
	key := objectName(name)

	exists, err := s.Exists(name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("file %s not found", name)
	}

	err = s.client.RemoveObject(
		context.Background(),
		s.bucketName,
		key,
		minio.RemoveObjectOptions{},
	)
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

// List 列出MinIO中的所有文档
func (s *MinioStorage) List() ([]FileInfo, error) {
	var files []FileInfo

	objectCh := s.client.ListObjects(
		context.Background(),
		s.bucketName,
		minio.ListObjectsOptions{Recursive: true},
	)

	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects: %w", object.Err)
		}

		files = append(files, FileInfo{
			Name:     object.Key,
			Size:     object.Size,
			MimeType: getMimeType(object.Key),
			Path:     object.Key,
			ModTime:  object.LastModified,
		})
	}

	return files, nil
}

// Exists 检查MinIO中是否存在指定文档
func (s *MinioStorage) Exists(name string) (bool, error) {
	key := objectName(name)

	_, err := s.client.StatObject(
		context.Background(),
		s.bucketName,
		key,
		minio.StatObjectOptions{},
	)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %w", err)
	}

	return true, nil
}
