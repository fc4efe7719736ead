package models

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentNotFound 按ID或来源都查不到对应的文档记录
	ErrDocumentNotFound = errors.New("document not found")

	// ErrInvalidDocumentStatus 状态值不在已定义的取值范围内
	ErrInvalidDocumentStatus = errors.New("invalid document status")
)

// NotFoundError 构造带定位键的文档不存在错误
// key为记录ID或来源（URL/上传文件名），可用errors.Is匹配ErrDocumentNotFound
func NotFoundError(key string) error {
	return fmt.Errorf("%w: %s", ErrDocumentNotFound, key)
}

// ValidStatus 判断给定状态是否为已定义的文档状态
func ValidStatus(status DocumentStatus) bool {
	switch status {
	case DocStatusUploaded, DocStatusProcessing, DocStatusCompleted, DocStatusFailed:
		return true
	}
	return false
}
