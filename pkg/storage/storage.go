package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
)

// ErrNotFound 对象不存在
var ErrNotFound = errors.New("object not found")

// FileInfo 对象元数据结构
type FileInfo struct {
	Key      string // 对象键，使用/分隔
	Size     int64  // 对象大小(字节)
	MimeType string // 对象MIME类型
	Path     string // 内部存储路径(实现相关)
}

// Storage 对象存储接口
// 不同实现(本地文件系统、MinIO)按键保存发布的数据集文件
type Storage interface {
	// Put 按键写入对象，size未知时传-1
	Put(ctx context.Context, key string, reader io.Reader, size int64) (FileInfo, error)

	// Get 获取对象内容
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete 删除对象
	Delete(ctx context.Context, key string) error

	// List 列出前缀下的所有对象
	List(ctx context.Context, prefix string) ([]FileInfo, error)

	// Exists 检查对象是否存在
	Exists(ctx context.Context, key string) (bool, error)
}

// Config 存储配置
type Config struct {
	Type      string // local 或 minio
	Path      string // 本地存储路径
	Endpoint  string // MinIO端点
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string // MinIO桶名称
}

// NewStorage 根据配置创建存储实现
func NewStorage(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalStorage(LocalConfig{Path: cfg.Path})
	case "minio":
		return NewMinioStorage(ctx, MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// cleanKey 规范化对象键，拒绝跳出根目录的键
func cleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return cleaned, nil
}

// getMimeType 根据文件扩展名判断MIME类型
func getMimeType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".jsonl":
		return "application/x-ndjson"
	case ".json":
		return "application/json"
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
