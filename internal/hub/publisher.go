// Package hub 实现数据集的发布协作方
package hub

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/fyerfyer/docx2hf/internal/dataset"
	"github.com/fyerfyer/docx2hf/pkg/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Publisher 发布协作方接口
// 接收train/test两个划分和目标仓库名，返回成功或失败
type Publisher interface {
	Publish(ctx context.Context, bundle dataset.Bundle, repoID, token string) error
}

// RepoFiles 生成写入仓库的全部文件：README说明和两个JSONL数据文件
func RepoFiles(repoID string, bundle dataset.Bundle) ([]dataset.File, error) {
	card, err := dataset.BuildCard(repoID, bundle)
	if err != nil {
		return nil, err
	}

	data, err := bundle.Files()
	if err != nil {
		return nil, err
	}

	files := make([]dataset.File, 0, len(data)+1)
	files = append(files, dataset.File{Path: dataset.CardPath, Content: []byte(card.String())})
	files = append(files, data...)
	return files, nil
}

// StoragePublisher 将数据集写入对象存储(本地目录或MinIO)
// 每次发布写入 <repoID>/<时间戳>-<随机后缀>/ 下，不需要凭证
type StoragePublisher struct {
	storage storage.Storage
	logger  *logrus.Logger
	now     func() time.Time
	newID   func() string
}

// NewStoragePublisher 创建对象存储发布器
func NewStoragePublisher(s storage.Storage, logger *logrus.Logger) *StoragePublisher {
	if logger == nil {
		logger = logrus.New()
	}
	return &StoragePublisher{
		storage: s,
		logger:  logger,
		now:     time.Now,
		newID:   func() string { return uuid.NewString()[:8] },
	}
}

// Publish 写入README和数据文件
// 任一文件写入失败时删除本次已写入的文件
func (p *StoragePublisher) Publish(ctx context.Context, bundle dataset.Bundle, repoID, _ string) error {
	files, err := RepoFiles(repoID, bundle)
	if err != nil {
		return NewError(ErrCodeInvalidRequest, err.Error())
	}

	prefix := path.Join(repoID, p.now().UTC().Format("20060102T150405Z")+"-"+p.newID())
	written := make([]string, 0, len(files))
	for _, f := range files {
		key := path.Join(prefix, f.Path)
		info, err := p.storage.Put(ctx, key, bytes.NewReader(f.Content), int64(len(f.Content)))
		if err != nil {
			p.rollback(ctx, repoID, written)
			return &Error{
				Code:    ErrCodeStorage,
				Message: fmt.Sprintf("failed to write %s: %v", key, err),
			}
		}
		written = append(written, info.Key)
		p.logger.WithFields(logrus.Fields{
			"repo_id": repoID,
			"key":     info.Key,
			"size":    info.Size,
		}).Debug("Dataset file stored")
	}

	p.logger.WithFields(logrus.Fields{
		"repo_id": repoID,
		"prefix":  prefix,
		"train":   len(bundle.Train),
		"test":    len(bundle.Test),
	}).Info("Dataset written to storage")
	return nil
}

// rollback 删除未完成发布中已写入的文件
// 请求取消后仍需清理，因此不继承ctx的取消
func (p *StoragePublisher) rollback(ctx context.Context, repoID string, keys []string) {
	cleanupCtx := context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := p.storage.Delete(cleanupCtx, key); err != nil {
			p.logger.WithFields(logrus.Fields{
				"repo_id": repoID,
				"key":     key,
			}).WithError(err).Warn("Failed to remove partially published file")
		}
	}
}
