// Package app 负责根据配置组装各个组件，供服务端和命令行共用
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyerfyer/docx2hf/config"
	"github.com/fyerfyer/docx2hf/internal/cache"
	"github.com/fyerfyer/docx2hf/internal/hub"
	"github.com/fyerfyer/docx2hf/pkg/storage"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// 发布方式
const (
	PublisherHub   = "hub"
	PublisherLocal = "local"
	PublisherMinio = "minio"
)

// SetupLogger 设置日志级别和输出
// 配置了日志文件时同时输出到原有输出和按大小轮转的文件
func SetupLogger(logger *logrus.Logger, cfg config.LogConfig) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.File == "" {
		return logger, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}
	logger.SetOutput(io.MultiWriter(logger.Out, &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}))
	return logger, nil
}

// SetupCache 设置凭证缓存
func SetupCache(cfg config.CacheConfig) (cache.Cache, error) {
	cacheConfig := cache.DefaultConfig()
	if cfg.Type != "" {
		cacheConfig.Type = cfg.Type
	}
	if cfg.TTL > 0 {
		cacheConfig.DefaultTTL = time.Duration(cfg.TTL) * time.Second
	}

	// 如果配置了Redis，添加Redis配置
	if cacheConfig.Type == "redis" {
		cacheConfig.RedisAddr = cfg.Address
		cacheConfig.RedisPassword = cfg.Password
		cacheConfig.RedisDB = cfg.DB
	}

	return cache.NewCache(cacheConfig)
}

// SetupHubClient 创建数据集仓库客户端
func SetupHubClient(cfg config.HubConfig, tokenCache cache.Cache, cachePrefix string, logger *logrus.Logger) *hub.Client {
	opts := []hub.Option{
		hub.WithEndpoint(cfg.Endpoint),
		hub.WithRevision(cfg.Revision),
		hub.WithPrivate(cfg.Private),
		hub.WithTimeout(cfg.Timeout),
		hub.WithLogger(logger),
	}
	if cfg.TokenTTL > 0 {
		opts = append(opts, hub.WithTokenTTL(cfg.TokenTTL))
	}
	if tokenCache != nil {
		opts = append(opts, hub.WithCache(tokenCache), hub.WithCachePrefix(cachePrefix))
	}
	return hub.NewClient(opts...)
}

// SetupPublisher 根据发布方式创建发布方
func SetupPublisher(ctx context.Context, cfg *config.Config, client *hub.Client, logger *logrus.Logger) (hub.Publisher, error) {
	switch cfg.Publisher.Type {
	case "", PublisherHub:
		return client, nil
	case PublisherLocal, PublisherMinio:
		s, err := storage.NewStorage(ctx, storage.Config{
			Type:      cfg.Publisher.Type,
			Path:      cfg.Storage.Path,
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		return hub.NewStoragePublisher(s, logger), nil
	default:
		return nil, fmt.Errorf("unsupported publisher type: %s", cfg.Publisher.Type)
	}
}
