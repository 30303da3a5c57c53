package hub

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fyerfyer/docx2hf/internal/cache"
	"github.com/fyerfyer/docx2hf/internal/dataset"
	"github.com/sirupsen/logrus"
)

// Config 数据集仓库客户端配置
type Config struct {
	Endpoint    string        // 仓库服务地址
	Revision    string        // 提交的分支
	Private     bool          // 新建仓库是否私有
	Timeout     time.Duration // 请求超时时间
	CachePrefix string        // 凭证缓存键前缀
	TokenTTL    time.Duration // 凭证验证结果的缓存时间
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Endpoint:    "https://huggingface.co",
		Revision:    "main",
		Timeout:     60 * time.Second,
		CachePrefix: "docx2hf",
		TokenTTL:    time.Hour,
	}
}

// Option 客户端配置选项函数类型
type Option func(*Client)

// WithEndpoint 设置仓库服务地址
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.config.Endpoint = strings.TrimRight(endpoint, "/")
		}
	}
}

// WithRevision 设置提交的分支
func WithRevision(revision string) Option {
	return func(c *Client) {
		if revision != "" {
			c.config.Revision = revision
		}
	}
}

// WithPrivate 设置新建仓库是否私有
func WithPrivate(private bool) Option {
	return func(c *Client) {
		c.config.Private = private
	}
}

// WithTimeout 设置请求超时时间
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.config.Timeout = timeout
		}
	}
}

// WithTokenTTL 设置凭证验证结果的缓存时间
func WithTokenTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.config.TokenTTL = ttl
	}
}

// WithCachePrefix 设置凭证缓存键前缀
func WithCachePrefix(prefix string) Option {
	return func(c *Client) {
		if prefix != "" {
			c.config.CachePrefix = prefix
		}
	}
}

// WithCache 设置凭证缓存
func WithCache(tokenCache cache.Cache) Option {
	return func(c *Client) {
		c.cache = tokenCache
	}
}

// WithHTTPClient 设置HTTP客户端
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client 数据集仓库HTTP客户端
// 兼容Hugging Face Hub的whoami、建库和提交接口
type Client struct {
	config     *Config
	httpClient *http.Client
	cache      cache.Cache
	logger     *logrus.Logger
}

// CommitInfo 提交结果
type CommitInfo struct {
	CommitURL string `json:"commitUrl"`
	CommitOID string `json:"commitOid"`
}

// NewClient 创建数据集仓库客户端
func NewClient(opts ...Option) *Client {
	c := &Client{
		config: DefaultConfig(),
		logger: logrus.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout: c.config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return c
}

// Publish 验证凭证、确保仓库存在，并以单次提交上传README和两个划分
// 单次提交保证远端不会出现部分上传，失败不重试
func (c *Client) Publish(ctx context.Context, bundle dataset.Bundle, repoID, token string) error {
	user, err := c.WhoAmI(ctx, token)
	if err != nil {
		return err
	}

	if err := c.CreateRepo(ctx, repoID, token, user); err != nil {
		return err
	}

	files, err := RepoFiles(repoID, bundle)
	if err != nil {
		return NewError(ErrCodeInvalidRequest, err.Error())
	}

	info, err := c.Commit(ctx, repoID, token, files, "Upload dataset with train and test splits")
	if err != nil {
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"repo_id":    repoID,
		"user":       user,
		"commit_url": info.CommitURL,
		"train":      len(bundle.Train),
		"test":       len(bundle.Test),
	}).Info("Dataset pushed to hub")
	return nil
}

// WhoAmI 验证凭证并返回对应的用户名，验证结果会被缓存
func (c *Client) WhoAmI(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", NewError(ErrCodeUnauthorized, ErrMsgMissingToken)
	}

	var key string
	if c.cache != nil {
		key = cache.TokenKey(c.config.CachePrefix, token)
		if name, found, err := c.cache.Get(ctx, key); err != nil {
			c.logger.WithError(err).Warn("Failed to read token cache")
		} else if found {
			return name, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.Endpoint+"/api/whoami-v2", nil)
	if err != nil {
		return "", NewError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", err))
	}

	var result struct {
		Name string `json:"name"`
	}
	if err := c.do(req, token, &result); err != nil {
		var hubErr *Error
		if errors.As(err, &hubErr) && hubErr.Code == ErrCodeUnauthorized {
			hubErr.Message = ErrMsgInvalidToken
		}
		return "", err
	}
	if result.Name == "" {
		return "", NewError(ErrCodeServerError, "whoami response has no user name")
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, result.Name, c.config.TokenTTL); err != nil {
			c.logger.WithError(err).Warn("Failed to write token cache")
		}
	}
	return result.Name, nil
}

// CreateRepo 创建数据集仓库，已存在时视为成功
func (c *Client) CreateRepo(ctx context.Context, repoID, token, user string) error {
	if err := dataset.ValidateRepoID(repoID); err != nil {
		return NewError(ErrCodeInvalidRequest, err.Error())
	}
	owner, name := dataset.SplitRepoID(repoID)

	payload := map[string]interface{}{
		"type":    "dataset",
		"name":    name,
		"private": c.config.Private,
	}
	if owner != user {
		payload["organization"] = owner
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return NewError(ErrCodeInvalidRequest, fmt.Sprintf("failed to marshal request data: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint+"/api/repos/create", bytes.NewReader(body))
	if err != nil {
		return NewError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	err = c.do(req, token, nil)
	var hubErr *Error
	if errors.As(err, &hubErr) && hubErr.StatusCode == http.StatusConflict {
		c.logger.WithField("repo_id", repoID).Debug("Dataset repository already exists")
		return nil
	}
	return err
}

// Commit 以NDJSON格式提交一组文件
func (c *Client) Commit(ctx context.Context, repoID, token string, files []dataset.File, summary string) (*CommitInfo, error) {
	if err := dataset.ValidateRepoID(repoID); err != nil {
		return nil, NewError(ErrCodeInvalidRequest, err.Error())
	}

	body, err := encodeCommit(files, summary)
	if err != nil {
		return nil, NewError(ErrCodeInvalidRequest, err.Error())
	}

	owner, name := dataset.SplitRepoID(repoID)
	endpoint := fmt.Sprintf("%s/api/datasets/%s/%s/commit/%s",
		c.config.Endpoint, owner, name, url.PathEscape(c.config.Revision))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, NewError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	var info CommitInfo
	if err := c.do(req, token, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// commitLine NDJSON提交体中的一行
type commitLine struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

type commitHeader struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
}

type commitFile struct {
	Content  string `json:"content"`
	Path     string `json:"path"`
	Encoding string `json:"encoding"`
}

// encodeCommit 生成提交体：首行为header，其后每个文件一行(base64编码)
func encodeCommit(files []dataset.File, summary string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	if err := enc.Encode(commitLine{Key: "header", Value: commitHeader{Summary: summary}}); err != nil {
		return nil, fmt.Errorf("failed to encode commit header: %w", err)
	}
	for _, f := range files {
		line := commitLine{
			Key: "file",
			Value: commitFile{
				Content:  base64.StdEncoding.EncodeToString(f.Content),
				Path:     f.Path,
				Encoding: "base64",
			},
		}
		if err := enc.Encode(line); err != nil {
			return nil, fmt.Errorf("failed to encode file %s: %w", f.Path, err)
		}
	}
	return buf.Bytes(), nil
}

// do 执行请求并解析JSON响应
func (c *Client) do(req *http.Request, token string, result interface{}) error {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "docx2hf/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewError(ErrCodeNetworkError, fmt.Sprintf("HTTP request failed: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewError(ErrCodeNetworkError, fmt.Sprintf("failed to read response body: %v", err))
	}

	if resp.StatusCode >= 400 {
		message := http.StatusText(resp.StatusCode)
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			message = errResp.Error
		}
		c.logger.WithFields(logrus.Fields{
			"method": req.Method,
			"path":   req.URL.Path,
			"status": resp.StatusCode,
		}).Debug("Hub request failed")
		return &Error{
			Code:       codeForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    message,
		}
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return NewError(ErrCodeServerError, fmt.Sprintf("failed to unmarshal response JSON: %v", err))
		}
	}
	return nil
}
