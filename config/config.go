package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Hub       HubConfig       `mapstructure:"hub"`
	Dataset   DatasetConfig   `mapstructure:"dataset"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`          // 服务器主机
	Port         int           `mapstructure:"port"`          // 服务器端口
	Mode         string        `mapstructure:"mode"`          // 运行模式 debug/release
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`  // 读取超时
	WriteTimeout time.Duration `mapstructure:"write_timeout"` // 写入超时
	MaxUploadMB  int64         `mapstructure:"max_upload_mb"` // 表单解析内存上限(MB)
	EnableCors   bool          `mapstructure:"enable_cors"`   // 是否启用跨域
}

// HubConfig 数据集仓库配置
type HubConfig struct {
	Endpoint string        `mapstructure:"endpoint"` // 仓库服务地址
	Token    string        `mapstructure:"token"`    // 凭证，支持${ENV}
	Revision string        `mapstructure:"revision"` // 提交分支
	Private  bool          `mapstructure:"private"`  // 新建仓库是否私有
	Timeout  time.Duration `mapstructure:"timeout"`  // 请求超时
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// DatasetConfig 数据集默认参数
type DatasetConfig struct {
	RepoName  string `mapstructure:"repo_name"`  // 默认仓库名 owner/name
	TestSplit int    `mapstructure:"test_split"` // 默认测试集百分比
}

// PublisherConfig 发布方式配置
type PublisherConfig struct {
	Type string `mapstructure:"type"` // hub、local 或 minio
}

// StorageConfig 存储配置，后端由 publisher.type 选择
type StorageConfig struct {
	Path      string `mapstructure:"path"`     // 本地存储路径
	Bucket    string `mapstructure:"bucket"`   // MinIO桶名称
	Endpoint  string `mapstructure:"endpoint"` // MinIO端点
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"` // 是否使用SSL
}

// CacheConfig 凭证缓存配置
type CacheConfig struct {
	Type     string `mapstructure:"type"`     // 缓存类型：memory 或 redis
	Address  string `mapstructure:"address"`  // Redis地址
	Password string `mapstructure:"password"` // Redis密码
	DB       int    `mapstructure:"db"`       // Redis数据库
	Prefix   string `mapstructure:"prefix"`   // 凭证缓存键前缀
	TTL      int    `mapstructure:"ttl"`      // 缓存TTL（秒）
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug/info/warn/error
	File       string `mapstructure:"file"`        // 日志文件，为空时只输出到标准输出
	MaxSizeMB  int    `mapstructure:"max_size_mb"` // 单个日志文件大小上限
	MaxBackups int    `mapstructure:"max_backups"` // 保留的旧日志数量
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Load 从文件和环境变量加载配置
// 文件不存在时使用默认值
func Load(configPath string) (*Config, error) {
	var config Config

	if configPath == "" {
		configPath = "config.yaml"
	}

	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}
		log.Printf("Warning: Config file not found at %s, using defaults", configPath)
	} else {
		log.Printf("Using config file: %s", v.ConfigFileUsed())
	}

	setDefaults(v)

	// 支持环境变量覆盖，如 HUB_TOKEN、DATASET_TEST_SPLIT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}

	return processEnvironmentVariables(&config), nil
}

// WriteDefault 将默认配置写入指定路径
func WriteDefault(configPath string) error {
	v := viper.New()
	setDefaults(v)

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %v", err)
	}
	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write default config to %s: %v", configPath, err)
	}
	return nil
}

// processEnvironmentVariables 处理 ${ENV} 形式的配置项
func processEnvironmentVariables(cfg *Config) *Config {
	cfg.Hub.Token = expandEnv(cfg.Hub.Token)
	cfg.Storage.AccessKey = expandEnv(cfg.Storage.AccessKey)
	cfg.Storage.SecretKey = expandEnv(cfg.Storage.SecretKey)
	cfg.Cache.Password = expandEnv(cfg.Cache.Password)
	return cfg
}

// expandEnv 展开 ${NAME}，环境变量为空时置空
func expandEnv(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		return os.Getenv(value[2 : len(value)-1])
	}
	return value
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "60s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.max_upload_mb", 32)
	v.SetDefault("server.enable_cors", true)

	// 数据集仓库默认配置
	v.SetDefault("hub.endpoint", "https://huggingface.co")
	v.SetDefault("hub.token", "${HF_TOKEN}")
	v.SetDefault("hub.revision", "main")
	v.SetDefault("hub.private", false)
	v.SetDefault("hub.timeout", "60s")
	v.SetDefault("hub.token_ttl", "1h")

	// 数据集默认参数
	v.SetDefault("dataset.repo_name", "owner/rag")
	v.SetDefault("dataset.test_split", 20)

	// 发布方式
	v.SetDefault("publisher.type", "hub")

	// 存储默认配置
	v.SetDefault("storage.path", "./data/datasets")
	v.SetDefault("storage.bucket", "datasets")
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.access_key", "${MINIO_ACCESS_KEY}")
	v.SetDefault("storage.secret_key", "${MINIO_SECRET_KEY}")
	v.SetDefault("storage.use_ssl", false)

	// 缓存默认配置
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.prefix", "docx2hf")
	v.SetDefault("cache.ttl", 3600) // 1小时

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
}
