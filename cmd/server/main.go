package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fyerfyer/docx2hf/api"
	"github.com/fyerfyer/docx2hf/api/handler"
	"github.com/fyerfyer/docx2hf/api/middleware"
	appconfig "github.com/fyerfyer/docx2hf/config"
	"github.com/fyerfyer/docx2hf/internal/app"
	"github.com/fyerfyer/docx2hf/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// 命令行选项
type options struct {
	ConfigFile string // 配置文件路径
	EnvFile    string // .env文件路径
	Port       int    // 服务端口，非0时覆盖配置
	Mode       string // 运行模式，非空时覆盖配置
	LogLevel   string // 日志级别，非空时覆盖配置
	Publisher  string // 发布方式，非空时覆盖配置
	InitConfig bool   // 写出默认配置后退出
}

func main() {
	opts := parseFlags()

	// 加载.env，不存在时忽略
	if err := godotenv.Load(opts.EnvFile); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Failed to load env file %s: %v", opts.EnvFile, err)
	}

	if opts.InitConfig {
		if err := appconfig.WriteDefault(opts.ConfigFile); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		log.Printf("Default config written to %s", opts.ConfigFile)
		return
	}

	cfg, err := appconfig.Load(opts.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyOverrides(cfg, opts)

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	// 初始化日志
	logger, err := app.SetupLogger(middleware.GetLogger(), cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.Info("Starting docx2hf server...")

	// 创建凭证缓存
	tokenCache, err := app.SetupCache(cfg.Cache)
	if err != nil {
		logger.Fatalf("Failed to initialize cache: %v", err)
	}
	defer tokenCache.Close()

	// 创建数据集仓库客户端和发布方
	hubClient := app.SetupHubClient(cfg.Hub, tokenCache, cfg.Cache.Prefix, logger)

	ctx := context.Background()
	publisher, err := app.SetupPublisher(ctx, cfg, hubClient, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize publisher: %v", err)
	}
	logger.WithField("publisher", cfg.Publisher.Type).Info("Publisher initialized")

	converter := services.NewConverterService(publisher, services.WithLogger(logger))

	// 初始化API处理器
	datasetHandler := handler.NewDatasetHandler(converter, handler.DatasetDefaults{
		RepoName:  cfg.Dataset.RepoName,
		TestSplit: cfg.Dataset.TestSplit,
		Token:     cfg.Hub.Token,
	})
	authHandler := handler.NewAuthHandler(hubClient, cfg.Hub.Token)

	// 设置路由
	r := api.SetupRouter(datasetHandler, authHandler, api.RouterConfig{
		Publisher:          cfg.Publisher.Type,
		MaxMultipartMemory: cfg.Server.MaxUploadMB << 20,
		EnableCors:         cfg.Server.EnableCors,
	})

	// 启动HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 优雅关闭
	go func() {
		logger.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// parseFlags 解析命令行参数
func parseFlags() options {
	opts := options{}

	flag.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to config file")
	flag.StringVar(&opts.EnvFile, "env", ".env", "Path to .env file")
	flag.IntVar(&opts.Port, "port", 0, "Server port (overrides config)")
	flag.StringVar(&opts.Mode, "mode", "", "Run mode (debug/release)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug/info/warn/error)")
	flag.StringVar(&opts.Publisher, "publisher", "", "Publisher type (hub/local/minio)")
	flag.BoolVar(&opts.InitConfig, "init-config", false, "Write the default config file and exit")

	flag.Parse()
	return opts
}

// applyOverrides 用命令行参数覆盖配置
func applyOverrides(cfg *appconfig.Config, opts options) {
	if opts.Port != 0 {
		cfg.Server.Port = opts.Port
	}
	if opts.Mode != "" {
		cfg.Server.Mode = opts.Mode
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.Publisher != "" {
		cfg.Publisher.Type = opts.Publisher
	}
}
