package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	appconfig "github.com/fyerfyer/docx2hf/config"
	"github.com/fyerfyer/docx2hf/internal/app"
	"github.com/fyerfyer/docx2hf/internal/document"
	"github.com/fyerfyer/docx2hf/internal/services"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// 命令行选项
type options struct {
	ConfigFile string
	EnvFile    string
	RepoName   string
	TestSplit  int
	Token      string
	Publisher  string
	LogLevel   string
	DryRun     bool
}

func main() {
	opts := parseFlags()
	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: convert [flags] file.docx [file.docx ...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := godotenv.Load(opts.EnvFile); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Failed to load env file %s: %v", opts.EnvFile, err)
	}

	cfg, err := appconfig.Load(opts.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if opts.Publisher != "" {
		cfg.Publisher.Type = opts.Publisher
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if _, err := app.SetupLogger(logger, cfg.Log); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, files, logger); err != nil {
		logger.WithError(err).Error("Conversion failed")
		os.Exit(1)
	}
}

// run 读取本地文件并执行一次转换
func run(ctx context.Context, cfg *appconfig.Config, opts options, paths []string, logger *logrus.Logger) error {
	tokenCache, err := app.SetupCache(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer tokenCache.Close()

	hubClient := app.SetupHubClient(cfg.Hub, tokenCache, cfg.Cache.Prefix, logger)
	publisher, err := app.SetupPublisher(ctx, cfg, hubClient, logger)
	if err != nil {
		return err
	}

	uploads := make([]services.Upload, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", p, err)
		}
		defer f.Close()

		uploads = append(uploads, services.Upload{
			Name:   filepath.Base(p),
			Type:   string(document.DetectContentType(p)),
			Reader: f,
		})
	}

	runCfg := services.RunConfig{
		RepoID:    firstNonEmpty(opts.RepoName, cfg.Dataset.RepoName),
		TestSplit: cfg.Dataset.TestSplit,
		Token:     firstNonEmpty(opts.Token, cfg.Hub.Token),
	}
	if opts.TestSplit > 0 {
		runCfg.TestSplit = opts.TestSplit
	}

	converter := services.NewConverterService(publisher, services.WithLogger(logger))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	if opts.DryRun {
		preview, err := converter.Preview(ctx, uploads, runCfg)
		if err != nil {
			return err
		}
		fmt.Println(preview.Card.String())
		return enc.Encode(preview.Bundle.Splits())
	}

	result, err := converter.Convert(ctx, uploads, runCfg)
	if err != nil {
		if errors.Is(err, services.ErrEmptyResult) {
			return fmt.Errorf("%w (%d files skipped)", err, len(result.Warnings))
		}
		return err
	}
	return enc.Encode(result)
}

// parseFlags 解析命令行参数
func parseFlags() options {
	opts := options{}

	flag.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to config file")
	flag.StringVar(&opts.EnvFile, "env", ".env", "Path to .env file")
	flag.StringVar(&opts.RepoName, "repo", "", "Target dataset repository (owner/name)")
	flag.IntVar(&opts.TestSplit, "split", 0, "Test split percentage (1-100)")
	flag.StringVar(&opts.Token, "token", "", "Hub credential token (defaults to config / HF_TOKEN)")
	flag.StringVar(&opts.Publisher, "publisher", "", "Publisher type (hub/local/minio)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug/info/warn/error)")
	flag.BoolVar(&opts.DryRun, "dry-run", false, "Print the dataset instead of publishing it")

	flag.Parse()
	return opts
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
