package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fyerfyer/docx2hf/internal/dataset"
	"github.com/fyerfyer/docx2hf/internal/document"
	"github.com/fyerfyer/docx2hf/internal/hub"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// 转换流程的错误
var (
	ErrNoFiles        = errors.New("no files uploaded")
	ErrInvalidConfig  = errors.New("invalid run configuration")
	ErrEmptyResult    = errors.New("no valid document was found in the upload")
	ErrPublishFailure = errors.New("failed to publish dataset")
)

// Upload 一个上传的文件
type Upload struct {
	Name   string    // 原始文件名
	Type   string    // 声明的MIME类型
	Reader io.Reader // 文件内容
}

// Warning 被跳过文件的告警
type Warning struct {
	Index    int    `json:"index"`     // 在上传序列中的位置
	FileName string `json:"file_name"` // 文件名
	Type     string `json:"type"`      // 声明的MIME类型
	Reason   string `json:"reason"`    // 跳过原因
	Err      error  `json:"-"`
}

// RunConfig 单次转换的配置
type RunConfig struct {
	RepoID    string `validate:"required,repoid"` // 目标仓库 owner/name
	TestSplit int    `validate:"min=1,max=100"`   // 测试集百分比
	Token     string `validate:"-"`               // 仓库凭证，由发布方校验
}

// Result 转换结果
type Result struct {
	RunID      string    `json:"run_id"`
	RepoID     string    `json:"repo_name"`
	TrainCount int       `json:"train"`
	TestCount  int       `json:"test"`
	Warnings   []Warning `json:"warnings"`
	Published  bool      `json:"published"`
}

// Preview 预览结果，包含数据集内容和README渲染结果
type Preview struct {
	*Result
	Bundle   dataset.Bundle
	Card     dataset.Card
	CardHTML string
}

// ConverterService 文档转换服务
// 负责文本提取、train/test划分以及调用发布方
type ConverterService struct {
	publisher     hub.Publisher
	parserFactory func(contentType string) (document.Parser, error)
	validate      *validator.Validate
	logger        *logrus.Logger
}

// ConverterOption 转换服务配置选项
type ConverterOption func(*ConverterService)

// NewConverterService 创建转换服务
func NewConverterService(publisher hub.Publisher, opts ...ConverterOption) *ConverterService {
	srv := &ConverterService{
		publisher:     publisher,
		parserFactory: document.ParserFactory,
		validate:      dataset.NewValidator(),
		logger:        logrus.New(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	return srv
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) ConverterOption {
	return func(s *ConverterService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithParserFactory 设置解析器工厂
func WithParserFactory(factory func(contentType string) (document.Parser, error)) ConverterOption {
	return func(s *ConverterService) {
		if factory != nil {
			s.parserFactory = factory
		}
	}
}

// WithValidator 设置校验器，需已注册repoid标签
func WithValidator(v *validator.Validate) ConverterOption {
	return func(s *ConverterService) {
		if v != nil {
			s.validate = v
		}
	}
}

// Convert 提取、划分并发布数据集
// 失败时返回的Result仍包含已产生的告警
func (s *ConverterService) Convert(ctx context.Context, uploads []Upload, run RunConfig) (*Result, error) {
	bundle, result, err := s.assemble(ctx, uploads, run)
	if err != nil {
		return result, err
	}

	if s.publisher == nil {
		return result, fmt.Errorf("%w: no publisher configured", ErrPublishFailure)
	}

	if err := s.publisher.Publish(ctx, bundle, run.RepoID, run.Token); err != nil {
		s.logger.WithFields(logrus.Fields{
			"run_id":  result.RunID,
			"repo_id": run.RepoID,
		}).WithError(err).Error("Failed to publish dataset")
		return result, fmt.Errorf("%w: %w", ErrPublishFailure, err)
	}

	result.Published = true
	s.logger.WithFields(logrus.Fields{
		"run_id":   result.RunID,
		"repo_id":  run.RepoID,
		"train":    result.TrainCount,
		"test":     result.TestCount,
		"warnings": len(result.Warnings),
	}).Info("Dataset published")
	return result, nil
}

// Preview 执行提取和划分，不发布
func (s *ConverterService) Preview(ctx context.Context, uploads []Upload, run RunConfig) (*Preview, error) {
	bundle, result, err := s.assemble(ctx, uploads, run)
	if err != nil {
		return &Preview{Result: result}, err
	}

	card, err := dataset.BuildCard(run.RepoID, bundle)
	if err != nil {
		return &Preview{Result: result}, fmt.Errorf("failed to build dataset card: %w", err)
	}

	return &Preview{
		Result:   result,
		Bundle:   bundle,
		Card:     card,
		CardHTML: dataset.RenderCardHTML(card),
	}, nil
}

// assemble 逐个处理上传文件并按位置划分
// 被跳过的文件同样占用位置编号
func (s *ConverterService) assemble(ctx context.Context, uploads []Upload, run RunConfig) (dataset.Bundle, *Result, error) {
	result := &Result{
		RunID:    uuid.New().String(),
		RepoID:   run.RepoID,
		Warnings: []Warning{},
	}

	if len(uploads) == 0 {
		return dataset.Bundle{}, result, ErrNoFiles
	}

	if err := s.validate.Struct(run); err != nil {
		return dataset.Bundle{}, result, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	splitter, err := dataset.NewSplitter(run.TestSplit)
	if err != nil {
		return dataset.Bundle{}, result, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	assembler := dataset.NewAssembler(splitter)
	for i, upload := range uploads {
		if err := ctx.Err(); err != nil {
			return dataset.Bundle{}, result, err
		}

		content, err := s.extract(upload)
		if err != nil {
			w := newWarning(i, upload, err)
			result.Warnings = append(result.Warnings, w)
			s.logger.WithFields(logrus.Fields{
				"run_id":    result.RunID,
				"index":     i,
				"file_name": upload.Name,
				"file_type": upload.Type,
			}).Warn(w.Reason)
			continue
		}

		split := assembler.Add(i, dataset.NewRecord(content))
		s.logger.WithFields(logrus.Fields{
			"run_id":    result.RunID,
			"index":     i,
			"file_name": upload.Name,
			"split":     split,
		}).Debug("Document assigned")
	}

	bundle := assembler.Bundle()
	result.TrainCount = len(bundle.Train)
	result.TestCount = len(bundle.Test)

	if bundle.Empty() {
		s.logger.WithField("run_id", result.RunID).Warn("No valid files were found")
		return bundle, result, ErrEmptyResult
	}
	return bundle, result, nil
}

// extract 校验类型并提取文本
func (s *ConverterService) extract(upload Upload) (string, error) {
	parser, err := s.parserFactory(upload.Type)
	if err != nil {
		return "", err
	}
	if upload.Reader == nil {
		return "", fmt.Errorf("%w: empty upload", document.ErrMalformedDocument)
	}
	return parser.ParseReader(upload.Reader, upload.Name)
}

func newWarning(i int, upload Upload, err error) Warning {
	reason := err.Error()
	if errors.Is(err, document.ErrUnsupportedFileType) {
		reason = fmt.Sprintf("File type %s not supported!", upload.Type)
	}
	return Warning{
		Index:    i,
		FileName: upload.Name,
		Type:     upload.Type,
		Reason:   reason,
		Err:      err,
	}
}
