package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/fyerfyer/docx2hf/api/middleware"
	"github.com/fyerfyer/docx2hf/api/model"
	"github.com/fyerfyer/docx2hf/internal/hub"
	"github.com/fyerfyer/docx2hf/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// DatasetDefaults 请求未提供参数时使用的默认值
type DatasetDefaults struct {
	RepoName  string // 默认仓库名
	TestSplit int    // 默认测试集百分比
	Token     string // 配置中的仓库凭证
}

// DatasetHandler 处理数据集转换相关的API请求
type DatasetHandler struct {
	converter *services.ConverterService // 转换服务
	defaults  DatasetDefaults            // 默认参数
	logger    *logrus.Logger             // 日志记录器
}

// NewDatasetHandler 创建新的数据集处理器
func NewDatasetHandler(converter *services.ConverterService, defaults DatasetDefaults) *DatasetHandler {
	return &DatasetHandler{
		converter: converter,
		defaults:  defaults,
		logger:    middleware.GetLogger(),
	}
}

// CreateDataset 转换上传的文档并发布数据集
// POST /api/datasets
func (h *DatasetHandler) CreateDataset(c *gin.Context) {
	uploads, run, closeAll, ok := h.bindRun(c)
	if !ok {
		return
	}
	defer closeAll()

	result, err := h.converter.Convert(c.Request.Context(), uploads, run)
	if err != nil {
		h.handleConvertError(c, result, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		middleware.FieldTraceID: middleware.GetTraceID(c),
		middleware.FieldRunID:   result.RunID,
		middleware.FieldRepoID:  result.RepoID,
		"files":                 len(uploads),
	}).Info("Dataset request completed")

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewDatasetUploadResponse(result)))
}

// PreviewDataset 转换上传的文档但不发布
// POST /api/datasets/preview
func (h *DatasetHandler) PreviewDataset(c *gin.Context) {
	uploads, run, closeAll, ok := h.bindRun(c)
	if !ok {
		return
	}
	defer closeAll()

	preview, err := h.converter.Preview(c.Request.Context(), uploads, run)
	if err != nil {
		h.handleConvertError(c, preview.Result, err)
		return
	}

	resp := model.DatasetPreviewResponse{
		DatasetUploadResponse: model.NewDatasetUploadResponse(preview.Result),
		Records:               preview.Bundle.Splits(),
		Card:                  preview.Card.String(),
		CardHTML:              preview.CardHTML,
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// bindRun 解析表单并打开所有上传文件
// 返回的closeAll用于关闭已打开的文件
func (h *DatasetHandler) bindRun(c *gin.Context) ([]services.Upload, services.RunConfig, func(), bool) {
	var req model.DatasetUploadRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.WithFields(logrus.Fields{
			middleware.FieldError:   err.Error(),
			middleware.FieldTraceID: middleware.GetTraceID(c),
		}).Warn("Invalid dataset request")

		middleware.HandleError(c, middleware.NewValidationError("Invalid request parameters", err.Error()))
		return nil, services.RunConfig{}, nil, false
	}

	files := make([]multipart.File, 0, len(req.Files))
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	uploads := make([]services.Upload, 0, len(req.Files))
	for _, fh := range req.Files {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			h.logger.WithFields(logrus.Fields{
				"error":    err.Error(),
				"filename": fh.Filename,
			}).Error("Failed to open uploaded file")

			middleware.HandleError(c, middleware.NewInternalError("Failed to open uploaded file", fh.Filename))
			return nil, services.RunConfig{}, nil, false
		}
		files = append(files, f)
		uploads = append(uploads, services.Upload{
			Name:   fh.Filename,
			Type:   fh.Header.Get("Content-Type"),
			Reader: f,
		})
	}

	run := services.RunConfig{
		RepoID:    req.GetRepoName(h.defaults.RepoName),
		TestSplit: req.GetTestSplit(h.defaults.TestSplit),
		Token:     h.token(c),
	}
	return uploads, run, closeAll, true
}

// token 优先使用请求头中的Bearer凭证，否则使用配置中的凭证
func (h *DatasetHandler) token(c *gin.Context) string {
	if token := BearerToken(c); token != "" {
		return token
	}
	return h.defaults.Token
}

// handleConvertError 将转换错误映射为HTTP响应
func (h *DatasetHandler) handleConvertError(c *gin.Context, result *services.Result, err error) {
	switch {
	case errors.Is(err, services.ErrNoFiles):
		middleware.HandleError(c, middleware.NewValidationError("Please upload at least one .docx file"))
	case errors.Is(err, services.ErrInvalidConfig):
		middleware.HandleError(c, middleware.NewValidationError("Invalid dataset configuration", err.Error()))
	case errors.Is(err, services.ErrEmptyResult):
		// 附带每个文件的跳过原因
		resp := model.NewErrorResponse(http.StatusBadRequest, "No valid files were found")
		resp.Data = model.NewDatasetUploadResponse(result)
		resp.TraceID = middleware.GetTraceID(c)
		c.JSON(http.StatusBadRequest, resp)
	case errors.Is(err, services.ErrPublishFailure) && hub.IsUnauthorized(err):
		middleware.HandleError(c, middleware.NewUnauthorizedError("Invalid or missing credential token"))
	case errors.Is(err, services.ErrPublishFailure):
		middleware.HandleError(c, middleware.NewUpstreamError("Failed to push dataset", err.Error()))
	default:
		middleware.HandleError(c, err)
	}
}

// BearerToken 读取Authorization请求头中的Bearer凭证
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
