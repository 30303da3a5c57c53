package model

import (
	"github.com/fyerfyer/docx2hf/internal/dataset"
	"github.com/fyerfyer/docx2hf/internal/services"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// FileWarning 被跳过文件的说明
type FileWarning struct {
	Index    int    `json:"index"`    // 文件在上传序列中的位置
	FileName string `json:"filename"` // 文件名
	Type     string `json:"type"`     // 声明的MIME类型
	Reason   string `json:"reason"`   // 跳过原因
}

// DatasetUploadResponse 数据集转换响应
type DatasetUploadResponse struct {
	RunID     string        `json:"run_id"`    // 转换批次ID
	RepoName  string        `json:"repo_name"` // 目标仓库
	Train     int           `json:"train"`     // 训练集记录数
	Test      int           `json:"test"`      // 测试集记录数
	Published bool          `json:"published"` // 是否已发布
	Warnings  []FileWarning `json:"warnings"`  // 被跳过的文件
}

// DatasetPreviewResponse 数据集预览响应
type DatasetPreviewResponse struct {
	DatasetUploadResponse
	Records  map[dataset.Split][]dataset.Record `json:"records"`   // 两个划分的记录
	Card     string                             `json:"card"`      // README原文
	CardHTML string                             `json:"card_html"` // README渲染结果
}

// WhoAmIResponse 凭证检查响应
type WhoAmIResponse struct {
	Name string `json:"name"` // 凭证对应的用户名
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string `json:"status"`    // 服务状态
	Publisher string `json:"publisher"` // 当前发布方式
}

// ConvertWarnings 将服务层告警转换为响应结构
func ConvertWarnings(warnings []services.Warning) []FileWarning {
	out := make([]FileWarning, len(warnings))
	for i, w := range warnings {
		out[i] = FileWarning{
			Index:    w.Index,
			FileName: w.FileName,
			Type:     w.Type,
			Reason:   w.Reason,
		}
	}
	return out
}

// NewDatasetUploadResponse 由转换结果生成响应
func NewDatasetUploadResponse(result *services.Result) DatasetUploadResponse {
	if result == nil {
		return DatasetUploadResponse{Warnings: []FileWarning{}}
	}
	return DatasetUploadResponse{
		RunID:     result.RunID,
		RepoName:  result.RepoID,
		Train:     result.TrainCount,
		Test:      result.TestCount,
		Published: result.Published,
		Warnings:  ConvertWarnings(result.Warnings),
	}
}
