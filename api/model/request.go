package model

import (
	"mime/multipart"
)

// DatasetUploadRequest 数据集转换请求
// 文件通过multipart表单的files字段重复提交
type DatasetUploadRequest struct {
	Files     []*multipart.FileHeader `form:"files"`                                        // 上传的文件
	RepoName  string                  `form:"repo_name" binding:"omitempty,repoid"`         // 目标仓库 owner/name
	TestSplit int                     `form:"test_split" binding:"omitempty,min=10,max=50"` // 测试集百分比
}

// GetRepoName 获取仓库名，未提供时使用默认值
func (r *DatasetUploadRequest) GetRepoName(fallback string) string {
	if r.RepoName == "" {
		return fallback
	}
	return r.RepoName
}

// GetTestSplit 获取测试集百分比，未提供时使用默认值
func (r *DatasetUploadRequest) GetTestSplit(fallback int) int {
	if r.TestSplit <= 0 {
		return fallback
	}
	return r.TestSplit
}
