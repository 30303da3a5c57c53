package document

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedFileType 文件类型不被支持
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrMalformedDocument 文档不是合法的容器格式
	ErrMalformedDocument = errors.New("malformed document")
)

// Parser 文档解析器接口
// 负责将文档解析为纯文本
type Parser interface {
	// Parse 解析文档，返回文本内容
	Parse(filePath string) (string, error)

	// ParseReader 从Reader解析文档，返回文本内容
	// filename仅用于错误信息
	ParseReader(r io.Reader, filename string) (string, error)
}

// ContentType 文档的MIME类型
type ContentType string

const (
	// DOCX Word文档类型
	DOCX ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	// Unknown 未知类型
	Unknown ContentType = "application/octet-stream"
)

// ParserFactory 根据上传声明的MIME类型创建对应的解析器
func ParserFactory(contentType string) (Parser, error) {
	switch ContentType(contentType) {
	case DOCX:
		return NewDocxParser(), nil
	default:
		return nil, ErrUnsupportedFileType
	}
}

// DetectContentType 根据文件扩展名推断MIME类型
// 用于没有声明类型的本地文件
func DetectContentType(filePath string) ContentType {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".docx":
		return DOCX
	case ".doc":
		return "application/msword"
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	default:
		return Unknown
	}
}

// IsSupported 判断MIME类型是否可以被解析
func IsSupported(contentType string) bool {
	return ContentType(contentType) == DOCX
}
