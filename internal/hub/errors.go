package hub

import (
	"errors"
	"fmt"
)

// Error 数据集仓库调用错误
type Error struct {
	Code       int    // 错误码
	StatusCode int    // HTTP状态码，网络错误时为0
	Message    string // 错误消息
}

// Error 实现error接口
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("hub error (code=%d, status=%d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("hub error (code=%d): %s", e.Code, e.Message)
}

// 错误码常量
const (
	ErrCodeUnauthorized   = 2001 // 凭证缺失或无效
	ErrCodeInvalidRequest = 2002 // 请求参数错误或远端校验失败
	ErrCodeNetworkError   = 2003 // 网络连接错误
	ErrCodeServerError    = 2004 // 服务端错误
	ErrCodeNotFound       = 2005 // 仓库或版本不存在
	ErrCodeStorage        = 2006 // 对象存储写入失败
)

// 错误消息常量
const (
	ErrMsgMissingToken = "credential token is required"
	ErrMsgInvalidToken = "invalid credential token"
)

// NewError 创建新的仓库错误
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// IsUnauthorized 判断错误是否为认证失败
func IsUnauthorized(err error) bool {
	var hubErr *Error
	return errors.As(err, &hubErr) && hubErr.Code == ErrCodeUnauthorized
}

// codeForStatus 将HTTP状态码映射为错误码
func codeForStatus(status int) int {
	switch {
	case status == 401 || status == 403:
		return ErrCodeUnauthorized
	case status == 404:
		return ErrCodeNotFound
	case status >= 500:
		return ErrCodeServerError
	default:
		return ErrCodeInvalidRequest
	}
}
