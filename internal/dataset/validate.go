package dataset

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RepoIDTag 仓库名校验标签
const RepoIDTag = "repoid"

// DefaultRepoID 默认仓库名
const DefaultRepoID = "owner/rag"

// ErrInvalidRepoID 仓库名格式错误
var ErrInvalidRepoID = errors.New("invalid repository id")

var repoPartPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,95}$`)

// ValidateRepoID 校验 owner/name 格式的仓库名
func ValidateRepoID(repoID string) error {
	owner, name, ok := strings.Cut(repoID, "/")
	if !ok || strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q must be of the form owner/name", ErrInvalidRepoID, repoID)
	}
	for _, part := range []string{owner, name} {
		if !repoPartPattern.MatchString(part) || strings.Contains(part, "..") {
			return fmt.Errorf("%w: %q has an invalid segment %q", ErrInvalidRepoID, repoID, part)
		}
	}
	return nil
}

// SplitRepoID 拆分仓库名，调用方需先完成校验
func SplitRepoID(repoID string) (owner, name string) {
	owner, name, _ = strings.Cut(repoID, "/")
	return owner, name
}

// RegisterValidations 在validator上注册repoid标签
func RegisterValidations(v *validator.Validate) error {
	return v.RegisterValidation(RepoIDTag, func(fl validator.FieldLevel) bool {
		return ValidateRepoID(fl.Field().String()) == nil
	})
}

// NewValidator 创建已注册自定义标签的validator
func NewValidator() *validator.Validate {
	v := validator.New()
	// 标签名固定且函数非空，注册不会失败
	_ = RegisterValidations(v)
	return v
}
