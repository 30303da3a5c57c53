package handler

import (
	"context"
	"net/http"

	"github.com/fyerfyer/docx2hf/api/middleware"
	"github.com/fyerfyer/docx2hf/api/model"
	"github.com/fyerfyer/docx2hf/internal/hub"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TokenVerifier 凭证校验接口
type TokenVerifier interface {
	WhoAmI(ctx context.Context, token string) (string, error)
}

// AuthHandler 处理凭证检查请求
type AuthHandler struct {
	verifier TokenVerifier
	token    string // 配置中的凭证
	logger   *logrus.Logger
}

// NewAuthHandler 创建凭证检查处理器
func NewAuthHandler(verifier TokenVerifier, token string) *AuthHandler {
	return &AuthHandler{
		verifier: verifier,
		token:    token,
		logger:   middleware.GetLogger(),
	}
}

// WhoAmI 返回凭证对应的用户名
// GET /api/auth/whoami
func (h *AuthHandler) WhoAmI(c *gin.Context) {
	token := BearerToken(c)
	if token == "" {
		token = h.token
	}

	name, err := h.verifier.WhoAmI(c.Request.Context(), token)
	if err != nil {
		h.logger.WithError(err).Warn("Token check failed")

		if hub.IsUnauthorized(err) {
			middleware.HandleError(c, middleware.NewUnauthorizedError("Invalid or missing credential token"))
			return
		}
		middleware.HandleError(c, middleware.NewUpstreamError("Failed to reach dataset hub", err.Error()))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.WhoAmIResponse{Name: name}))
}
