package api

import (
	"net/http"

	"github.com/fyerfyer/docx2hf/api/handler"
	"github.com/fyerfyer/docx2hf/api/middleware"
	"github.com/fyerfyer/docx2hf/api/model"
	"github.com/fyerfyer/docx2hf/internal/dataset"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RouterConfig 路由配置
type RouterConfig struct {
	Publisher          string // 发布方式，用于健康检查
	MaxMultipartMemory int64  // 表单解析使用的内存上限
	EnableCors         bool   // 是否启用跨域
}

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
// authHandler为空时不注册凭证检查接口
func SetupRouter(
	datasetHandler *handler.DatasetHandler,
	authHandler *handler.AuthHandler,
	cfg RouterConfig,
) *gin.Engine {
	RegisterValidators()

	router := gin.New()
	if cfg.MaxMultipartMemory > 0 {
		router.MaxMultipartMemory = cfg.MaxMultipartMemory
	}

	// 应用全局中间件
	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())
	if cfg.EnableCors {
		router.Use(Cors())
	}

	// 在调试模式下记录响应体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.ResponseLogger())
	}

	api := router.Group("/api")
	{
		// 数据集API
		datasetGroup := api.Group("/datasets")
		{
			// 转换并发布 - POST /api/datasets
			datasetGroup.POST("", datasetHandler.CreateDataset)

			// 转换预览 - POST /api/datasets/preview
			datasetGroup.POST("/preview", datasetHandler.PreviewDataset)
		}

		if authHandler != nil {
			// 凭证检查 - GET /api/auth/whoami
			api.GET("/auth/whoami", authHandler.WhoAmI)
		}

		// 健康检查API
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, model.NewSuccessResponse(model.HealthResponse{
				Status:    "ok",
				Publisher: cfg.Publisher,
			}))
		})
	}

	// 未注册的路由统一返回JSON错误
	router.NoRoute(func(c *gin.Context) {
		middleware.HandleError(c, middleware.NewNotFoundError("Route not found: "+c.Request.URL.Path))
	})

	return router
}

// RegisterValidators 在gin的校验器上注册自定义标签
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := dataset.RegisterValidations(v); err != nil {
			middleware.GetLogger().WithError(err).Error("Failed to register validators")
		}
	}
}

// Cors 跨域资源共享中间件
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
